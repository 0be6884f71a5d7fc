package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/appdeck-dev/appdeck/internal/cli/auth"
)

// UIKey is the durable key UI preferences are persisted under
const UIKey = "ui-store"

// Theme is the colour scheme preference
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Themes lists the accepted themes in display order
var Themes = []Theme{ThemeLight, ThemeDark, ThemeSystem}

// ParseTheme validates s as a Theme
func ParseTheme(s string) (Theme, error) {
	t := Theme(s)
	if !slices.Contains(Themes, t) {
		return "", fmt.Errorf("invalid theme %q (expected light, dark or system)", s)
	}
	return t, nil
}

// NotificationType classifies a notification
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// Notification is a transient message for the user. A zero Duration keeps
// it until it is removed explicitly.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message,omitempty"`
	Duration  time.Duration    `json:"duration,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// UIState is an immutable snapshot of the UI store
type UIState struct {
	Theme         Theme
	SidebarOpen   bool
	ActiveModals  []string
	Notifications []Notification
}

// persistedUI is the durable subset of UIState
type persistedUI struct {
	Theme       Theme `json:"theme"`
	SidebarOpen bool  `json:"sidebarOpen"`
}

// UIStore holds presentation state. Only the theme and sidebar flag are
// persisted; modals and notifications live for the process.
type UIStore struct {
	mu        sync.RWMutex
	state     UIState
	storage   auth.Storage
	logger    zerolog.Logger
	listeners listeners[UIState]
	added     listeners[Notification]
	timers    map[string]*time.Timer

	now   func() time.Time
	newID func() string
}

// NewUIStore creates a store with the default preferences
func NewUIStore(storage auth.Storage, log zerolog.Logger) *UIStore {
	return &UIStore{
		state:   UIState{Theme: ThemeSystem, SidebarOpen: true},
		storage: storage,
		logger:  log.With().Str("store", "ui").Logger(),
		timers:  make(map[string]*time.Timer),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Hydrate restores persisted preferences. Unreadable records are ignored.
func (s *UIStore) Hydrate() error {
	data, err := s.storage.Load(UIKey)
	if errors.Is(err, auth.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load UI preferences: %w", err)
	}

	var p persistedUI
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn().Err(err).Msg("Ignoring unreadable UI preferences")
		return nil
	}
	if _, err := ParseTheme(string(p.Theme)); err != nil {
		p.Theme = ThemeSystem
	}

	s.set(func(cur UIState) UIState {
		cur.Theme = p.Theme
		cur.SidebarOpen = p.SidebarOpen
		return cur
	})
	return nil
}

// State returns the current snapshot
func (s *UIStore) State() UIState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to receive every new snapshot
func (s *UIStore) Subscribe(fn func(UIState)) func() {
	return s.listeners.add(fn)
}

// OnNotification registers fn to receive each notification as it is added
func (s *UIStore) OnNotification(fn func(Notification)) func() {
	return s.added.add(fn)
}

// SetTheme changes and persists the theme
func (s *UIStore) SetTheme(theme Theme) error {
	if _, err := ParseTheme(string(theme)); err != nil {
		return err
	}
	next := s.set(func(cur UIState) UIState {
		cur.Theme = theme
		return cur
	})
	s.persist(next)
	return nil
}

// ToggleSidebar flips and persists the sidebar flag
func (s *UIStore) ToggleSidebar() bool {
	next := s.set(func(cur UIState) UIState {
		cur.SidebarOpen = !cur.SidebarOpen
		return cur
	})
	s.persist(next)
	return next.SidebarOpen
}

// SetSidebarOpen sets and persists the sidebar flag
func (s *UIStore) SetSidebarOpen(open bool) {
	next := s.set(func(cur UIState) UIState {
		cur.SidebarOpen = open
		return cur
	})
	s.persist(next)
}

// OpenModal marks id as open; opening an open modal is a no-op
func (s *UIStore) OpenModal(id string) {
	s.set(func(cur UIState) UIState {
		if slices.Contains(cur.ActiveModals, id) {
			return cur
		}
		cur.ActiveModals = append(slices.Clone(cur.ActiveModals), id)
		return cur
	})
}

// CloseModal marks id as closed
func (s *UIStore) CloseModal(id string) {
	s.set(func(cur UIState) UIState {
		cur.ActiveModals = slices.DeleteFunc(slices.Clone(cur.ActiveModals), func(m string) bool {
			return m == id
		})
		return cur
	})
}

// IsModalOpen reports whether id is open
func (s *UIStore) IsModalOpen(id string) bool {
	return slices.Contains(s.State().ActiveModals, id)
}

// AddNotification stores n with a fresh ID and timestamp and returns the
// ID. Notifications with a positive Duration are removed once it elapses.
func (s *UIStore) AddNotification(n Notification) string {
	n.ID = s.newID()
	n.CreatedAt = s.now()
	if n.Type == "" {
		n.Type = NotificationInfo
	}

	s.set(func(cur UIState) UIState {
		cur.Notifications = append(slices.Clone(cur.Notifications), n)
		return cur
	})

	if n.Duration > 0 {
		id := n.ID
		s.mu.Lock()
		s.timers[id] = time.AfterFunc(n.Duration, func() { s.RemoveNotification(id) })
		s.mu.Unlock()
	}

	s.added.notify(n)
	return n.ID
}

// RemoveNotification drops the notification with the given ID
func (s *UIStore) RemoveNotification(id string) {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.set(func(cur UIState) UIState {
		cur.Notifications = slices.DeleteFunc(slices.Clone(cur.Notifications), func(n Notification) bool {
			return n.ID == id
		})
		return cur
	})
}

// ClearNotifications drops every notification
func (s *UIStore) ClearNotifications() {
	s.stopTimers()
	s.set(func(cur UIState) UIState {
		cur.Notifications = nil
		return cur
	})
}

// Notifications returns the current notifications, oldest first
func (s *UIStore) Notifications() []Notification {
	return slices.Clone(s.State().Notifications)
}

// Close stops pending auto-dismiss timers
func (s *UIStore) Close() {
	s.stopTimers()
}

func (s *UIStore) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *UIStore) persist(state UIState) {
	data, err := json.Marshal(persistedUI{Theme: state.Theme, SidebarOpen: state.SidebarOpen})
	if err == nil {
		err = s.storage.Save(UIKey, data)
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist UI preferences")
	}
}

func (s *UIStore) set(fn func(UIState) UIState) UIState {
	s.mu.Lock()
	s.state = fn(s.state)
	next := s.state
	s.mu.Unlock()

	s.listeners.notify(next)
	return next
}
