package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// DefaultTokenTTL is used when InitializeJWT is given a non-positive TTL
const DefaultTokenTTL = 24 * time.Hour

var (
	jwtSecret []byte
	tokenTTL  = DefaultTokenTTL
)

// JWTClaims represents the JWT token claims
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token was issued to an admin
func (c *JWTClaims) IsAdmin() bool {
	return c.Role == "admin"
}

// IssuedToken is a signed token together with its identity and expiry
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// InitializeJWT sets the JWT secret key and token lifetime
func InitializeJWT(secret string, ttl time.Duration) {
	jwtSecret = []byte(secret)
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	tokenTTL = ttl
}

// GenerateToken creates a new JWT token for a user
func GenerateToken(userID, email, role string) (*IssuedToken, error) {
	if len(jwtSecret) == 0 {
		return nil, fmt.Errorf("JWT secret not initialized")
	}

	now := time.Now()
	expiresAt := now.Add(tokenTTL)
	id := ulid.Make().String()

	claims := JWTClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &IssuedToken{Token: signed, ID: id, ExpiresAt: expiresAt.UTC().Truncate(time.Second)}, nil
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*JWTClaims, error) {
	if len(jwtSecret) == 0 {
		return nil, fmt.Errorf("JWT secret not initialized")
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	}, jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
