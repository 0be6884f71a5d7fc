package client

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

const bearerPrefix = "Bearer "

// BearerToken returns a request interceptor that sets the Authorization
// header whenever token returns a non-empty value.
func BearerToken(token func() string) RequestInterceptor {
	return func(ctx context.Context, req *Request) (*Request, error) {
		if t := token(); t != "" {
			req.Header.Set("Authorization", fmt.Sprintf("%s%s", bearerPrefix, t))
		}
		return req, nil
	}
}

// LogRequests logs every outgoing request at debug level
func LogRequests(log zerolog.Logger) RequestInterceptor {
	return func(ctx context.Context, req *Request) (*Request, error) {
		log.Debug().
			Str("method", req.Method).
			Str("endpoint", req.Endpoint).
			Bool("authenticated", req.Header.Get("Authorization") != "").
			Msg("API request")
		return req, nil
	}
}

// LogResponses logs every successful response at debug level
func LogResponses(log zerolog.Logger) ResponseInterceptor {
	return func(ctx context.Context, resp *Response) (*Response, error) {
		event := log.Debug().Int("status", resp.StatusCode).Int("bytes", len(resp.Body))
		if resp.Request != nil {
			event = event.Str("method", resp.Request.Method).Str("endpoint", resp.Request.Endpoint)
		}
		event.Msg("API response")
		return resp, nil
	}
}

// LogErrors logs failed calls and passes the error on unchanged
func LogErrors(log zerolog.Logger) ErrorInterceptor {
	return func(ctx context.Context, err error) error {
		log.Warn().Err(err).Int("status", StatusCode(err)).Msg("API request failed")
		return err
	}
}
