package momo

import (
	"errors"
	"fmt"
)

var ErrNotConfigured = errors.New("momo: credentials are not configured")

// 2xx以外の応答
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("momo: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}
