package common

import (
	"github.com/google/uuid"
)

// NewRequestID generates a request correlation ID ("req_<uuid>")
func NewRequestID() string {
	return "req_" + uuid.New().String()
}

// NewClientID generates a websocket client ID ("ws_<uuid>")
func NewClientID() string {
	return "ws_" + uuid.New().String()
}
