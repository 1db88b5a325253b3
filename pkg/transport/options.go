package transport

import "time"

// Options configures a websocket-backed Transport.
type Options struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendQueueSize   int
}

// DefaultOptions returns sane defaults for a production deployment.
func DefaultOptions() Options {
	return Options{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		MaxMessageSize:  512 * 1024,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		SendQueueSize:   256,
	}
}
