package utils

import (
	"net/http"
	"time"
)

// NewHTTPClient builds a client tuned for many parallel range requests
// against the same host. The timeout bounds every network operation,
// including body reads.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100, // for connection reuse
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
		MaxConnsPerHost:     0,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
