package internal

import (
	"context"
	"sync"
)

// ConnectionManager hands out a single authenticated API client. The first
// successful Initialize call builds it; later calls reuse it. A failed attempt
// is not cached, so the caller may try again.
type ConnectionManager struct {
	mu     sync.Mutex
	client *Client
}

// NewConnectionManager creates a new ConnectionManager instance ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{}
}

// Initialize returns the cached client, or runs connect to build one. Concurrent
// callers are serialized so connect runs at most once at a time.
func (cm *ConnectionManager) Initialize(ctx context.Context, connect func(context.Context) (*Client, error)) (*Client, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.client != nil {
		return cm.client, nil
	}

	client, err := connect(ctx)
	if err != nil {
		return nil, err
	}
	cm.client = client
	return client, nil
}

// Client returns the connected client, or nil before a successful Initialize.
func (cm *ConnectionManager) Client() *Client {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.client
}

// IsInitialized reports whether a client has been connected.
func (cm *ConnectionManager) IsInitialized() bool {
	return cm.Client() != nil
}
