package mcp

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Pool manages MCP client connections keyed by server name. Connections are
// shared across all sessions; singleflight deduplicates concurrent dials.
type Pool struct {
	clients sync.Map // map[string]*Client
	group   singleflight.Group
	mu      sync.Mutex // for Close()
}

// NewPool creates an empty connection pool.
func NewPool() *Pool {
	return &Pool{}
}

// Connect returns the client for the given server, dialing it on first use.
func (p *Pool) Connect(ctx context.Context, config ServerConfig) (*Client, error) {
	if c, ok := p.clients.Load(config.Name); ok {
		return c.(*Client), nil
	}

	result, err, _ := p.group.Do(config.Name, func() (interface{}, error) {
		if c, ok := p.clients.Load(config.Name); ok {
			return c.(*Client), nil
		}

		client := NewClient(config)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		p.clients.Store(config.Name, client)
		return client, nil
	})
	if err != nil {
		return nil, fmt.Errorf("mcp pool: %w", err)
	}

	return result.(*Client), nil
}

// Close shuts down every pooled connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	p.clients.Range(func(key, value interface{}) bool {
		if err := value.(*Client).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.clients.Delete(key)
		return true
	})
	return firstErr
}
