package client

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"
)

type (
	TransportConfig struct {
		MaxTimeoutMs       uint32 `json:"max_timeout_ms"`
		ConnectTimeoutMs   uint32 `json:"connect_timeout_ms"`
		KeepaliveTimeoutS  uint32 `json:"keepalive_timeout_s"`
		BackoffBaseDelayMs uint32 `json:"backoff_base_delay_ms"`
		BackoffMaxDelayMs  uint32 `json:"backoff_max_delay_ms"`
		MaxMsgSize         int    `json:"max_msg_size"`
	}

	// Pool maintains one grpc client connection per grid server address.
	// Connections are dialed lazily on first use and shared afterwards.
	Pool struct {
		conns    sync.Map
		dialOpts []grpc.DialOption
		timeout  time.Duration
		mu       sync.Mutex
	}
)

func NewPool(cfg *TransportConfig) *Pool {
	return &Pool{
		dialOpts: generateDialOpts(cfg),
		timeout:  time.Millisecond * time.Duration(cfg.MaxTimeoutMs),
	}
}

func (p *Pool) GetConn(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	if conn, ok := p.conns.Load(addr); ok {
		return conn.(*grpc.ClientConn), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.conns.Load(addr); ok {
		return conn.(*grpc.ClientConn), nil
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	conn, err := grpc.DialContext(ctx, addr, p.dialOpts...)
	if err != nil {
		return nil, err
	}
	p.conns.Store(addr, conn)
	return conn, nil
}

// DropConn discards and closes a pooled connection, typically after the
// server left the cluster view.
func (p *Pool) DropConn(addr string) {
	if conn, ok := p.conns.LoadAndDelete(addr); ok {
		conn.(*grpc.ClientConn).Close()
	}
}

func (p *Pool) Close() error {
	p.conns.Range(func(key, value interface{}) bool {
		value.(*grpc.ClientConn).Close()
		p.conns.Delete(key)
		return true
	})
	return nil
}
