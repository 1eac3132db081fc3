package core

import (
	"context"
	"io"
)

// Request represents an incoming request
type Request interface {
	ID() string
	Method() string
	Path() string
	URL() string
	RemoteAddr() string
	Headers() map[string][]string
	Body() io.ReadCloser
	Context() context.Context
}

// Response represents an outgoing response
type Response interface {
	StatusCode() int
	Headers() map[string][]string
	Body() io.ReadCloser
}

// Handler processes requests
type Handler func(context.Context, Request) (Response, error)

// Middleware wraps handlers
type Middleware func(Handler) Handler

// LoadBalanceStrategy selects how an instance is picked from candidates
type LoadBalanceStrategy string

const (
	LoadBalanceRoundRobin       LoadBalanceStrategy = "round_robin"
	LoadBalanceRandom           LoadBalanceStrategy = "random"
	LoadBalanceLeastConnections LoadBalanceStrategy = "least_connections"
)
