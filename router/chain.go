package router

import (
	"net/http"
)

// Middleware wraps a handler. Prerouter middlewares expose it as their
// Execute method.
type Middleware func(http.Handler) http.Handler

// Chain is a handler with the middlewares that run before it.
type Chain struct {
	handler     http.Handler
	middlewares []Middleware
}

// NewChain creates a new Chain instance around the base handler.
func NewChain(h http.Handler) *Chain {
	if h == nil {
		panic("chain handler cannot be nil")
	}
	return &Chain{handler: h}
}

// WithMiddleware adds one or more middlewares to the chain.
// Middlewares execute in the order they are defined, from left to right:
//
//	.WithMiddleware(mw1, mw2, mw3)
//
// runs mw1, then mw2, then mw3, then the handler. Later calls add
// middlewares that run after the ones already added.
func (c *Chain) WithMiddleware(middlewares ...Middleware) *Chain {
	for _, mw := range middlewares {
		if mw != nil {
			c.middlewares = append(c.middlewares, mw)
		}
	}
	return c
}

// Handler returns the final handler with all middlewares applied
func (c *Chain) Handler() http.Handler {
	handler := c.handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}
	return handler
}
