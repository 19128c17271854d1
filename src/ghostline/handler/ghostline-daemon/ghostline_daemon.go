// Package ghostlinedaemon connects JSON-RPC streams to the ghostline-daemon controller.
package ghostlinedaemon

import (
	"context"
	"fmt"

	controller "github.com/ghostline-dev/ghostline/src/ghostline/controller/ghostline-daemon"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/jsonrpcfx"
	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/atomic"
)

// Handler represents the ghostline-daemon's editor facing API.
type Handler interface {
	jsonrpcfx.ConnectionManager

	// ActiveConnections returns the number of editor connections currently open.
	ActiveConnections() int64
}

type jsonRPCConnectionManager struct {
	ctrl   controller.Controller
	stats  tally.Scope
	active atomic.Int64
}

// New constructs a new ghostline-daemon Handler and registers it to receive new connections.
func New(ctrl controller.Controller, jsonrpcmod jsonrpcfx.JSONRPCModule, stats tally.Scope) (Handler, error) {
	c := &jsonRPCConnectionManager{
		ctrl:  ctrl,
		stats: stats.SubScope("json_rpc"),
	}
	if err := jsonrpcmod.RegisterConnectionManager(c); err != nil {
		return nil, fmt.Errorf("registering connection manager: %w", err)
	}
	return c, nil
}

// NewConnection will store a new connection and return a router that includes its UUID.
func (c *jsonRPCConnectionManager) NewConnection(ctx context.Context, conn *jsonrpc2.Conn) (router jsonrpcfx.Router, err error) {
	id, err := c.ctrl.InitSession(ctx, conn)
	if err != nil {
		c.stats.Counter("connection_errors").Inc(1)
		return nil, fmt.Errorf("error while creating new connection: %w", err)
	}

	c.stats.Counter("connections").Inc(1)
	c.stats.Gauge("active_connections").Update(float64(c.active.Inc()))

	r := jsonRPCRouter{
		ghostlinedaemon: c.ctrl,
		uuid:            id,
		stats:           c.stats,
	}

	return &r, nil
}

// RemoveConnection cleans up a closed connection.
func (c *jsonRPCConnectionManager) RemoveConnection(ctx context.Context, id uuid.UUID) {
	c.stats.Gauge("active_connections").Update(float64(c.active.Dec()))

	// Ensure session is removed even if no Exit call has been received.
	ctx = context.WithValue(ctx, entity.SessionContextKey, id)
	c.ctrl.EndSession(ctx, id)
}

func (c *jsonRPCConnectionManager) ActiveConnections() int64 {
	return c.active.Load()
}
