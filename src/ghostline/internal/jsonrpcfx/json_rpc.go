package jsonrpcfx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/ghostline-dev/ghostline/src/ghostline/internal/serverinfofile"
	"github.com/gofrs/uuid"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:generate mockgen -destination jsonrpcfxmock/json_rpc_mock.go -package jsonrpcfxmock . JSONRPCModule,Router,ConnectionManager
//go:generate mockgen -destination json_rpc_mock_test.go -package jsonrpcfx -self_package github.com/ghostline-dev/ghostline/src/ghostline/internal/jsonrpcfx . Router,ConnectionManager

const (
	_configKeyAddress = "jsonrpc.address"
	_outputKey        = "lsp-address"

	// AddressStdio serves a single editor connection over the process stdin and stdout.
	AddressStdio = "stdio"
)

// Module is an fx module to handle JSON-RPC requests.
var Module = fx.Provide(New)

// JSONRPCModule represents a module to manage JSON-RPC requests.
type JSONRPCModule interface {
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
	ServeStream(ctx context.Context, conn jsonrpc2.Conn) error
	RegisterConnectionManager(connectionManager ConnectionManager) error
}

// Router serves as the interface through which handling of requests will be implemented.
type Router interface {
	HandleReq(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error
	UUID() uuid.UUID
}

// ConnectionManager will manage each active connection and its corresponding Router throughout the lifecycle of a connection.
type ConnectionManager interface {
	NewConnection(ctx context.Context, conn *jsonrpc2.Conn) (router Router, err error)
	RemoveConnection(ctx context.Context, id uuid.UUID)
}

type module struct {
	Address string `json:"address"`

	connectionMgr  ConnectionManager
	ln             net.Listener
	logger         *zap.SugaredLogger
	serverInfoFile serverinfofile.ServerInfoFile
	shutdowner     fx.Shutdowner
	stdio          io.ReadWriteCloser
	done           chan struct{}
	closeOnce      sync.Once
}

// Params define values to be used by JsonRpcHandler.
type Params struct {
	fx.In

	Config         config.Provider
	Lifecycle      fx.Lifecycle
	Logger         *zap.SugaredLogger
	ServerInfoFile serverinfofile.ServerInfoFile
	Shutdowner     fx.Shutdowner `optional:"true"`
}

// New creates a new server to handle JSON-RPC requests on the configured address.
func New(p Params) (JSONRPCModule, error) {
	if p.Lifecycle == nil || p.Config == nil {
		return nil, errors.New("required parameters are missing")
	}

	m := module{
		logger:         p.Logger,
		serverInfoFile: p.ServerInfoFile,
		shutdowner:     p.Shutdowner,
		stdio:          stdioStream{},
		done:           make(chan struct{}),
	}

	if err := m.processConfig(p.Config); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: m.OnStart,
		OnStop:  m.OnStop,
	})

	return &m, nil
}

// OnStart will initialize a JSON-RPC handler and then begin handling incoming connections.
func (m *module) OnStart(ctx context.Context) error {
	if m.Address == AddressStdio {
		go m.serveStdio()
		return nil
	}

	if err := m.setup(); err != nil {
		return err
	}

	go m.start()
	return nil
}

// OnStop stops accepting new connections.
func (m *module) OnStop(ctx context.Context) error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		if m.ln != nil {
			err = m.ln.Close()
		}
	})
	return err
}

// ServeStream is called when a new connection is initiated. Requests received via the connection will be routed to the handler, and answered via the connection's replier.
func (m *module) ServeStream(ctx context.Context, conn jsonrpc2.Conn) error {
	if m.connectionMgr == nil {
		m.logger.Errorf("cannot serve connection, no connection manager set")
		return errors.New("cannot serve connection, no connection manager set")
	}

	handler, err := m.connectionMgr.NewConnection(ctx, &conn)
	if err != nil {
		return err
	}
	m.logger.Infow("client connected", zap.Stringer("uuid", handler.UUID()))
	conn.Go(ctx, handler.HandleReq)

	// Block until the connection is closed.
	<-conn.Done()

	m.connectionMgr.RemoveConnection(ctx, handler.UUID())
	m.logger.Infow("client disconnected", zap.Stringer("uuid", handler.UUID()))

	return conn.Err()
}

// RegisterConnectionManager sets the connection manager, which keeps track of current active connections and provides a Router implementation.
func (m *module) RegisterConnectionManager(connectionMgr ConnectionManager) error {
	if m.connectionMgr != nil {
		return errors.New("cannot register a duplicate connection manager")
	}
	m.connectionMgr = connectionMgr
	return nil
}

// setup should be called after creation of a new handler to set initial values.
func (m *module) setup() error {
	if m.Address == "" {
		return errors.New("setup called before address is set")
	}

	ln, err := net.Listen("tcp", m.Address)
	if err != nil {
		return err
	}
	m.ln = ln
	return nil
}

// start serves connections until the listener is closed.
func (m *module) start() {
	address := m.ln.Addr().String()
	if err := m.serverInfoFile.UpdateField(_outputKey, address); err != nil {
		m.logger.Errorw("unable to publish JSON-RPC address", zap.Error(err))
	}

	m.logger.Infow("started JSON-RPC inbound", zap.String("address", address))
	if err := jsonrpc2.Serve(context.Background(), m.ln, m, 0); err != nil {
		select {
		case <-m.done:
		default:
			m.logger.Errorw("JSON-RPC inbound stopped", zap.Error(err))
		}
	}
}

// serveStdio serves the single editor that launched the process, and shuts the app down when it disconnects.
func (m *module) serveStdio() {
	m.logger.Infow("started JSON-RPC inbound", zap.String("address", AddressStdio))
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(m.stdio))
	if err := m.ServeStream(context.Background(), conn); err != nil && !errors.Is(err, io.EOF) {
		m.logger.Warnw("stdio connection closed", zap.Error(err))
	}
	if m.shutdowner != nil {
		m.shutdowner.Shutdown()
	}
}

// processConfig will parse the configuration for any values required by this module.
func (m *module) processConfig(cfg config.Provider) error {
	val := cfg.Get(_configKeyAddress)
	if err := val.Populate(&m.Address); err != nil {
		return fmt.Errorf("getting config field %q: %w", _configKeyAddress, err)
	}

	if m.Address == "" {
		return fmt.Errorf("missing field %q in config", _configKeyAddress)
	}

	return nil
}

type stdioStream struct{}

func (stdioStream) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioStream) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioStream) Close() error {
	return errors.Join(os.Stdin.Close(), os.Stdout.Close())
}
