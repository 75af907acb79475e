// Package conn owns the lifecycle of the single push-channel connection per
// session: credential acquisition, dial, ordered frame delivery, bounded
// reconnection, and the join-room handshake on every successful connect.
package conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bakeline/ordersync/internal/domain"
	"github.com/bakeline/ordersync/internal/wire"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

var (
	// ErrUnauthenticated means no credential could be acquired at all; the
	// caller must force a fresh login.
	ErrUnauthenticated = errors.New("no valid credential available")
	// ErrAuthRejected means the server refused the credential we presented;
	// it has been discarded and the caller must force a fresh login.
	ErrAuthRejected = errors.New("credential rejected by server")
	ErrClosed       = errors.New("connection manager closed")
)

// CredentialSource supplies the opaque bearer token for the push channel.
// *pull.Client implements it.
type CredentialSource interface {
	SocketToken(ctx context.Context) (string, error)
	Invalidate()
}

// Socket is one live push-channel connection. The production implementation
// wraps a websocket; tests substitute an in-memory pair via Options.Dial.
type Socket interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// DialFunc establishes a Socket. It must return ErrAuthRejected (possibly
// wrapped) when the server refuses the bearer credential.
type DialFunc func(ctx context.Context, url, token string) (Socket, error)

type Options struct {
	URL         string
	Session     domain.Session
	Credentials CredentialSource
	Logger      *slog.Logger
	Dial        DialFunc // defaults to the websocket dialer

	DialTimeout          time.Duration // default 10s
	CredentialAttempts   int           // default 3, fixed backoff between them
	CredentialRetryDelay time.Duration // default 500ms
	ReconnectAttempts    int           // default 8
	ReconnectBaseDelay   time.Duration // default 500ms
	ReconnectMaxDelay    time.Duration // default 30s
}

type Manager struct {
	opts   Options
	logger *slog.Logger

	mu              sync.Mutex
	state           State
	sock            Socket
	generation      int
	closed          bool
	readCancel      context.CancelFunc
	reconnectCancel context.CancelFunc

	frameFns     []func(data []byte)
	reconnectFns []func()
	stateFns     []func(State)

	wg sync.WaitGroup
}

func New(opts Options) (*Manager, error) {
	if opts.URL == "" {
		return nil, errors.New("push-channel url is required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("credential source is required")
	}
	if err := opts.Session.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Dial == nil {
		opts.Dial = dialWebsocket
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.CredentialAttempts <= 0 {
		opts.CredentialAttempts = 3
	}
	if opts.CredentialRetryDelay <= 0 {
		opts.CredentialRetryDelay = 500 * time.Millisecond
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = 8
	}
	if opts.ReconnectBaseDelay <= 0 {
		opts.ReconnectBaseDelay = 500 * time.Millisecond
	}
	if opts.ReconnectMaxDelay <= 0 {
		opts.ReconnectMaxDelay = 30 * time.Second
	}
	return &Manager{
		opts:   opts,
		logger: opts.Logger,
		state:  StateDisconnected,
	}, nil
}

// OnFrame registers a handler for inbound frames. Handlers run on the read
// goroutine, preserving server-send order. Register before Connect.
func (m *Manager) OnFrame(fn func(data []byte)) {
	m.mu.Lock()
	m.frameFns = append(m.frameFns, fn)
	m.mu.Unlock()
}

// OnReconnect registers a callback fired after every successful reconnect,
// once the subscription scope has been re-established. A reconnect is a
// potential data-loss window; subscribers use this to trigger
// reconciliation.
func (m *Manager) OnReconnect(fn func()) {
	m.mu.Lock()
	m.reconnectFns = append(m.reconnectFns, fn)
	m.mu.Unlock()
}

func (m *Manager) OnStateChange(fn func(State)) {
	m.mu.Lock()
	m.stateFns = append(m.stateFns, fn)
	m.mu.Unlock()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Connected() bool { return m.State() == StateConnected }

// Connect acquires a credential and establishes the push channel. Calling
// it on a live manager tears the previous socket down first, so exactly one
// connection exists per session.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.teardownLocked()
	m.generation++
	gen := m.generation
	m.mu.Unlock()

	m.setState(StateConnecting)

	token, err := m.acquireToken(ctx)
	if err != nil {
		m.setState(StateFailed)
		return err
	}
	sock, err := m.dialOnce(ctx, token)
	if err != nil {
		if errors.Is(err, ErrAuthRejected) {
			m.opts.Credentials.Invalidate()
			m.setState(StateFailed)
			return fmt.Errorf("connect: %w", ErrAuthRejected)
		}
		// Transient dial failure: fall into the bounded reconnect ladder
		// rather than giving up on the first attempt.
		m.logger.Warn("conn.dial_failed", "error", err)
		if sock = m.redial(ctx, gen); sock == nil {
			m.setState(StateFailed)
			return fmt.Errorf("connect: attempts exhausted")
		}
	}
	return m.install(sock, gen, false)
}

// Disconnect closes the socket and stops reconnection. The manager can be
// connected again for the same session.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.generation++
	m.teardownLocked()
	m.mu.Unlock()
	m.setState(StateDisconnected)
	m.wg.Wait()
}

// Close is Disconnect plus a terminal closed mark for session teardown.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.generation++
	m.teardownLocked()
	m.mu.Unlock()
	m.setState(StateDisconnected)
	m.wg.Wait()
}

// Emit sends one outbound frame. When the channel is not connected the
// frame is dropped with a logged warning; it is never queued.
func (m *Manager) Emit(name string, payload any) {
	m.mu.Lock()
	sock := m.sock
	state := m.state
	m.mu.Unlock()
	if state != StateConnected || sock == nil {
		m.logger.Warn("conn.emit_dropped", "event", name, "state", string(state))
		return
	}
	data, err := wire.EncodeFrame(name, payload)
	if err != nil {
		m.logger.Warn("conn.emit_encode_failed", "event", name, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.DialTimeout)
	defer cancel()
	if err := sock.Write(ctx, data); err != nil {
		m.logger.Warn("conn.emit_failed", "event", name, "error", err)
	}
}

func (m *Manager) acquireToken(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= m.opts.CredentialAttempts; attempt++ {
		token, err := m.opts.Credentials.SocketToken(ctx)
		if err == nil && token != "" {
			return token, nil
		}
		lastErr = err
		if attempt < m.opts.CredentialAttempts {
			if waitErr := sleepCtx(ctx, m.opts.CredentialRetryDelay); waitErr != nil {
				return "", waitErr
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("credential source returned an empty token")
	}
	return "", fmt.Errorf("%w: %v", ErrUnauthenticated, lastErr)
}

func (m *Manager) dialOnce(ctx context.Context, token string) (Socket, error) {
	dialCtx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
	defer cancel()
	return m.opts.Dial(dialCtx, m.opts.URL, token)
}

// install wires a freshly dialed socket: join-room handshake, read loop,
// reconnect callbacks when this connect replaced a dropped one.
func (m *Manager) install(sock Socket, gen int, isReconnect bool) error {
	readCtx, readCancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.closed || gen != m.generation {
		m.mu.Unlock()
		readCancel()
		_ = sock.Close()
		return ErrClosed
	}
	m.sock = sock
	m.readCancel = readCancel
	reconnectFns := append([]func(){}, m.reconnectFns...)
	m.mu.Unlock()

	m.setState(StateConnected)
	m.joinRoom()

	if isReconnect {
		for _, fn := range reconnectFns {
			fn()
		}
	}

	m.wg.Add(1)
	go m.readLoop(readCtx, sock, gen)
	return nil
}

func (m *Manager) joinRoom() {
	m.Emit(wire.ControlJoinRoom, wire.JoinRoom(m.opts.Session))
}

func (m *Manager) readLoop(ctx context.Context, sock Socket, gen int) {
	defer m.wg.Done()
	for {
		data, err := sock.Read(ctx)
		if err != nil {
			m.mu.Lock()
			stale := m.closed || gen != m.generation
			m.mu.Unlock()
			if stale || ctx.Err() != nil {
				return
			}
			m.logger.Warn("conn.read_failed", "error", err)
			m.wg.Add(1)
			go m.reconnect(gen)
			return
		}
		m.mu.Lock()
		fns := append([]func([]byte){}, m.frameFns...)
		m.mu.Unlock()
		for _, fn := range fns {
			fn(data)
		}
	}
}

func (m *Manager) reconnect(prevGen int) {
	defer m.wg.Done()

	m.mu.Lock()
	if m.closed || prevGen != m.generation {
		m.mu.Unlock()
		return
	}
	m.generation++
	gen := m.generation
	if m.sock != nil {
		_ = m.sock.Close()
		m.sock = nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.reconnectCancel = cancel
	m.mu.Unlock()
	defer cancel()

	m.setState(StateReconnecting)
	if sock := m.redial(ctx, gen); sock != nil {
		_ = m.install(sock, gen, true)
		return
	}
	m.mu.Lock()
	abandoned := m.closed || gen != m.generation
	m.mu.Unlock()
	if !abandoned {
		m.logger.Error("conn.reconnect_exhausted", "attempts", m.opts.ReconnectAttempts)
		m.setState(StateFailed)
	}
}

// redial runs the bounded reconnect ladder with capped-exponential delays.
// A server-side credential rejection aborts immediately: retrying with the
// same stale token would be useless, so the credential is discarded and the
// manager fails terminally.
func (m *Manager) redial(ctx context.Context, gen int) Socket {
	delay := m.opts.ReconnectBaseDelay
	for attempt := 1; attempt <= m.opts.ReconnectAttempts; attempt++ {
		m.mu.Lock()
		stale := m.closed || gen != m.generation
		m.mu.Unlock()
		if stale {
			return nil
		}

		token, err := m.opts.Credentials.SocketToken(ctx)
		if err == nil && token != "" {
			sock, dialErr := m.dialOnce(ctx, token)
			if dialErr == nil {
				return sock
			}
			if errors.Is(dialErr, ErrAuthRejected) {
				m.opts.Credentials.Invalidate()
				m.logger.Error("conn.auth_rejected")
				return nil
			}
			err = dialErr
		}
		m.logger.Warn("conn.reconnect_attempt_failed", "attempt", attempt, "error", err)

		if attempt == m.opts.ReconnectAttempts {
			break
		}
		if sleepCtx(ctx, delay) != nil {
			return nil
		}
		delay *= 2
		if delay > m.opts.ReconnectMaxDelay {
			delay = m.opts.ReconnectMaxDelay
		}
	}
	return nil
}

func (m *Manager) teardownLocked() {
	if m.reconnectCancel != nil {
		m.reconnectCancel()
		m.reconnectCancel = nil
	}
	if m.readCancel != nil {
		m.readCancel()
		m.readCancel = nil
	}
	if m.sock != nil {
		_ = m.sock.Close()
		m.sock = nil
	}
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	fns := append([]func(State){}, m.stateFns...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}

func sleepCtx(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
