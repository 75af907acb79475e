package engine

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/bakeline/ordersync/internal/config"
	"github.com/bakeline/ordersync/internal/conn"
	"github.com/bakeline/ordersync/internal/dedup"
	"github.com/bakeline/ordersync/internal/domain"
	"github.com/bakeline/ordersync/internal/notify"
	"github.com/bakeline/ordersync/internal/pull"
	"github.com/bakeline/ordersync/internal/reconcile"
	"github.com/bakeline/ordersync/internal/store"
)

// Client binds one session to its connection, store, reconciler and
// pipeline. Its lifetime is the session's: a user switch means stopping
// this client and creating a new one, which is what tears down the prior
// connection.
type Client struct {
	session domain.Session
	logger  *slog.Logger

	api     *pull.Client
	store   *store.Store
	rec     *reconcile.Reconciler
	manager *conn.Manager
	engine  *Engine

	mu      sync.Mutex
	started bool
}

// ClientOptions carries the pieces the caller chooses; zero values fall
// back to config defaults.
type ClientOptions struct {
	Config   config.Config
	Session  domain.Session
	APIToken string
	Sink     notify.Sink
	Logger   *slog.Logger

	// Dial overrides the websocket dialer, for tests.
	Dial conn.DialFunc
}

func NewClient(opts ClientOptions) (*Client, error) {
	if err := opts.Session.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := pull.NewClient(opts.Config.APIBaseURL, opts.APIToken, &http.Client{Timeout: opts.Config.RequestTimeout})
	st := store.New(logger)
	rec := reconcile.New(api, st, reconcile.Options{
		Debounce: opts.Config.DebounceWindow,
		Logger:   logger,
	})
	notifier := notify.NewDispatcher(opts.Sink, opts.Config.DedupCapacity)
	seen := dedup.NewSet(opts.Config.DedupCapacity)
	eng := New(opts.Session, st, seen, rec, notifier, logger)

	manager, err := conn.New(conn.Options{
		URL:                  opts.Config.SocketURL,
		Session:              opts.Session,
		Credentials:          api,
		Logger:               logger,
		Dial:                 opts.Dial,
		CredentialAttempts:   opts.Config.CredentialAttempts,
		CredentialRetryDelay: opts.Config.CredentialRetryDelay,
		ReconnectAttempts:    opts.Config.ReconnectAttempts,
		ReconnectBaseDelay:   opts.Config.ReconnectBaseDelay,
		ReconnectMaxDelay:    opts.Config.ReconnectMaxDelay,
	})
	if err != nil {
		return nil, err
	}

	manager.OnFrame(eng.HandleFrame)
	// Delivery order across a reconnect boundary is not guaranteed, so every
	// tracked entity gets an authoritative refetch.
	manager.OnReconnect(func() {
		rec.TriggerAll(st.TrackedKeys())
	})

	return &Client{
		session: opts.Session,
		logger:  logger,
		api:     api,
		store:   st,
		rec:     rec,
		manager: manager,
		engine:  eng,
	}, nil
}

// Start connects the push channel. Safe to call again after a Failed state;
// it re-dials with a fresh credential.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	return c.manager.Connect(ctx)
}

// Stop tears the session down: connection, pending reconciliations.
func (c *Client) Stop() {
	c.mu.Lock()
	started := c.started
	c.started = false
	c.mu.Unlock()
	if !started {
		return
	}
	c.manager.Close()
	c.rec.Close()
}

func (c *Client) Session() domain.Session { return c.session }

func (c *Client) Store() *store.Store { return c.store }

func (c *Client) ConnectionState() conn.State { return c.manager.State() }

func (c *Client) OnConnState(fn func(conn.State)) { c.manager.OnStateChange(fn) }

// ApplyLocal applies an optimistic user-initiated patch (for example
// "I started this task") ahead of server confirmation. A later
// authoritative event or reconciliation overwrite corrects it if the server
// disagrees.
func (c *Client) ApplyLocal(patch domain.Patch) store.ApplyResult {
	result := c.store.Apply(patch)
	for _, key := range result.Reconcile {
		c.rec.Trigger(key)
	}
	return result
}

// Emit forwards a user action over the push channel.
func (c *Client) Emit(name string, payload any) {
	c.manager.Emit(name, payload)
}

// Prime seeds the store with an initial pull fetch for the given orders,
// the way a view primes its projection on mount.
func (c *Client) Prime(ctx context.Context, keys []domain.EntityKey) error {
	for _, key := range keys {
		switch key.Kind {
		case domain.KindFactoryOrder:
			order, err := c.api.FactoryOrderByID(ctx, key.ID)
			if err != nil {
				return err
			}
			c.store.ReplaceFactoryOrder(order)
		default:
			order, err := c.api.OrderByID(ctx, key.ID)
			if err != nil {
				return err
			}
			c.store.ReplaceOrder(order)
		}
	}
	return nil
}

// Release is the view-unmount hook: it cancels pending reconciliation for
// the entity and evicts it. It does not touch the shared connection.
func (c *Client) Release(key domain.EntityKey) {
	c.rec.CancelPending(key)
	c.store.Evict(key)
}
