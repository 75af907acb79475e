package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bakeline/ordersync/internal/config"
	"github.com/bakeline/ordersync/internal/conn"
	"github.com/bakeline/ordersync/internal/domain"
	"github.com/bakeline/ordersync/internal/store"
)

type clientRead struct {
	data []byte
	err  error
}

type clientSocket struct {
	inbound chan clientRead
	closed  chan struct{}
	once    sync.Once
}

func newClientSocket() *clientSocket {
	return &clientSocket{
		inbound: make(chan clientRead, 16),
		closed:  make(chan struct{}),
	}
}

func (s *clientSocket) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, errors.New("socket closed")
	case r := <-s.inbound:
		return r.data, r.err
	}
}

func (s *clientSocket) Write(context.Context, []byte) error { return nil }

func (s *clientSocket) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *clientSocket) failRead(err error) { s.inbound <- clientRead{err: err} }

type clientDialer struct {
	mu      sync.Mutex
	sockets []*clientSocket
}

func (d *clientDialer) dial(context.Context, string, string) (conn.Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sockets) == 0 {
		return nil, errors.New("no socket available")
	}
	next := d.sockets[0]
	d.sockets = d.sockets[1:]
	return next, nil
}

// apiServer fakes the pull-side REST collaborator: socket-token issuance and
// authoritative order reads, counting fetches per order.
type apiServer struct {
	server  *httptest.Server
	mu      sync.Mutex
	orders  map[string]domain.Order
	fetches map[string]int
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	a := &apiServer{
		orders:  map[string]domain.Order{},
		fetches: map[string]int{},
	}
	a.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/auth/socket-token":
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "sock-tok"})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/orders/"):
			id := strings.TrimPrefix(r.URL.Path, "/v1/orders/")
			a.mu.Lock()
			a.fetches[id]++
			order, ok := a.orders[id]
			a.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(order)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(a.server.Close)
	return a
}

func (a *apiServer) setOrder(o domain.Order) {
	a.mu.Lock()
	a.orders[o.ID] = o
	a.mu.Unlock()
}

func (a *apiServer) fetchCount(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetches[id]
}

func newTestClient(t *testing.T, api *apiServer, dialer *clientDialer) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.APIBaseURL = api.server.URL
	cfg.SocketURL = "ws://push.test/v1/events"
	cfg.DebounceWindow = 20 * time.Millisecond
	client, err := NewClient(ClientOptions{
		Config:   cfg,
		Session:  chefSession(),
		APIToken: "api-tok",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Dial:     dialer.dial,
	})
	require.NoError(t, err)
	return client
}

func waitChange(t *testing.T, ch <-chan store.Change) store.Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an authoritative store change")
		return store.Change{}
	}
}

func subscribeAuthoritative(client *Client) (<-chan store.Change, func()) {
	ch := make(chan store.Change, 4)
	cancel := client.Store().Subscribe(func(c store.Change) {
		if c.Authoritative {
			ch <- c
		}
	})
	return ch, cancel
}

func TestReconnectRefetchesTrackedOrdersOnce(t *testing.T) {
	api := newAPIServer(t)
	api.setOrder(domain.Order{
		ID:          "O1",
		OrderNumber: "ORD-1",
		Status:      domain.OrderCompleted,
		Items:       []domain.OrderItem{{ID: "i1", Status: domain.ItemCompleted, AssigneeID: "c1"}},
	})

	sock1 := newClientSocket()
	sock2 := newClientSocket()
	dialer := &clientDialer{sockets: []*clientSocket{sock1, sock2}}
	client := newTestClient(t, api, dialer)
	defer client.Stop()

	res := client.ApplyLocal(domain.OrderCreatedPatch{Kind: domain.KindOrder, Order: domain.Order{
		ID:          "O1",
		OrderNumber: "ORD-1",
		BranchName:  "Central",
		Status:      domain.OrderInProduction,
		Items:       []domain.OrderItem{{ID: "i1", Status: domain.ItemInProgress, AssigneeID: "c1"}},
	}})
	require.True(t, res.Applied)
	require.Empty(t, res.Reconcile)

	auth, cancel := subscribeAuthoritative(client)
	defer cancel()

	require.NoError(t, client.Start(context.Background()))
	require.Equal(t, 0, api.fetchCount("O1"))

	sock1.failRead(errors.New("connection reset"))

	change := waitChange(t, auth)
	require.Equal(t, domain.EntityKey{Kind: domain.KindOrder, ID: "O1"}, change.Key)

	// Leave room for a second, non-coalesced fetch to surface if one were
	// coming.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, api.fetchCount("O1"))

	order, ok := client.Store().Order("O1")
	require.True(t, ok)
	require.Equal(t, domain.OrderCompleted, order.Status)
}

func TestOptimisticApplyIsOverwrittenByAuthoritativeRead(t *testing.T) {
	api := newAPIServer(t)
	api.setOrder(domain.Order{
		ID:          "O1",
		OrderNumber: "ORD-1",
		Status:      domain.OrderCompleted,
		Items:       []domain.OrderItem{{ID: "i1", Status: domain.ItemCompleted, AssigneeID: "c1"}},
	})
	client := newTestClient(t, api, &clientDialer{})

	res := client.ApplyLocal(domain.OrderCreatedPatch{Kind: domain.KindOrder, Order: domain.Order{
		ID:          "O1",
		OrderNumber: "ORD-1",
		BranchName:  "Central",
		Status:      domain.OrderInProduction,
		Items:       []domain.OrderItem{{ID: "i1", Status: domain.ItemInProgress, AssigneeID: "c1"}},
	}})
	require.True(t, res.Applied)

	auth, cancel := subscribeAuthoritative(client)
	defer cancel()

	// The optimistic completion of the last item schedules the confirming
	// fetch; the aggregate status comes from the server, not the patch.
	res = client.ApplyLocal(domain.ItemStatusPatch{
		Kind:    domain.KindOrder,
		OrderID: "O1",
		ItemID:  "i1",
		Status:  domain.ItemCompleted,
	})
	require.True(t, res.Applied)
	require.Equal(t, []domain.EntityKey{{Kind: domain.KindOrder, ID: "O1"}}, res.Reconcile)

	waitChange(t, auth)
	order, ok := client.Store().Order("O1")
	require.True(t, ok)
	require.Equal(t, domain.OrderCompleted, order.Status)
	require.Equal(t, 1, api.fetchCount("O1"))
}

func TestPrimeSeedsAndReleaseEvicts(t *testing.T) {
	api := newAPIServer(t)
	api.setOrder(domain.Order{ID: "O1", OrderNumber: "ORD-1", Status: domain.OrderApproved})
	client := newTestClient(t, api, &clientDialer{})

	key := domain.EntityKey{Kind: domain.KindOrder, ID: "O1"}
	require.NoError(t, client.Prime(context.Background(), []domain.EntityKey{key}))

	order, ok := client.Store().Order("O1")
	require.True(t, ok)
	require.Equal(t, "ORD-1", order.OrderNumber)
	require.Equal(t, []domain.EntityKey{key}, client.Store().TrackedKeys())

	client.Release(key)
	_, ok = client.Store().Order("O1")
	require.False(t, ok)
	require.Empty(t, client.Store().TrackedKeys())

	require.Error(t, client.Prime(context.Background(), []domain.EntityKey{{Kind: domain.KindOrder, ID: "O404"}}))
}
