package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/divyansshhh/jupyterlab/internal/domain/session"
	"github.com/divyansshhh/jupyterlab/internal/infrastructure/logging"
	"github.com/divyansshhh/jupyterlab/internal/infrastructure/monitoring"
	"github.com/divyansshhh/jupyterlab/internal/kernel"
	"github.com/divyansshhh/jupyterlab/internal/shared/types"
)

// API is the full transport contract the registry consumes. It embeds
// the connection-level slice so one client serves both layers.
type API interface {
	session.API
	List(ctx context.Context) ([]types.SessionRecord, error)
	Get(ctx context.Context, id string) (types.SessionRecord, error)
	Create(ctx context.Context, opts types.CreateOptions) (types.SessionRecord, error)
}

// ClientFactory produces a transport client for an endpoint.
type ClientFactory func(endpoint string) API

// Deps are the collaborators injected into a Manager.
type Deps struct {
	Connect kernel.Connector
	Clients ClientFactory
	Log     *logging.Logger
	Metrics *monitoring.Metrics
}

// Manager tracks the set of locally-live session connections per
// server endpoint and reconciles them against authoritative server
// state. It holds non-owning references: disposal is driven by the
// connections themselves or by reconciliation, never by manager
// teardown.
type Manager struct {
	deps Deps
	log  *logging.Logger

	mu      sync.Mutex
	clients map[string]API
	tracked map[string][]*session.Connection
}

// NewManager creates a session registry.
func NewManager(deps Deps) *Manager {
	if deps.Log == nil {
		deps.Log = logging.NewNop()
	}
	return &Manager{
		deps:    deps,
		log:     deps.Log.Component("registry"),
		clients: make(map[string]API),
		tracked: make(map[string][]*session.Connection),
	}
}

// api returns the cached transport client for an endpoint.
func (m *Manager) api(endpoint string) API {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clients[endpoint]; ok {
		return c
	}
	c := m.deps.Clients(endpoint)
	m.clients[endpoint] = c
	return c
}

// find returns the tracked connection with the given id, if any.
func (m *Manager) find(endpoint, id string) *session.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conn := range m.tracked[endpoint] {
		if conn.ID() == id {
			return conn
		}
	}
	return nil
}

// snapshot returns a stable copy of the tracked set for an endpoint.
func (m *Manager) snapshot(endpoint string) []*session.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	conns := make([]*session.Connection, len(m.tracked[endpoint]))
	copy(conns, m.tracked[endpoint])
	return conns
}

// track adds a connection to the endpoint set, keeping at most one
// tracked instance per session id, and untracks it on disposal.
func (m *Manager) track(endpoint string, conn *session.Connection) {
	m.mu.Lock()
	for _, existing := range m.tracked[endpoint] {
		if existing.ID() == conn.ID() {
			// Another handle for this id is already tracked; the new
			// one lives untracked, like a clone.
			m.mu.Unlock()
			return
		}
	}
	m.tracked[endpoint] = append(m.tracked[endpoint], conn)
	m.mu.Unlock()

	m.deps.Metrics.TrackSession()
	conn.Disposed.Connect(func(struct{}) {
		m.untrack(endpoint, conn)
	})
}

// untrack removes a connection from the endpoint set.
func (m *Manager) untrack(endpoint string, conn *session.Connection) {
	m.mu.Lock()
	conns := m.tracked[endpoint]
	for i, c := range conns {
		if c == conn {
			m.tracked[endpoint] = append(conns[:i], conns[i+1:]...)
			m.mu.Unlock()
			m.deps.Metrics.UntrackSession()
			return
		}
	}
	m.mu.Unlock()
}

// newConnection wraps a record in a tracked connection.
func (m *Manager) newConnection(ctx context.Context, rec types.SessionRecord, endpoint string) (*session.Connection, error) {
	conn, err := session.New(ctx, rec, session.Deps{
		API:     m.api(endpoint),
		Connect: m.deps.Connect,
		Log:     m.deps.Log,
		Metrics: m.deps.Metrics,
	})
	if err != nil {
		return nil, err
	}
	m.track(endpoint, conn)
	return conn, nil
}

// ConnectTo returns a connection for a known record. If a connection
// for the record's id is already tracked at the endpoint, a fresh,
// independently-evented clone of it is returned; otherwise a new
// connection is constructed and tracked.
func (m *Manager) ConnectTo(ctx context.Context, rec types.SessionRecord, endpoint string) (*session.Connection, error) {
	if existing := m.find(endpoint, rec.ID); existing != nil {
		return existing.Clone(ctx)
	}
	return m.newConnection(ctx, rec, endpoint)
}

// FindByID resolves a session model by id: tracked connections first,
// then the server. Misses on both surface ErrNotFound.
func (m *Manager) FindByID(ctx context.Context, id, endpoint string) (types.SessionRecord, error) {
	if conn := m.find(endpoint, id); conn != nil {
		return conn.Model(), nil
	}
	return m.api(endpoint).Get(ctx, id)
}

// FindByPath resolves a session model by path: tracked connections
// first, then a server list filtered by path.
func (m *Manager) FindByPath(ctx context.Context, path, endpoint string) (types.SessionRecord, error) {
	for _, conn := range m.snapshot(endpoint) {
		if conn.Path() == path {
			return conn.Model(), nil
		}
	}

	records, err := m.api(endpoint).List(ctx)
	if err != nil {
		return types.SessionRecord{}, err
	}
	for _, rec := range records {
		if rec.Path == path {
			return rec, nil
		}
	}
	return types.SessionRecord{}, fmt.Errorf("no session found on path %s: %w", path, types.ErrNotFound)
}

// StartNew creates a session server-side and wraps it in a tracked
// connection. An empty path fails before any network call.
func (m *Manager) StartNew(ctx context.Context, opts types.CreateOptions, endpoint string) (*session.Connection, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("session path is required")
	}

	rec, err := m.api(endpoint).Create(ctx, opts)
	if err != nil {
		return nil, err
	}
	m.log.Info("session started",
		zap.String("id", rec.ID),
		zap.String("path", rec.Path))
	return m.newConnection(ctx, rec, endpoint)
}

// ShutdownAll lists every server-side session at the endpoint and
// shuts each down concurrently. All requests run to completion; the
// first failure, if any, is returned after the rest have settled.
func (m *Manager) ShutdownAll(ctx context.Context, endpoint string) error {
	api := m.api(endpoint)
	records, err := api.List(ctx)
	if err != nil {
		return err
	}

	var g errgroup.Group
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			return api.Delete(ctx, rec.ID)
		})
	}
	return g.Wait()
}

// UpdateRunningSessions reconciles the tracked set against a freshly
// fetched authoritative list: matching connections get the record
// pushed through Update, connections with no server-side counterpart
// are disposed. Iterates over a stable snapshot so disposals cannot
// skip or double-visit an entry.
func (m *Manager) UpdateRunningSessions(ctx context.Context, records []types.SessionRecord, endpoint string) error {
	m.deps.Metrics.ObserveReconciliation()

	byID := make(map[string]types.SessionRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	var firstErr error
	for _, conn := range m.snapshot(endpoint) {
		if rec, ok := byID[conn.ID()]; ok {
			if err := conn.Update(ctx, rec); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !conn.IsDisposed() {
			m.log.Info("session gone server-side, disposing",
				zap.String("id", conn.ID()))
			conn.Dispose()
		}
	}
	return firstErr
}

// UpdateFromServer pushes a single server-side record into the
// matching tracked connection, if any. Unlike bulk reconciliation it
// never disposes anything.
func (m *Manager) UpdateFromServer(ctx context.Context, rec types.SessionRecord, endpoint string) error {
	if conn := m.find(endpoint, rec.ID); conn != nil {
		return conn.Update(ctx, rec)
	}
	return nil
}

// Refresh fetches the authoritative session list and reconciles the
// tracked set against it.
func (m *Manager) Refresh(ctx context.Context, endpoint string) error {
	records, err := m.api(endpoint).List(ctx)
	if err != nil {
		return err
	}
	return m.UpdateRunningSessions(ctx, records, endpoint)
}

// RunPolling reconciles on a fixed interval until ctx is done. This is
// how server-side terminations by other clients become visible to
// local handles.
func (m *Manager) RunPolling(ctx context.Context, endpoint string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Refresh(ctx, endpoint); err != nil {
				m.log.Warn("session refresh failed", zap.Error(err))
			}
		}
	}
}

// StopIfNeeded shuts a session down when it is the only tracked
// connection open on its path.
func (m *Manager) StopIfNeeded(ctx context.Context, path, endpoint string) error {
	var matches []*session.Connection
	for _, conn := range m.snapshot(endpoint) {
		if conn.Path() == path && !conn.IsDisposed() {
			matches = append(matches, conn)
		}
	}
	if len(matches) == 1 {
		return matches[0].Shutdown(ctx)
	}
	return nil
}

// Running returns the current models of all live tracked connections
// at the endpoint.
func (m *Manager) Running(endpoint string) []types.SessionRecord {
	conns := m.snapshot(endpoint)
	records := make([]types.SessionRecord, 0, len(conns))
	for _, conn := range conns {
		if !conn.IsDisposed() {
			records = append(records, conn.Model())
		}
	}
	return records
}
