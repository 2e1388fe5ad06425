package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/divyansshhh/jupyterlab/internal/events"
	"github.com/divyansshhh/jupyterlab/internal/infrastructure/logging"
	"github.com/divyansshhh/jupyterlab/internal/infrastructure/monitoring"
	"github.com/divyansshhh/jupyterlab/internal/kernel"
	"github.com/divyansshhh/jupyterlab/internal/shared/types"
)

// API is the slice of the transport collaborator a connection needs.
type API interface {
	Patch(ctx context.Context, id string, body types.PatchBody) (types.SessionRecord, error)
	Delete(ctx context.Context, id string) error
	Endpoint() string
}

// State is the per-connection update state machine. Idle accepts
// server-driven updates; Patching drops them so a stale concurrent
// fetch cannot clobber a just-submitted change.
type State int

const (
	StateIdle State = iota
	StatePatching
)

// Property names a session field reported by PropertyChanged.
type Property string

const (
	PropertyName Property = "name"
	PropertyType Property = "type"
	PropertyPath Property = "path"
)

// KernelChange carries the old and new kernel handles across a kernel
// identity change. Either side may be nil.
type KernelChange struct {
	Old kernel.Handle
	New kernel.Handle
}

// Deps are the collaborators injected into a connection.
type Deps struct {
	API     API
	Connect kernel.Connector
	Log     *logging.Logger
	Metrics *monitoring.Metrics
}

// Connection is the stateful local proxy for one server-side session.
// The id never changes for the lifetime of an instance; path, type,
// and name mirror the last-known server record.
type Connection struct {
	id   string
	deps Deps
	log  *logging.Logger

	mu        sync.Mutex
	path      string
	typ       string
	name      string
	kernelRef *types.KernelRef
	handle    kernel.Handle
	state     State
	disposed  bool
	unbind    []func()

	// Outward event streams. Synchronous dispatch, no replay.
	Disposed        *events.Signal[struct{}]
	KernelChanged   *events.Signal[KernelChange]
	PropertyChanged *events.Signal[Property]

	// Proxied kernel streams, rewired atomically on kernel swap.
	StatusChanged           *events.Signal[kernel.Status]
	ConnectionStatusChanged *events.Signal[kernel.ConnectionStatus]
	IOPubMessage            *events.Signal[kernel.Message]
	UnhandledMessage        *events.Signal[kernel.Message]
	AnyMessage              *events.Signal[kernel.Message]
}

// New constructs a connection from a validated record, establishing
// the kernel handle when the record names one.
func New(ctx context.Context, rec types.SessionRecord, deps Deps) (*Connection, error) {
	if deps.Log == nil {
		deps.Log = logging.NewNop()
	}

	c := &Connection{
		id:   rec.ID,
		deps: deps,
		log:  deps.Log.Component("session"),
		path: rec.Path,
		typ:  rec.Type,
		name: rec.Name,

		Disposed:        events.NewSignal[struct{}](),
		KernelChanged:   events.NewSignal[KernelChange](),
		PropertyChanged: events.NewSignal[Property](),

		StatusChanged:           events.NewSignal[kernel.Status](),
		ConnectionStatusChanged: events.NewSignal[kernel.ConnectionStatus](),
		IOPubMessage:            events.NewSignal[kernel.Message](),
		UnhandledMessage:        events.NewSignal[kernel.Message](),
		AnyMessage:              events.NewSignal[kernel.Message](),
	}

	if rec.Kernel != nil {
		h, err := c.deps.Connect(ctx, *rec.Kernel, deps.API.Endpoint())
		if err != nil {
			return nil, fmt.Errorf("failed to connect kernel for session %s: %w", rec.ID, err)
		}
		ref := *rec.Kernel
		c.kernelRef = &ref
		c.handle = h
		c.wireKernel(h)
	}

	return c, nil
}

// ID returns the immutable session id.
func (c *Connection) ID() string { return c.id }

// Path returns the last-known session path.
func (c *Connection) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Type returns the last-known session type.
func (c *Connection) Type() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typ
}

// Name returns the last-known session display name.
func (c *Connection) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Kernel returns the owned kernel handle, or nil.
func (c *Connection) Kernel() kernel.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// IsDisposed reports whether Dispose has been called. Monotonic.
func (c *Connection) IsDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// State returns the current update state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Model returns a snapshot combining the current identity fields with
// the current kernel's identity, or a nil kernel field.
func (c *Connection) Model() types.SessionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := types.SessionRecord{
		ID:   c.id,
		Path: c.path,
		Type: c.typ,
		Name: c.name,
	}
	if c.handle != nil {
		rec.Kernel = &types.KernelRef{ID: c.handle.ID(), Name: c.handle.Name()}
	}
	return rec
}

// Clone returns a brand-new connection carrying the same id and
// current model, built through the same connector, with independent
// event streams and update state. Clones only stay consistent with
// each other through registry reconciliation.
func (c *Connection) Clone(ctx context.Context) (*Connection, error) {
	c.deps.Metrics.ObserveClone()
	return New(ctx, c.Model(), c.deps)
}

// Update applies an authoritative server record, unless a PATCH is in
// flight for this instance, in which case the call is a silent no-op.
// Overwrites path/type/name unconditionally; swaps the kernel handle
// when the kernel identity changed.
func (c *Connection) Update(ctx context.Context, rec types.SessionRecord) error {
	c.mu.Lock()
	disposed, patching := c.disposed, c.state == StatePatching
	c.mu.Unlock()
	if disposed {
		return nil
	}
	if patching {
		c.deps.Metrics.ObserveDroppedUpdate()
		c.log.Debug("dropped concurrent update", zap.String("id", c.id))
		return nil
	}

	return c.apply(ctx, rec)
}

// apply overwrites local state from rec and emits change events. Called
// from Update and from the tail of the patch protocol; the in-flight
// guard lives in Update so a PATCH's own result always lands.
func (c *Connection) apply(ctx context.Context, rec types.SessionRecord) error {
	c.mu.Lock()
	if c.disposed {
		// Late completion after dispose: leave state untouched.
		c.mu.Unlock()
		return nil
	}

	oldName, oldType, oldPath := c.name, c.typ, c.path
	oldRef := c.kernelRef
	oldHandle := c.handle

	c.name, c.typ, c.path = rec.Name, rec.Type, rec.Path
	kernelChanged := !types.SameKernel(oldRef, rec.Kernel)
	if kernelChanged {
		// Kernel-less until the new handle is established; the ref is
		// committed by swapKernel on success so a failed dial leaves
		// the identity unmatched and the next update retries the swap.
		c.kernelRef = nil
		c.handle = nil
	}
	c.mu.Unlock()

	if kernelChanged {
		if err := c.swapKernel(ctx, oldHandle, rec.Kernel); err != nil {
			return err
		}
	}

	// Property events fire per changed field: name, then type, then path.
	if rec.Name != oldName {
		c.PropertyChanged.Emit(PropertyName)
	}
	if rec.Type != oldType {
		c.PropertyChanged.Emit(PropertyType)
	}
	if rec.Path != oldPath {
		c.PropertyChanged.Emit(PropertyPath)
	}

	return nil
}

// swapKernel disposes the old handle, establishes the new one, and
// emits exactly one kernel-changed event. Handle and ref are committed
// together only once the new handle exists; a failed dial leaves the
// connection kernel-less.
func (c *Connection) swapKernel(ctx context.Context, old kernel.Handle, ref *types.KernelRef) error {
	c.teardownKernel(old)

	var next kernel.Handle
	if ref != nil {
		h, err := c.deps.Connect(ctx, *ref, c.deps.API.Endpoint())
		if err != nil {
			return fmt.Errorf("failed to connect kernel for session %s: %w", c.id, err)
		}
		next = h
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		if next != nil {
			next.Dispose()
		}
		return nil
	}
	c.handle = next
	if ref != nil {
		r := *ref
		c.kernelRef = &r
	}
	c.mu.Unlock()

	if next != nil {
		c.wireKernel(next)
	}

	c.deps.Metrics.ObserveKernelChange()
	c.KernelChanged.Emit(KernelChange{Old: old, New: next})
	return nil
}

// wireKernel attaches the fixed table of kernel-to-session stream
// bindings. Torn down as a unit on swap or dispose.
func (c *Connection) wireKernel(h kernel.Handle) {
	bindings := []func(){
		h.StatusChanged().Connect(c.StatusChanged.Emit),
		h.ConnectionStatusChanged().Connect(c.ConnectionStatusChanged.Emit),
		h.IOPubMessage().Connect(c.IOPubMessage.Emit),
		h.UnhandledMessage().Connect(c.UnhandledMessage.Emit),
		h.AnyMessage().Connect(c.AnyMessage.Emit),
	}

	c.mu.Lock()
	c.unbind = bindings
	c.mu.Unlock()
}

// teardownKernel detaches the binding table and disposes the handle.
func (c *Connection) teardownKernel(h kernel.Handle) {
	c.mu.Lock()
	unbind := c.unbind
	c.unbind = nil
	c.mu.Unlock()

	for _, off := range unbind {
		off()
	}
	if h != nil {
		h.Dispose()
	}
}

// SetPath renames the session path server-side.
func (c *Connection) SetPath(ctx context.Context, path string) error {
	_, err := c.patch(ctx, "path", types.PatchBody{Path: &path})
	return err
}

// SetName renames the session server-side.
func (c *Connection) SetName(ctx context.Context, name string) error {
	_, err := c.patch(ctx, "name", types.PatchBody{Name: &name})
	return err
}

// SetType changes the session type server-side.
func (c *Connection) SetType(ctx context.Context, typ string) error {
	_, err := c.patch(ctx, "type", types.PatchBody{Type: &typ})
	return err
}

// ChangeKernel switches the session to a different kernel. The current
// kernel handle is disposed eagerly, before the network call, so the
// session is transiently kernel-less even if the PATCH fails. Returns
// the newly established handle.
func (c *Connection) ChangeKernel(ctx context.Context, spec types.KernelPatch) (kernel.Handle, error) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil, types.ErrDisposed
	}
	old := c.handle
	c.handle = nil
	c.kernelRef = nil
	c.mu.Unlock()

	if old != nil {
		c.teardownKernel(old)
	}

	if _, err := c.patch(ctx, "kernel", types.PatchBody{Kernel: &spec}); err != nil {
		return nil, err
	}
	return c.Kernel(), nil
}

// Shutdown requests server-side deletion of the session. It does not
// dispose the local connection; that happens through registry
// reconciliation or an explicit Dispose call.
func (c *Connection) Shutdown(ctx context.Context) error {
	if c.IsDisposed() {
		return types.ErrDisposed
	}
	return c.deps.API.Delete(ctx, c.id)
}

// Dispose releases the kernel handle, emits the disposed event, and
// detaches all listeners. Idempotent.
func (c *Connection) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	h := c.handle
	c.handle = nil
	c.mu.Unlock()

	c.teardownKernel(h)
	c.deps.Metrics.ObserveDisposal()
	c.log.Debug("session connection disposed", zap.String("id", c.id))

	c.Disposed.Emit(struct{}{})

	c.Disposed.DisconnectAll()
	c.KernelChanged.DisconnectAll()
	c.PropertyChanged.DisconnectAll()
	c.StatusChanged.DisconnectAll()
	c.ConnectionStatusChanged.DisconnectAll()
	c.IOPubMessage.DisconnectAll()
	c.UnhandledMessage.DisconnectAll()
	c.AnyMessage.DisconnectAll()
}

// patch is the shared PATCH protocol: enter Patching, issue the
// request, feed the echoed record through apply, and leave Patching on
// every exit path. The Patching window is what drops externally
// triggered updates; the self-applied record lands because the guard
// lives in Update, not apply.
func (c *Connection) patch(ctx context.Context, field string, body types.PatchBody) (types.SessionRecord, error) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return types.SessionRecord{}, types.ErrDisposed
	}
	c.state = StatePatching
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
	}()

	c.deps.Metrics.ObservePatch(field)

	rec, err := c.deps.API.Patch(ctx, c.id, body)
	if err != nil {
		return types.SessionRecord{}, err
	}

	if err := c.apply(ctx, rec); err != nil {
		return rec, err
	}
	return rec, nil
}
