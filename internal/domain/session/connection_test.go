package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divyansshhh/jupyterlab/internal/events"
	"github.com/divyansshhh/jupyterlab/internal/kernel"
	"github.com/divyansshhh/jupyterlab/internal/shared/types"
)

type mockHandle struct {
	id   string
	name string

	mu       sync.Mutex
	disposed int

	status     *events.Signal[kernel.Status]
	connStatus *events.Signal[kernel.ConnectionStatus]
	iopub      *events.Signal[kernel.Message]
	unhandled  *events.Signal[kernel.Message]
	any        *events.Signal[kernel.Message]
}

func newMockHandle(ref types.KernelRef) *mockHandle {
	return &mockHandle{
		id:         ref.ID,
		name:       ref.Name,
		status:     events.NewSignal[kernel.Status](),
		connStatus: events.NewSignal[kernel.ConnectionStatus](),
		iopub:      events.NewSignal[kernel.Message](),
		unhandled:  events.NewSignal[kernel.Message](),
		any:        events.NewSignal[kernel.Message](),
	}
}

func (h *mockHandle) ID() string   { return h.id }
func (h *mockHandle) Name() string { return h.name }

func (h *mockHandle) StatusChanged() *events.Signal[kernel.Status] { return h.status }
func (h *mockHandle) ConnectionStatusChanged() *events.Signal[kernel.ConnectionStatus] {
	return h.connStatus
}
func (h *mockHandle) IOPubMessage() *events.Signal[kernel.Message]     { return h.iopub }
func (h *mockHandle) UnhandledMessage() *events.Signal[kernel.Message] { return h.unhandled }
func (h *mockHandle) AnyMessage() *events.Signal[kernel.Message]       { return h.any }

func (h *mockHandle) Dispose() {
	h.mu.Lock()
	h.disposed++
	h.mu.Unlock()
}

func (h *mockHandle) disposeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disposed
}

type mockAPI struct {
	mu       sync.Mutex
	patched  []types.PatchBody
	deleted  []string
	patchFn  func(id string, body types.PatchBody) (types.SessionRecord, error)
	deleteFn func(id string) error
}

func (a *mockAPI) Patch(_ context.Context, id string, body types.PatchBody) (types.SessionRecord, error) {
	a.mu.Lock()
	a.patched = append(a.patched, body)
	fn := a.patchFn
	a.mu.Unlock()
	if fn == nil {
		return types.SessionRecord{}, errors.New("unexpected patch")
	}
	return fn(id, body)
}

func (a *mockAPI) Delete(_ context.Context, id string) error {
	a.mu.Lock()
	a.deleted = append(a.deleted, id)
	fn := a.deleteFn
	a.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(id)
}

func (a *mockAPI) Endpoint() string { return "http://localhost:8888" }

// connectorTracking returns a connector that records every handle it
// produces.
func connectorTracking(handles *[]*mockHandle) kernel.Connector {
	var mu sync.Mutex
	return func(_ context.Context, ref types.KernelRef, _ string) (kernel.Handle, error) {
		h := newMockHandle(ref)
		mu.Lock()
		*handles = append(*handles, h)
		mu.Unlock()
		return h, nil
	}
}

func record(id, path string, k *types.KernelRef) types.SessionRecord {
	return types.SessionRecord{ID: id, Path: path, Type: "notebook", Name: "nb", Kernel: k}
}

func newTestConnection(t *testing.T, rec types.SessionRecord, api *mockAPI) (*Connection, *[]*mockHandle) {
	t.Helper()
	handles := &[]*mockHandle{}
	conn, err := New(context.Background(), rec, Deps{
		API:     api,
		Connect: connectorTracking(handles),
	})
	require.NoError(t, err)
	return conn, handles
}

func TestNewWiresKernel(t *testing.T) {
	conn, handles := newTestConnection(t,
		record("s1", "/nb.ipynb", &types.KernelRef{ID: "k1", Name: "python3"}), &mockAPI{})

	require.Len(t, *handles, 1)
	require.NotNil(t, conn.Kernel())
	assert.Equal(t, "k1", conn.Kernel().ID())

	var statuses []kernel.Status
	var msgs []kernel.Message
	conn.StatusChanged.Connect(func(s kernel.Status) { statuses = append(statuses, s) })
	conn.IOPubMessage.Connect(func(m kernel.Message) { msgs = append(msgs, m) })

	h := (*handles)[0]
	h.status.Emit(kernel.StatusBusy)
	h.iopub.Emit(kernel.Message{Channel: "iopub", Type: "stream"})

	assert.Equal(t, []kernel.Status{kernel.StatusBusy}, statuses)
	require.Len(t, msgs, 1)
	assert.Equal(t, "stream", msgs[0].Type)
}

func TestNewWithoutKernel(t *testing.T) {
	conn, handles := newTestConnection(t, record("s1", "/nb.ipynb", nil), &mockAPI{})

	assert.Nil(t, conn.Kernel())
	assert.Empty(t, *handles)
	assert.Nil(t, conn.Model().Kernel)
}

func TestUpdateOverwritesFields(t *testing.T) {
	conn, _ := newTestConnection(t, record("s1", "/a.ipynb", nil), &mockAPI{})

	updates := []types.SessionRecord{
		{ID: "s1", Path: "/b.ipynb", Type: "console", Name: "one"},
		{ID: "s1", Path: "/c.ipynb", Type: "notebook", Name: "two"},
	}
	for _, rec := range updates {
		require.NoError(t, conn.Update(context.Background(), rec))
		assert.Equal(t, rec.Path, conn.Path())
		assert.Equal(t, rec.Type, conn.Type())
		assert.Equal(t, rec.Name, conn.Name())
	}
}

func TestUpdatePropertyEventOrder(t *testing.T) {
	conn, _ := newTestConnection(t, record("s1", "/a.ipynb", nil), &mockAPI{})

	var props []Property
	conn.PropertyChanged.Connect(func(p Property) { props = append(props, p) })

	err := conn.Update(context.Background(), types.SessionRecord{
		ID: "s1", Path: "/b.ipynb", Type: "console", Name: "renamed",
	})
	require.NoError(t, err)

	assert.Equal(t, []Property{PropertyName, PropertyType, PropertyPath}, props)
}

func TestUpdateUnchangedFieldEmitsNothing(t *testing.T) {
	conn, _ := newTestConnection(t, record("s1", "/a.ipynb", nil), &mockAPI{})

	var props []Property
	conn.PropertyChanged.Connect(func(p Property) { props = append(props, p) })

	// Identical values overwrite unconditionally but emit no events.
	err := conn.Update(context.Background(), record("s1", "/a.ipynb", nil))
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestUpdateKernelChanges(t *testing.T) {
	tests := []struct {
		name string
		from *types.KernelRef
		to   *types.KernelRef
	}{
		{"null to non-null", nil, &types.KernelRef{ID: "k1", Name: "python3"}},
		{"non-null to null", &types.KernelRef{ID: "k1", Name: "python3"}, nil},
		{"id A to id B", &types.KernelRef{ID: "k1", Name: "python3"}, &types.KernelRef{ID: "k2", Name: "julia"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, handles := newTestConnection(t, record("s1", "/a.ipynb", tt.from), &mockAPI{})

			var changes []KernelChange
			conn.KernelChanged.Connect(func(ch KernelChange) { changes = append(changes, ch) })

			err := conn.Update(context.Background(), record("s1", "/a.ipynb", tt.to))
			require.NoError(t, err)

			require.Len(t, changes, 1)
			if tt.from == nil {
				assert.Nil(t, changes[0].Old)
			} else {
				require.NotNil(t, changes[0].Old)
				assert.Equal(t, tt.from.ID, changes[0].Old.ID())
				// The previously owned handle is disposed before the swap.
				assert.Equal(t, 1, (*handles)[0].disposeCount())
			}
			if tt.to == nil {
				assert.Nil(t, changes[0].New)
				assert.Nil(t, conn.Kernel())
			} else {
				require.NotNil(t, changes[0].New)
				assert.Equal(t, tt.to.ID, changes[0].New.ID())
				assert.Equal(t, tt.to.ID, conn.Kernel().ID())
			}
		})
	}
}

func TestUpdateSameKernelEmitsNothing(t *testing.T) {
	ref := &types.KernelRef{ID: "k1", Name: "python3"}
	conn, handles := newTestConnection(t, record("s1", "/a.ipynb", ref), &mockAPI{})

	changed := 0
	conn.KernelChanged.Connect(func(KernelChange) { changed++ })

	err := conn.Update(context.Background(), record("s1", "/a.ipynb", ref))
	require.NoError(t, err)

	assert.Zero(t, changed)
	assert.Len(t, *handles, 1)
	assert.Zero(t, (*handles)[0].disposeCount())
}

func TestUpdateKernelSwapRetriesAfterConnectFailure(t *testing.T) {
	var mu sync.Mutex
	fail := true
	handles := &[]*mockHandle{}
	connect := func(_ context.Context, ref types.KernelRef, _ string) (kernel.Handle, error) {
		mu.Lock()
		failing := fail && ref.ID == "k2"
		mu.Unlock()
		if failing {
			return nil, errors.New("dial refused")
		}
		h := newMockHandle(ref)
		mu.Lock()
		*handles = append(*handles, h)
		mu.Unlock()
		return h, nil
	}

	conn, err := New(context.Background(),
		record("s1", "/a.ipynb", &types.KernelRef{ID: "k1", Name: "python3"}),
		Deps{API: &mockAPI{}, Connect: connect})
	require.NoError(t, err)

	changes := 0
	conn.KernelChanged.Connect(func(KernelChange) { changes++ })

	fresh := record("s1", "/a.ipynb", &types.KernelRef{ID: "k2", Name: "python3"})
	require.Error(t, conn.Update(context.Background(), fresh))

	// The old handle was released and nothing replaced it: the
	// connection is transiently kernel-less, not bound to a dead handle.
	assert.Equal(t, 1, (*handles)[0].disposeCount())
	assert.Nil(t, conn.Kernel())
	assert.Nil(t, conn.Model().Kernel)
	assert.Zero(t, changes)

	// Connector recovers; the same authoritative record must still be
	// treated as a kernel change and complete the swap.
	mu.Lock()
	fail = false
	mu.Unlock()
	require.NoError(t, conn.Update(context.Background(), fresh))

	require.NotNil(t, conn.Kernel())
	assert.Equal(t, "k2", conn.Kernel().ID())
	assert.Equal(t, 1, changes)
}

func TestUpdateDroppedDuringPatch(t *testing.T) {
	api := &mockAPI{}
	started := make(chan struct{})
	release := make(chan struct{})
	api.patchFn = func(id string, body types.PatchBody) (types.SessionRecord, error) {
		close(started)
		<-release
		return types.SessionRecord{ID: "s1", Path: "/a.ipynb", Type: "notebook", Name: *body.Name}, nil
	}

	conn, _ := newTestConnection(t, record("s1", "/a.ipynb", nil), api)

	done := make(chan error, 1)
	go func() {
		done <- conn.SetName(context.Background(), "patched")
	}()

	<-started
	// A reconciliation pass racing the in-flight PATCH must be dropped.
	err := conn.Update(context.Background(), types.SessionRecord{
		ID: "s1", Path: "/stale.ipynb", Type: "console", Name: "stale",
	})
	require.NoError(t, err)
	assert.Equal(t, "/a.ipynb", conn.Path())

	close(release)
	require.NoError(t, <-done)

	// Only the PATCH result is visible.
	assert.Equal(t, "patched", conn.Name())
	assert.Equal(t, "/a.ipynb", conn.Path())
	assert.Equal(t, "notebook", conn.Type())
	assert.Equal(t, StateIdle, conn.State())
}

func TestSetNameValueEquality(t *testing.T) {
	api := &mockAPI{}
	api.patchFn = func(id string, body types.PatchBody) (types.SessionRecord, error) {
		return types.SessionRecord{ID: "s1", Path: "/a.ipynb", Type: "notebook", Name: *body.Name}, nil
	}

	conn, _ := newTestConnection(t, types.SessionRecord{
		ID: "s1", Path: "/a.ipynb", Type: "notebook", Name: "x",
	}, api)

	props := 0
	conn.PropertyChanged.Connect(func(Property) { props++ })

	// Setting the name to its current value round-trips but emits
	// nothing: the check is value equality.
	require.NoError(t, conn.SetName(context.Background(), "x"))
	require.Len(t, api.patched, 1)
	assert.Zero(t, props)
	assert.Equal(t, "x", conn.Name())
}

func TestPatchFailureLeavesStateUntouched(t *testing.T) {
	api := &mockAPI{}
	api.patchFn = func(string, types.PatchBody) (types.SessionRecord, error) {
		return types.SessionRecord{}, &types.TransportError{Op: "patch", StatusCode: 500}
	}

	conn, _ := newTestConnection(t, record("s1", "/a.ipynb", nil), api)

	err := conn.SetPath(context.Background(), "/b.ipynb")
	require.Error(t, err)

	assert.Equal(t, "/a.ipynb", conn.Path())
	assert.Equal(t, StateIdle, conn.State(), "Patching must clear on the failure path")
}

func TestChangeKernelEagerDisposal(t *testing.T) {
	api := &mockAPI{}
	var sawNilKernel bool
	api.patchFn = func(id string, body types.PatchBody) (types.SessionRecord, error) {
		return types.SessionRecord{
			ID: "s1", Path: "/a.ipynb", Type: "notebook", Name: "nb",
			Kernel: &types.KernelRef{ID: "k2", Name: *body.Kernel.Name},
		}, nil
	}

	conn, handles := newTestConnection(t,
		record("s1", "/a.ipynb", &types.KernelRef{ID: "k1", Name: "python3"}), api)
	old := (*handles)[0]

	conn.KernelChanged.Connect(func(ch KernelChange) {
		// Old handle was released before the PATCH, so the change
		// event reports a nil old side.
		sawNilKernel = ch.Old == nil
	})

	name := "julia"
	h, err := conn.ChangeKernel(context.Background(), types.KernelPatch{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, 1, old.disposeCount())
	assert.True(t, sawNilKernel)
	require.NotNil(t, h)
	assert.Equal(t, "k2", h.ID())
	assert.Equal(t, "k2", conn.Kernel().ID())
}

func TestChangeKernelFailureLeavesNoKernel(t *testing.T) {
	api := &mockAPI{}
	api.patchFn = func(string, types.PatchBody) (types.SessionRecord, error) {
		return types.SessionRecord{}, &types.TransportError{Op: "patch", StatusCode: 502}
	}

	conn, handles := newTestConnection(t,
		record("s1", "/a.ipynb", &types.KernelRef{ID: "k1", Name: "python3"}), api)

	name := "julia"
	_, err := conn.ChangeKernel(context.Background(), types.KernelPatch{Name: &name})
	require.Error(t, err)

	// Eager disposal: the session is kernel-less even though the PATCH
	// failed.
	assert.Equal(t, 1, (*handles)[0].disposeCount())
	assert.Nil(t, conn.Kernel())
}

func TestCloneIndependence(t *testing.T) {
	conn, _ := newTestConnection(t,
		record("s1", "/a.ipynb", &types.KernelRef{ID: "k1", Name: "python3"}), &mockAPI{})

	clone, err := conn.Clone(context.Background())
	require.NoError(t, err)

	assert.Equal(t, conn.ID(), clone.ID())
	assert.Equal(t, conn.Path(), clone.Path())
	require.NotNil(t, clone.Kernel())
	assert.NotSame(t, conn.Kernel(), clone.Kernel())

	conn.Dispose()
	assert.True(t, conn.IsDisposed())
	assert.False(t, clone.IsDisposed())

	clone.Dispose()
	assert.True(t, clone.IsDisposed())
}

func TestCloneDoesNotObserveOriginalMutations(t *testing.T) {
	conn, _ := newTestConnection(t, record("s1", "/a.ipynb", nil), &mockAPI{})
	clone, err := conn.Clone(context.Background())
	require.NoError(t, err)

	require.NoError(t, conn.Update(context.Background(), types.SessionRecord{
		ID: "s1", Path: "/moved.ipynb", Type: "notebook", Name: "nb",
	}))

	assert.Equal(t, "/moved.ipynb", conn.Path())
	assert.Equal(t, "/a.ipynb", clone.Path())
}

func TestShutdownDoesNotDisposeLocally(t *testing.T) {
	api := &mockAPI{}
	conn, _ := newTestConnection(t, record("s1", "/a.ipynb", nil), api)

	require.NoError(t, conn.Shutdown(context.Background()))
	assert.Equal(t, []string{"s1"}, api.deleted)

	// Local disposal is left to reconciliation or an explicit Dispose.
	assert.False(t, conn.IsDisposed())
}

func TestDisposedOperationsFail(t *testing.T) {
	conn, _ := newTestConnection(t, record("s1", "/a.ipynb", nil), &mockAPI{})
	conn.Dispose()

	assert.ErrorIs(t, conn.SetPath(context.Background(), "/b.ipynb"), types.ErrDisposed)
	assert.ErrorIs(t, conn.SetName(context.Background(), "n"), types.ErrDisposed)
	assert.ErrorIs(t, conn.SetType(context.Background(), "console"), types.ErrDisposed)
	assert.ErrorIs(t, conn.Shutdown(context.Background()), types.ErrDisposed)

	_, err := conn.ChangeKernel(context.Background(), types.KernelPatch{})
	assert.ErrorIs(t, err, types.ErrDisposed)
}

func TestDisposeIdempotent(t *testing.T) {
	conn, handles := newTestConnection(t,
		record("s1", "/a.ipynb", &types.KernelRef{ID: "k1", Name: "python3"}), &mockAPI{})

	disposedEvents := 0
	conn.Disposed.Connect(func(struct{}) { disposedEvents++ })

	conn.Dispose()
	conn.Dispose()

	assert.Equal(t, 1, disposedEvents)
	assert.Equal(t, 1, (*handles)[0].disposeCount(), "kernel handle released exactly once")
}

func TestDisposeDetachesListeners(t *testing.T) {
	conn, _ := newTestConnection(t, record("s1", "/a.ipynb", nil), &mockAPI{})

	fired := 0
	conn.PropertyChanged.Connect(func(Property) { fired++ })
	conn.Dispose()

	// Nothing is deliverable through a disposed instance.
	conn.PropertyChanged.Emit(PropertyName)
	assert.Zero(t, fired)
}

func TestLatePatchCompletionAfterDispose(t *testing.T) {
	api := &mockAPI{}
	started := make(chan struct{})
	release := make(chan struct{})
	api.patchFn = func(id string, body types.PatchBody) (types.SessionRecord, error) {
		close(started)
		<-release
		return types.SessionRecord{ID: "s1", Path: "/late.ipynb", Type: "notebook", Name: "late"}, nil
	}

	conn, _ := newTestConnection(t, record("s1", "/a.ipynb", nil), api)

	done := make(chan error, 1)
	go func() {
		done <- conn.SetPath(context.Background(), "/late.ipynb")
	}()

	<-started
	conn.Dispose()
	close(release)
	require.NoError(t, <-done)

	// The outstanding PATCH ran to completion but did not revive
	// disposed state.
	assert.True(t, conn.IsDisposed())
	assert.Equal(t, "/a.ipynb", conn.Path())
}
