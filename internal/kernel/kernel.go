package kernel

import (
	"context"

	"github.com/divyansshhh/jupyterlab/internal/events"
	"github.com/divyansshhh/jupyterlab/internal/shared/types"
)

// Status is the kernel execution state as reported on the iopub channel.
type Status string

const (
	StatusUnknown    Status = "unknown"
	StatusStarting   Status = "starting"
	StatusIdle       Status = "idle"
	StatusBusy       Status = "busy"
	StatusRestarting Status = "restarting"
	StatusDead       Status = "dead"
)

// ConnectionStatus is the state of the websocket link to the kernel.
type ConnectionStatus string

const (
	Connecting   ConnectionStatus = "connecting"
	Connected    ConnectionStatus = "connected"
	Disconnected ConnectionStatus = "disconnected"
)

// Message is a kernel protocol message in opaque form. Payloads are
// passed through untouched; this layer only classifies by channel.
type Message struct {
	Channel string
	Type    string
	Raw     []byte
}

// Handle is a client-side proxy for a remote kernel process. A session
// connection exclusively owns its handle; Dispose releases the
// underlying link and detaches all listeners.
type Handle interface {
	ID() string
	Name() string

	StatusChanged() *events.Signal[Status]
	ConnectionStatusChanged() *events.Signal[ConnectionStatus]
	IOPubMessage() *events.Signal[Message]
	UnhandledMessage() *events.Signal[Message]
	AnyMessage() *events.Signal[Message]

	Dispose()
}

// Connector produces a kernel handle for a kernel identity at an
// endpoint. Injected into session connections so that tests and
// alternative transports can substitute the websocket default.
type Connector func(ctx context.Context, ref types.KernelRef, endpoint string) (Handle, error)
