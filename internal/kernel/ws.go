package kernel

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/divyansshhh/jupyterlab/internal/events"
	"github.com/divyansshhh/jupyterlab/internal/infrastructure/logging"
	"github.com/divyansshhh/jupyterlab/internal/shared/types"
)

// wsHandle proxies a kernel over its websocket channels endpoint.
type wsHandle struct {
	id   string
	name string
	conn *websocket.Conn
	log  *logging.Logger

	status     *events.Signal[Status]
	connStatus *events.Signal[ConnectionStatus]
	iopub      *events.Signal[Message]
	unhandled  *events.Signal[Message]
	any        *events.Signal[Message]

	disposeOnce sync.Once
	done        chan struct{}
}

// wireMessage is the subset of the kernel protocol envelope this layer
// inspects. Everything else rides along in Raw.
type wireMessage struct {
	Channel string `json:"channel"`
	Header  struct {
		MsgType string `json:"msg_type"`
	} `json:"header"`
	Content struct {
		ExecutionState string `json:"execution_state"`
	} `json:"content"`
}

// NewWSConnector returns a Connector that dials the kernel's websocket
// channels endpoint. token may be empty for unauthenticated servers.
func NewWSConnector(token string, log *logging.Logger) Connector {
	if log == nil {
		log = logging.NewNop()
	}

	return func(ctx context.Context, ref types.KernelRef, endpoint string) (Handle, error) {
		wsURL, err := channelsURL(endpoint, ref.ID, token)
		if err != nil {
			return nil, err
		}

		h := &wsHandle{
			id:         ref.ID,
			name:       ref.Name,
			log:        log.Component("kernel"),
			status:     events.NewSignal[Status](),
			connStatus: events.NewSignal[ConnectionStatus](),
			iopub:      events.NewSignal[Message](),
			unhandled:  events.NewSignal[Message](),
			any:        events.NewSignal[Message](),
			done:       make(chan struct{}),
		}

		h.connStatus.Emit(Connecting)

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dial kernel %s: %w", ref.ID, err)
		}
		h.conn = conn
		h.connStatus.Emit(Connected)

		go h.readPump()
		return h, nil
	}
}

// channelsURL converts an HTTP endpoint to the kernel channels ws URL.
func channelsURL(endpoint, kernelID, token string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = joinPath(u.Path, "api/kernels/"+kernelID+"/channels")

	q := u.Query()
	q.Set("session_id", uuid.NewString())
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func joinPath(base, rest string) string {
	if base == "" || base == "/" {
		return "/" + rest
	}
	if base[len(base)-1] == '/' {
		return base + rest
	}
	return base + "/" + rest
}

func (h *wsHandle) ID() string   { return h.id }
func (h *wsHandle) Name() string { return h.name }

func (h *wsHandle) StatusChanged() *events.Signal[Status]                     { return h.status }
func (h *wsHandle) ConnectionStatusChanged() *events.Signal[ConnectionStatus] { return h.connStatus }
func (h *wsHandle) IOPubMessage() *events.Signal[Message]                     { return h.iopub }
func (h *wsHandle) UnhandledMessage() *events.Signal[Message]                 { return h.unhandled }
func (h *wsHandle) AnyMessage() *events.Signal[Message]                       { return h.any }

// readPump reads frames until the connection closes, classifying each
// into the outward streams.
func (h *wsHandle) readPump() {
	for {
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			select {
			case <-h.done:
				// Disposed locally; quiet exit.
			default:
				h.log.Debug("kernel websocket closed", zap.String("kernel", h.id), zap.Error(err))
				h.connStatus.Emit(Disconnected)
			}
			return
		}
		h.dispatch(data)
	}
}

// dispatch classifies a single raw frame into the event streams.
func (h *wsHandle) dispatch(data []byte) {
	var wire wireMessage
	if err := sonic.Unmarshal(data, &wire); err != nil {
		h.log.Debug("undecodable kernel message", zap.String("kernel", h.id), zap.Error(err))
		return
	}

	msg := Message{Channel: wire.Channel, Type: wire.Header.MsgType, Raw: data}
	h.any.Emit(msg)

	if wire.Channel == "iopub" {
		h.iopub.Emit(msg)
		if wire.Header.MsgType == "status" && wire.Content.ExecutionState != "" {
			h.status.Emit(Status(wire.Content.ExecutionState))
		}
		return
	}

	h.unhandled.Emit(msg)
}

// Dispose closes the websocket link and detaches all listeners.
// Idempotent.
func (h *wsHandle) Dispose() {
	h.disposeOnce.Do(func() {
		close(h.done)
		_ = h.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = h.conn.Close()

		h.connStatus.Emit(Disconnected)

		h.status.DisconnectAll()
		h.connStatus.DisconnectAll()
		h.iopub.DisconnectAll()
		h.unhandled.DisconnectAll()
		h.any.DisconnectAll()
	})
}
