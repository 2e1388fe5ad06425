package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/divyansshhh/jupyterlab/internal/events"
	"github.com/divyansshhh/jupyterlab/internal/infrastructure/logging"
)

func newTestHandle() *wsHandle {
	return &wsHandle{
		id:         "k1",
		name:       "python3",
		log:        logging.NewNop(),
		status:     events.NewSignal[Status](),
		connStatus: events.NewSignal[ConnectionStatus](),
		iopub:      events.NewSignal[Message](),
		unhandled:  events.NewSignal[Message](),
		any:        events.NewSignal[Message](),
		done:       make(chan struct{}),
	}
}

func TestDispatchClassification(t *testing.T) {
	h := newTestHandle()

	var iopub, unhandled, any []Message
	var statuses []Status
	h.IOPubMessage().Connect(func(m Message) { iopub = append(iopub, m) })
	h.UnhandledMessage().Connect(func(m Message) { unhandled = append(unhandled, m) })
	h.AnyMessage().Connect(func(m Message) { any = append(any, m) })
	h.StatusChanged().Connect(func(s Status) { statuses = append(statuses, s) })

	h.dispatch([]byte(`{"channel":"iopub","header":{"msg_type":"status"},"content":{"execution_state":"busy"}}`))
	h.dispatch([]byte(`{"channel":"iopub","header":{"msg_type":"stream"},"content":{}}`))
	h.dispatch([]byte(`{"channel":"shell","header":{"msg_type":"execute_reply"},"content":{}}`))

	assert.Len(t, any, 3)
	assert.Len(t, iopub, 2)
	assert.Len(t, unhandled, 1)
	assert.Equal(t, "execute_reply", unhandled[0].Type)
	assert.Equal(t, []Status{StatusBusy}, statuses)
}

func TestDispatchIgnoresGarbage(t *testing.T) {
	h := newTestHandle()

	delivered := 0
	h.AnyMessage().Connect(func(Message) { delivered++ })

	h.dispatch([]byte(`not json`))
	assert.Zero(t, delivered)
}

func TestChannelsURL(t *testing.T) {
	url, err := channelsURL("http://localhost:8888", "abc", "secret")
	assert.NoError(t, err)
	assert.Contains(t, url, "ws://localhost:8888/api/kernels/abc/channels")
	assert.Contains(t, url, "token=secret")

	url, err = channelsURL("https://hub.example.com/user/a", "abc", "")
	assert.NoError(t, err)
	assert.Contains(t, url, "wss://hub.example.com/user/a/api/kernels/abc/channels")
	assert.NotContains(t, url, "token=")
}
