package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"tofnode/bus"
	"tofnode/core"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu       sync.Mutex
	pubs     []published
	handlers map[string]mqtt.MessageHandler
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pubs = append(c.pubs, published{topic, retained, payload.([]byte)})
	return doneToken{}
}

func (c *fakeClient) Subscribe(topic string, qos byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = make(map[string]mqtt.MessageHandler)
	}
	c.handlers[topic] = cb
	return doneToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token { return doneToken{} }

func (c *fakeClient) published() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.pubs...)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// tableNode runs everything inline against a real register table.
type tableNode struct {
	h *bus.Handler
}

func (n *tableNode) Do(ctx context.Context, req bus.Request) (bus.Response, error) {
	resp, err := n.h.Handle(req)
	if applyErr := n.h.ApplyPending(); applyErr != nil {
		return resp, applyErr
	}
	return resp, err
}

func (n *tableNode) Exec(ctx context.Context, fn func()) error {
	fn()
	return nil
}

type idleRanger struct{}

func (idleRanger) PowerOn() error                         { return nil }
func (idleRanger) Standby()                               {}
func (idleRanger) StartContinuous(uint32) error           { return nil }
func (idleRanger) StopContinuous() error                  { return nil }
func (idleRanger) SetRange(uint16, uint16)                {}
func (idleRanger) SetQualityThreshold(uint16)             {}
func (idleRanger) FullMeasure() (core.Measurement, error) { return core.Measurement{Range: 250, Quality: 900}, nil }

func newBridge(t *testing.T) (*Bridge, *fakeClient, *core.RegisterTable) {
	t.Helper()
	regs := core.NewRegisterTable(core.NewMemoryStore(core.PersistentStoreSize))
	if err := regs.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	channels := core.NewChannelSet(regs, idleRanger{}, idleRanger{})
	channels.Start()
	h := bus.NewHandler(regs, channels, nil)

	client := &fakeClient{}
	capture := func() State { return Capture(regs, channels, h.Status(), 42) }
	return NewBridge(client, &tableNode{h: h}, capture, "tof", time.Millisecond), client, regs
}

func TestPublishState(t *testing.T) {
	b, client, regs := newBridge(t)
	regs.PutByteInternal(core.RegInputVoltage, 125)
	regs.PutU16Internal(core.RegMainRange, 480)

	if err := b.PublishState(context.Background()); err != nil {
		t.Fatalf("PublishState failed: %v", err)
	}
	pubs := client.published()
	if len(pubs) != 1 || pubs[0].topic != "tof/state" || !pubs[0].retained {
		t.Fatalf("published = %+v", pubs)
	}

	var st State
	if err := json.Unmarshal(pubs[0].payload, &st); err != nil {
		t.Fatalf("state is not JSON: %v", err)
	}
	if st.ID != 1 || st.Wiring != 3 || st.InputMV != 5000 || st.Timestamp != 42 {
		t.Errorf("state = %+v", st)
	}
	if st.Main.Range != 480 || st.Main.State != "armed" || !st.Main.Enabled {
		t.Errorf("main = %+v", st.Main)
	}
}

func TestRequestBridge(t *testing.T) {
	b, client, regs := newBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	var handler mqtt.MessageHandler
	for i := 0; i < 100 && handler == nil; i++ {
		client.mu.Lock()
		handler = client.handlers["tof/request"]
		client.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	if handler == nil {
		t.Fatal("bridge did not subscribe")
	}
	cancel()
	<-done

	// Handlers are invoked synchronously here; the table is only touched
	// by this goroutine from now on.
	ctx = context.Background()
	b.handleRequest(ctx, []byte(`{"op":"write","addr":5,"data":"ZA=="}`))
	if regs.Byte(core.RegReturnDelayTime) != 100 {
		t.Errorf("return delay = %d, want 100", regs.Byte(core.RegReturnDelayTime))
	}

	b.handleRequest(ctx, []byte(`{"op":"ping","id":9}`))
	b.handleRequest(ctx, []byte(`garbage`))

	var replies []published
	for _, p := range client.published() {
		if p.topic == "tof/reply" {
			replies = append(replies, p)
		}
	}
	if len(replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(replies))
	}
	var r bus.Reply
	if err := json.Unmarshal(replies[0].payload, &r); err != nil {
		t.Fatalf("reply not JSON: %v", err)
	}
	if r.ID != 1 || r.Status != 0 || r.Error != "" {
		t.Errorf("reply = %+v", r)
	}
}

func TestRequestAfterShutdownDropped(t *testing.T) {
	b, client, _ := newBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg := fakeMessage{topic: "tof/request", payload: []byte(`{"op":"ping"}`)}
	b.handleRequest(ctx, msg.Payload())
	if len(client.published()) != 0 {
		t.Error("reply published after shutdown")
	}
}
