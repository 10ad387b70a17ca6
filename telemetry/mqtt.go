package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"tofnode/bus"
)

// Client is the part of mqtt.Client the bridge uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// Node runs requests and inspections on the goroutine owning the table.
type Node interface {
	Do(ctx context.Context, req bus.Request) (bus.Response, error)
	Exec(ctx context.Context, fn func()) error
}

// Bridge publishes periodic State snapshots and answers register requests
// received on <topic>/request on <topic>/reply.
type Bridge struct {
	client   Client
	node     Node
	capture  func() State
	topic    string
	interval time.Duration
}

// NewBridge creates a bridge. capture is called through node.Exec.
func NewBridge(client Client, node Node, capture func() State, topic string, interval time.Duration) *Bridge {
	return &Bridge{
		client:   client,
		node:     node,
		capture:  capture,
		topic:    topic,
		interval: interval,
	}
}

// Connect opens an MQTT connection.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return client, nil
}

// Run subscribes to requests and publishes state until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	reqTopic := b.topic + "/request"
	token := b.client.Subscribe(reqTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		b.handleRequest(ctx, msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", reqTopic, token.Error())
	}
	defer b.client.Unsubscribe(reqTopic)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.PublishState(ctx); err != nil {
				log.Printf("telemetry: %v", err)
			}
		}
	}
}

// PublishState captures one snapshot and publishes it retained.
func (b *Bridge) PublishState(ctx context.Context) error {
	var st State
	if err := b.node.Exec(ctx, func() { st = b.capture() }); err != nil {
		return err
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	token := b.client.Publish(b.topic+"/state", 0, true, payload)
	token.Wait()
	return token.Error()
}

func (b *Bridge) handleRequest(ctx context.Context, payload []byte) {
	var id uint8
	if err := b.node.Exec(ctx, func() { id = b.capture().ID }); err != nil {
		return
	}

	req, err := bus.DecodeMessage(payload, id)
	if err != nil {
		log.Printf("telemetry: dropping request: %v", err)
		return
	}
	if req.ID != id && req.ID != bus.BroadcastID {
		return
	}

	resp, reqErr := b.node.Do(ctx, req)
	if ctx.Err() != nil || resp.Silent {
		return
	}
	out, err := bus.EncodeReply(resp, reqErr)
	if err != nil {
		log.Printf("telemetry: encode reply: %v", err)
		return
	}
	token := b.client.Publish(b.topic+"/reply", 1, false, out)
	token.Wait()
	if token.Error() != nil {
		log.Printf("telemetry: publish reply: %v", token.Error())
	}
}
