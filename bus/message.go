package bus

import (
	"encoding/json"
	"fmt"
)

// Message is the JSON form of a Request used by the host-side bridges
// (serial lines, MQTT, WebSocket).
type Message struct {
	Op      string `json:"op"` // "ping", "read", "write", "factory_reset", "reboot"
	ID      *uint8 `json:"id,omitempty"`
	Address uint8  `json:"addr"`
	Length  uint8  `json:"len,omitempty"`
	Data    []byte `json:"data,omitempty"` // base64 in JSON
	Sum     *uint8 `json:"sum,omitempty"`  // optional, see Checksum
}

// Reply is the JSON form of a Response.
type Reply struct {
	ID     uint8  `json:"id"`
	Status uint8  `json:"status"`
	Data   []byte `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

var opNames = map[string]Op{
	"ping":          OpPing,
	"read":          OpRead,
	"write":         OpWrite,
	"factory_reset": OpFactoryReset,
	"reboot":        OpReboot,
}

// DecodeMessage parses one JSON message. A missing id targets defaultID.
func DecodeMessage(b []byte, defaultID uint8) (Request, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Request{}, fmt.Errorf("decode message: %w", err)
	}
	return m.Request(defaultID)
}

// Request converts m. A missing id targets defaultID.
func (m Message) Request(defaultID uint8) (Request, error) {
	op, ok := opNames[m.Op]
	if !ok {
		return Request{}, fmt.Errorf("%w %q", ErrInstruction, m.Op)
	}
	req := Request{
		ID:      defaultID,
		Op:      op,
		Address: m.Address,
		Length:  m.Length,
		Payload: m.Data,
	}
	if m.ID != nil {
		req.ID = *m.ID
	}
	if m.Sum != nil && *m.Sum != Checksum(req) {
		req.Corrupt = true
	}
	return req, nil
}

// Checksum is the inverted byte sum of the request fields, in the order
// id, op, addr, len, data.
func Checksum(req Request) uint8 {
	sum := req.ID + uint8(req.Op) + req.Address + req.Length
	for _, b := range req.Payload {
		sum += b
	}
	return ^sum
}

// EncodeReply marshals resp and the request error, if any.
func EncodeReply(resp Response, reqErr error) ([]byte, error) {
	r := Reply{ID: resp.ID, Status: resp.Status, Data: resp.Data}
	if reqErr != nil {
		r.Error = reqErr.Error()
	}
	return json.Marshal(r)
}
