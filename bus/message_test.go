package bus

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeMessage(t *testing.T) {
	req, err := DecodeMessage([]byte(`{"op":"write","addr":32,"data":"AQA="}`), 7)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if req.ID != 7 || req.Op != OpWrite || req.Address != 0x20 || len(req.Payload) != 2 || req.Payload[0] != 1 {
		t.Errorf("request = %+v", req)
	}

	req, err = DecodeMessage([]byte(`{"op":"read","id":254,"addr":35,"len":3}`), 7)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if req.ID != BroadcastID || req.Length != 3 {
		t.Errorf("request = %+v", req)
	}
}

func TestDecodeMessageErrors(t *testing.T) {
	if _, err := DecodeMessage([]byte(`{"op":"dance"}`), 1); !errors.Is(err, ErrInstruction) {
		t.Errorf("unknown op: got %v", err)
	}
	if _, err := DecodeMessage([]byte(`{`), 1); err == nil {
		t.Error("expected syntax error")
	}
}

func TestEncodeReply(t *testing.T) {
	b, err := EncodeReply(Response{ID: 3, Status: 8, Data: []byte{1}}, errors.New("bad byte"))
	if err != nil {
		t.Fatalf("EncodeReply failed: %v", err)
	}
	var r Reply
	if err := json.Unmarshal(b, &r); err != nil {
		t.Fatalf("reply is not JSON: %v", err)
	}
	if r.ID != 3 || r.Status != 8 || r.Error != "bad byte" || len(r.Data) != 1 {
		t.Errorf("reply = %+v", r)
	}
}

func TestMessageChecksum(t *testing.T) {
	req := Request{ID: 1, Op: OpWrite, Address: 0x20, Payload: []byte{1, 0}}
	// ^(1 + 3 + 0x20 + 0 + 1 + 0)
	if got := Checksum(req); got != 0xDA {
		t.Fatalf("Checksum = 0x%02X, want 0xDA", got)
	}

	good, err := DecodeMessage([]byte(`{"op":"write","id":1,"addr":32,"data":"AQA=","sum":218}`), 7)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if good.Corrupt {
		t.Error("matching checksum flagged corrupt")
	}

	bad, err := DecodeMessage([]byte(`{"op":"write","id":1,"addr":32,"data":"AQA=","sum":219}`), 7)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if !bad.Corrupt {
		t.Error("mismatching checksum not flagged")
	}

	plain, _ := DecodeMessage([]byte(`{"op":"ping"}`), 7)
	if plain.Corrupt {
		t.Error("message without checksum flagged corrupt")
	}
}
