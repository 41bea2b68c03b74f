package gateway

import (
	"encoding/json"
	"testing"
)

func TestNewFrame_WithPayload(t *testing.T) {
	t.Parallel()
	raw, err := NewFrame(TagDeleteChannel, DeleteChannelPayload{})
	if err != nil {
		t.Fatalf("NewFrame() error = %v", err)
	}

	f := decodeFrame(t, raw)
	if f.Type != TagDeleteChannel {
		t.Errorf("type = %q, want %q", f.Type, TagDeleteChannel)
	}
	if len(f.Payload) == 0 {
		t.Error("payload missing")
	}
}

func TestNewFrame_NilPayloadOmitted(t *testing.T) {
	t.Parallel()
	raw, err := NewFrame(TagPong, nil)
	if err != nil {
		t.Fatalf("NewFrame() error = %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if _, ok := decoded["payload"]; ok {
		t.Errorf("frame %s carries a payload field, want omitted", raw)
	}
}

func TestIdentifyPayloadRoundTrip(t *testing.T) {
	t.Parallel()
	var payload IdentifyPayload
	if err := json.Unmarshal([]byte(`{"bearer":"token123"}`), &payload); err != nil {
		t.Fatalf("unmarshal identify payload: %v", err)
	}
	if payload.Bearer != "token123" {
		t.Errorf("bearer = %q, want token123", payload.Bearer)
	}
}
