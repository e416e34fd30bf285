package chat

import (
	"encoding/json"
	"testing"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr bool
		want    string
	}{
		{name: "public message", frame: `{"type":"send_public_message","payload":{"content":"hi"}}`, want: ActionSendPublicMessage},
		{name: "bare string payload", frame: `{"type":"user_connected","payload":"u1"}`, want: ActionUserConnected},
		{name: "no payload", frame: `{"type":"user_connected"}`, want: ActionUserConnected},
		{name: "missing type", frame: `{"payload":{"content":"hi"}}`, wantErr: true},
		{name: "not json", frame: `hello`, wantErr: true},
		{name: "empty", frame: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := ParseAction([]byte(tt.frame))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAction(%q) succeeded, want error", tt.frame)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAction(%q): %v", tt.frame, err)
			}
			if action.Type != tt.want {
				t.Errorf("action type = %q, want %q", action.Type, tt.want)
			}
		})
	}
}

func TestMarshalEventRoundTrip(t *testing.T) {
	data, err := MarshalEvent(EventMessageError, ErrorPayload{Error: "nope"})
	if err != nil {
		t.Fatalf("MarshalEvent: %v", err)
	}

	var ev receivedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if ev.Type != EventMessageError {
		t.Errorf("event type = %q, want %q", ev.Type, EventMessageError)
	}

	var payload ErrorPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Error != "nope" {
		t.Errorf("payload error = %q, want %q", payload.Error, "nope")
	}
}
