package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseSignalingMessage(t *testing.T) {
	msg, err := ParseSignalingMessage([]byte(`{"type":"offer","from":"alice","to":"bob","data":{"sdp":"v=0"}}`))
	if err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}
	if msg.Type != MessageOffer || msg.From != "alice" || msg.To != "bob" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if string(msg.Data) != `{"sdp":"v=0"}` {
		t.Fatalf("data payload not preserved verbatim: %s", msg.Data)
	}
}

func TestParseSignalingMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseSignalingMessage([]byte(`{"type":"bogus","from":"alice"}`))
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestParseSignalingMessageRequiresFrom(t *testing.T) {
	_, err := ParseSignalingMessage([]byte(`{"type":"register"}`))
	if !errors.Is(err, ErrMissingFrom) {
		t.Fatalf("expected ErrMissingFrom, got %v", err)
	}
}

func TestErrorMessageShape(t *testing.T) {
	var msg SignalingMessage
	if err := json.Unmarshal(ErrorMessage("Target user not connected", "carol"), &msg); err != nil {
		t.Fatalf("error message is not valid JSON: %v", err)
	}
	if msg.Type != MessageError || msg.Message != "Target user not connected" || msg.TargetUser != "carol" {
		t.Fatalf("unexpected error message: %+v", msg)
	}
}
