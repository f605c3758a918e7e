package models

import (
	"encoding/json"
	"errors"
)

// MessageType is the kind of a signaling message. The set is closed:
// anything else is rejected before routing.
type MessageType string

const (
	MessageOffer        MessageType = "offer"
	MessageAnswer       MessageType = "answer"
	MessageICECandidate MessageType = "ice-candidate"
	MessageCallRequest  MessageType = "call-request"
	MessageCallResponse MessageType = "call-response"
	MessageCallEnd      MessageType = "call-end"
	MessageRegister     MessageType = "register"
	MessageError        MessageType = "error"
)

var knownMessageTypes = map[MessageType]struct{}{
	MessageOffer:        {},
	MessageAnswer:       {},
	MessageICECandidate: {},
	MessageCallRequest:  {},
	MessageCallResponse: {},
	MessageCallEnd:      {},
	MessageRegister:     {},
	MessageError:        {},
}

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrMissingFrom        = errors.New("missing from field")
)

// SignalingMessage is the unit of exchange on a client channel. The same
// shape is used in both directions. Data is an opaque negotiation payload
// and is never inspected by the server.
type SignalingMessage struct {
	Type       MessageType     `json:"type"`
	From       string          `json:"from,omitempty"`
	To         string          `json:"to,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Message    string          `json:"message,omitempty"`
	TargetUser string          `json:"targetUser,omitempty"`
}

// ParseSignalingMessage decodes and structurally validates an inbound
// payload. Validation failures are local to the sender's channel.
func ParseSignalingMessage(payload []byte) (SignalingMessage, error) {
	var msg SignalingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return SignalingMessage{}, err
	}
	if _, ok := knownMessageTypes[msg.Type]; !ok {
		return SignalingMessage{}, ErrUnknownMessageType
	}
	if msg.From == "" {
		return SignalingMessage{}, ErrMissingFrom
	}
	return msg, nil
}

// ErrorMessage builds the error-kind message sent back to a client on a
// routing failure. targetUser may be empty.
func ErrorMessage(text, targetUser string) []byte {
	payload, _ := json.Marshal(SignalingMessage{
		Type:       MessageError,
		Message:    text,
		TargetUser: targetUser,
	})
	return payload
}
