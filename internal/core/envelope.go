// Package core holds the signaling entities: the wire envelope, the room
// and the transport-facing connection contract. No transport code here.
package core

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// MessageType is the closed set of envelope kinds the relay understands.
// Dispatch on it is exhaustive; anything else hits the engine's default branch.
type MessageType string

const (
	MsgText   MessageType = "text"
	MsgOffer  MessageType = "offer"
	MsgAnswer MessageType = "answer"
	MsgICE    MessageType = "ice"
	MsgJoin   MessageType = "join"
	MsgLeave  MessageType = "leave"
)

var ErrInvalidRoomID = errors.New("invalid room id")

// Envelope is the wire unit exchanged over a signaling connection.
// Candidate and SDP stay opaque: the relay forwards them untouched.
type Envelope struct {
	From      string          `json:"from"`
	Type      MessageType     `json:"type"`
	Data      string          `json:"data,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
}

func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (e Envelope) Encode() (Frame, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}

// WrapOffer renders the payload cached for late joiners: a fixed-shape offer
// descriptor with CR/LF escaped so it survives as a single JSON string value.
// The payload is unquoted first when it arrives as a JSON string.
func WrapOffer(sdp json.RawMessage) string {
	var s string
	if err := json.Unmarshal(sdp, &s); err != nil {
		s = string(sdp)
	}
	desc := `{"type":"offer", "sdp":"` + s + `"}`
	desc = strings.ReplaceAll(desc, "\r", `\r`)
	desc = strings.ReplaceAll(desc, "\n", `\n`)
	return desc
}

// ParseRoomID parses a client-supplied room number. Negative ids are rejected.
func ParseRoomID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 0 {
		return 0, ErrInvalidRoomID
	}
	return id, nil
}
