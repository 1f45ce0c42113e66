package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrMalformedFrame is returned for inbound bytes that are not a lobby frame.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is the self-describing unit exchanged over the lobby connection.
type Frame struct {
	Type      string          `json:"type"`
	ID        int64           `json:"id,omitempty"`
	Namespace string          `json:"namespace,omitempty"`
	Token     string          `json:"token,omitempty"`
	Code      int             `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Class distinguishes correlated responses from unsolicited pushes.
type Class int

const (
	ClassPush Class = iota
	ClassResponse
)

func (c Class) String() string {
	if c == ClassResponse {
		return "response"
	}
	return "push"
}

// Class reports whether the frame answers a pending request.
func (f Frame) Class() Class {
	if f.ID != 0 {
		return ClassResponse
	}
	return ClassPush
}

// Err converts a non-success response code into a *ProtocolError.
func (f Frame) Err() error {
	if f.Code == CodeOK {
		return nil
	}
	return &ProtocolError{Type: f.Type, Code: f.Code, Message: f.Message}
}

// Decode unmarshals Payload into v. An empty payload leaves v untouched.
func (f Frame) Decode(v any) error {
	if len(f.Payload) == 0 || string(f.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", f.Type, err)
	}
	return nil
}

// NewFrame builds a frame and marshals payload into it. A nil payload is omitted.
func NewFrame(msgType string, id int64, payload any) (Frame, error) {
	f := Frame{Type: msgType, ID: id}
	if payload == nil {
		return f, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		f.Payload = raw
		return f, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	f.Payload = data
	return f, nil
}

// Encode serializes a frame for the wire.
func Encode(f Frame) ([]byte, error) {
	if f.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return json.Marshal(f)
}

// Decode parses inbound bytes into a Frame.
func Decode(data []byte) (Frame, error) {
	msgType, _, ok := Peek(data)
	if !ok {
		return Frame{}, fmt.Errorf("%w: no type tag", ErrMalformedFrame)
	}

	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, msgType, err)
	}
	return f, nil
}

// Peek extracts the type tag and correlation id without a full parse.
func Peek(data []byte) (msgType string, id int64, ok bool) {
	if !gjson.ValidBytes(data) {
		return "", 0, false
	}
	res := gjson.GetManyBytes(data, "type", "id")
	if res[0].Type != gjson.String || res[0].Str == "" {
		return "", 0, false
	}
	return res[0].Str, res[1].Int(), true
}
