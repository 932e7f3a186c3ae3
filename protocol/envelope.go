package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecode is matched by every DecodeError.
var ErrDecode = errors.New("malformed envelope")

// DecodeError describes why a line could not be decoded into an Envelope.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed envelope: %s: %v", e.Reason, e.Err)
	}
	return "malformed envelope: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports ErrDecode as a match so callers can use errors.Is.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Decode failure reasons.
const (
	ReasonInvalidJSON  = "invalid JSON"
	ReasonNotObject    = "not a JSON object"
	ReasonMissingEvent = `missing "event" field`
)

// Envelope is one protocol message. Data is nil when the wire value was
// null or absent.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// New builds an Envelope, marshaling data to JSON.
func New(event string, data any) (Envelope, error) {
	env := Envelope{Event: event}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s data: %w", event, err)
	}
	env.Data = normalize(raw)
	return env, nil
}

// Encode returns the wire form of an envelope, without the trailing newline.
func Encode(event string, data any) ([]byte, error) {
	env, err := New(event, data)
	if err != nil {
		return nil, err
	}
	return env.Marshal()
}

// Marshal returns {"event":...,"data":...} with the keys in that order.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a single line. It never inspects the event name beyond
// checking that it is a non-empty string.
func Decode(line []byte) (Envelope, error) {
	line = bytes.TrimSpace(line)
	if !json.Valid(line) {
		return Envelope{}, &DecodeError{Reason: ReasonInvalidJSON}
	}
	if len(line) == 0 || line[0] != '{' {
		return Envelope{}, &DecodeError{Reason: ReasonNotObject}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Envelope{}, &DecodeError{Reason: ReasonNotObject, Err: err}
	}

	rawEvent, ok := fields["event"]
	if !ok {
		return Envelope{}, &DecodeError{Reason: ReasonMissingEvent}
	}
	var event string
	if err := json.Unmarshal(rawEvent, &event); err != nil || event == "" {
		return Envelope{}, &DecodeError{Reason: ReasonMissingEvent, Err: err}
	}

	return Envelope{Event: event, Data: normalize(fields["data"])}, nil
}

// Text returns the data as a string. ok is false for null and for
// non-string values.
func (e Envelope) Text() (s string, ok bool) {
	if e.IsNull() {
		return "", false
	}
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return "", false
	}
	return s, true
}

// IsNull reports whether the envelope carries no data.
func (e Envelope) IsNull() bool {
	return normalize(e.Data) == nil
}

// DecodeData decodes the data into v.
func (e Envelope) DecodeData(v any) error {
	if e.IsNull() {
		return json.Unmarshal([]byte("null"), v)
	}
	return json.Unmarshal(e.Data, v)
}

func normalize(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}
