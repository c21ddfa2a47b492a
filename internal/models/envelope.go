package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Envelope is the wire-level unit received from the broker. Producers
// publish either {type, payload: {...}} or a bare payload object, and
// some revisions double-wrap the payload; DecodeEnvelope normalizes all
// of those into one shape. An empty Type means the producer sent no
// discriminator and the consumer falls back to the routing-key default.
type Envelope struct {
	Type    EventType
	Payload Payload
}

// Payload carries the domain fields of a user event. Decoding goes
// through UnmarshalJSON below; the tags only shape how the admin
// endpoints render a payload back out.
type Payload struct {
	ID       *int64 `json:"id,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
}

// DisplayName derives the name used in email and audit copy,
// defaulting to a generic placeholder.
func (p *Payload) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.Username != "" {
		return p.Username
	}
	return "User"
}

// DecodeEnvelope parses a message body into a normalized Envelope.
// A body that is not a JSON object is a permanent decode failure.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("message body is not a JSON object: %w", err)
	}

	env := &Envelope{}
	if typeRaw, ok := raw["type"]; ok {
		var typeName string
		if err := json.Unmarshal(typeRaw, &typeName); err == nil {
			env.Type = EventType(typeName)
		}
	}

	// Unwrap up to two levels of nesting: producers have shipped both
	// {payload: {...}} and {payload: {payload: {...}}}.
	payloadBytes := []byte(nil)
	current := raw
	for depth := 0; depth < 2; depth++ {
		inner, ok := current["payload"]
		if !ok {
			break
		}
		var innerMap map[string]json.RawMessage
		if err := json.Unmarshal(inner, &innerMap); err != nil {
			break
		}
		payloadBytes = inner
		current = innerMap
	}

	if payloadBytes == nil {
		// Bare payload: the envelope itself carries the domain fields
		payloadBytes = body
	}

	if err := json.Unmarshal(payloadBytes, &env.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode event payload: %w", err)
	}

	return env, nil
}

// UnmarshalJSON tolerates the id arriving as a JSON number or a numeric
// string, under any of the producer field names (id, user_id, userId).
func (p *Payload) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID        json.RawMessage `json:"id"`
		UserID    json.RawMessage `json:"user_id"`
		UserIDAlt json.RawMessage `json:"userId"`
		Email     string          `json:"email"`
		Name      string          `json:"name"`
		Username  string          `json:"username"`
		Role      string          `json:"role"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	p.Email = aux.Email
	p.Name = aux.Name
	p.Username = aux.Username
	p.Role = aux.Role

	for _, raw := range []json.RawMessage{aux.ID, aux.UserID, aux.UserIDAlt} {
		if id := parseID(raw); id != nil {
			p.ID = id
			break
		}
	}
	return nil
}

func parseID(raw json.RawMessage) *int64 {
	if len(raw) == 0 {
		return nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &v
		}
	}
	return nil
}
