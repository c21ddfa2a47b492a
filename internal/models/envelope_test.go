package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelopeWithTypeAndPayload(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"USER_REGISTERED","payload":{"id":123,"email":"a@b.com","name":"Ada"}}`))
	require.NoError(t, err)

	assert.Equal(t, EventUserRegistered, env.Type)
	assert.Equal(t, "a@b.com", env.Payload.Email)
	assert.Equal(t, "Ada", env.Payload.Name)
	require.NotNil(t, env.Payload.ID)
	assert.Equal(t, int64(123), *env.Payload.ID)
}

func TestDecodeEnvelopeBarePayload(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"email":"x@y.com","username":"xy"}`))
	require.NoError(t, err)

	assert.Equal(t, EventType(""), env.Type)
	assert.Equal(t, "x@y.com", env.Payload.Email)
	assert.Equal(t, "xy", env.Payload.Username)
}

func TestDecodeEnvelopeDoubleNestedPayload(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"USER_UPDATED","payload":{"payload":{"email":"n@d.com","role":"admin"}}}`))
	require.NoError(t, err)

	assert.Equal(t, EventUserUpdated, env.Type)
	assert.Equal(t, "n@d.com", env.Payload.Email)
	assert.Equal(t, "admin", env.Payload.Role)
}

func TestDecodeEnvelopeInvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `this is not json`},
		{"json array", `[1,2,3]`},
		{"json string", `"hello"`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestPayloadIDVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int64
	}{
		{"id number", `{"id":42,"email":"a@b.com"}`, 42},
		{"id numeric string", `{"id":"42","email":"a@b.com"}`, 42},
		{"user_id", `{"user_id":7,"email":"a@b.com"}`, 7},
		{"userId camel", `{"userId":9,"email":"a@b.com"}`, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.body))
			require.NoError(t, err)
			require.NotNil(t, env.Payload.ID)
			assert.Equal(t, tt.want, *env.Payload.ID)
		})
	}
}

func TestPayloadIDMissingOrUnparseable(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"email":"a@b.com"}`))
	require.NoError(t, err)
	assert.Nil(t, env.Payload.ID)

	env, err = DecodeEnvelope([]byte(`{"id":"not-a-number","email":"a@b.com"}`))
	require.NoError(t, err)
	assert.Nil(t, env.Payload.ID)
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    string
	}{
		{"name wins", Payload{Name: "Ada", Username: "alove"}, "Ada"},
		{"username fallback", Payload{Username: "alove"}, "alove"},
		{"generic placeholder", Payload{Email: "a@b.com"}, "User"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.payload.DisplayName())
		})
	}
}

func TestParseEventType(t *testing.T) {
	got, err := ParseEventType("user_registered")
	require.NoError(t, err)
	assert.Equal(t, EventUserRegistered, got)

	got, err = ParseEventType(" USER_UPDATED ")
	require.NoError(t, err)
	assert.Equal(t, EventUserUpdated, got)

	_, err = ParseEventType("ORDER_PLACED")
	assert.Error(t, err)
}
