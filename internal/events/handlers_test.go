package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TP-Master1-GL/terra-notification-service/internal/models"
	"github.com/TP-Master1-GL/terra-notification-service/internal/notification"
)

type sentMail struct {
	to, subject, body string
}

type fakeSender struct {
	err  error
	sent []sentMail
}

func (f *fakeSender) Send(to, subject, body string) error {
	f.sent = append(f.sent, sentMail{to, subject, body})
	return f.err
}

type savedRecord struct {
	eventType models.EventType
	userEmail string
	message   string
	userID    *int64
	username  string
	role      string
}

type fakeRecorder struct {
	err   error
	saved []savedRecord
}

func (f *fakeRecorder) Save(_ context.Context, eventType models.EventType, userEmail, message string, userID *int64, username, role string) (*models.Notification, error) {
	f.saved = append(f.saved, savedRecord{eventType, userEmail, message, userID, username, role})
	if f.err != nil {
		return nil, f.err
	}
	return &models.Notification{Type: string(eventType), UserEmail: userEmail}, nil
}

func int64p(v int64) *int64 { return &v }

func TestUserRegisteredSendsWelcomeAndPersists(t *testing.T) {
	mail := &fakeSender{}
	store := &fakeRecorder{}
	h := NewUserRegisteredHandler(mail, store, zap.NewNop())

	err := h.Handle(context.Background(), &models.Payload{
		ID:    int64p(123),
		Email: "a@b.com",
		Name:  "Ada",
	})
	require.NoError(t, err)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "a@b.com", mail.sent[0].to)
	assert.Contains(t, mail.sent[0].subject, "Welcome")
	assert.Contains(t, mail.sent[0].body, "Ada")

	require.Len(t, store.saved, 1)
	assert.Equal(t, models.EventUserRegistered, store.saved[0].eventType)
	assert.Equal(t, "a@b.com", store.saved[0].userEmail)
	assert.Equal(t, "Ada", store.saved[0].username)
	require.NotNil(t, store.saved[0].userID)
	assert.Equal(t, int64(123), *store.saved[0].userID)
}

func TestUserRegisteredEmailFailureStillPersists(t *testing.T) {
	mail := &fakeSender{err: errors.New("smtp rejected")}
	store := &fakeRecorder{}
	h := NewUserRegisteredHandler(mail, store, zap.NewNop())

	err := h.Handle(context.Background(), &models.Payload{Email: "a@b.com", Name: "Ada"})

	require.NoError(t, err)
	assert.Len(t, store.saved, 1)
}

func TestUserRegisteredPersistenceFailurePropagates(t *testing.T) {
	mail := &fakeSender{}
	store := &fakeRecorder{err: &notification.PersistenceError{Err: errors.New("db down")}}
	h := NewUserRegisteredHandler(mail, store, zap.NewNop())

	err := h.Handle(context.Background(), &models.Payload{Email: "a@b.com"})

	require.Error(t, err)
	var persistenceErr *notification.PersistenceError
	assert.ErrorAs(t, err, &persistenceErr)
	// the email attempt happened before the failed save
	assert.Len(t, mail.sent, 1)
}

func TestUserRegisteredNoEmailSkipsSendButPersists(t *testing.T) {
	mail := &fakeSender{}
	store := &fakeRecorder{}
	h := NewUserRegisteredHandler(mail, store, zap.NewNop())

	err := h.Handle(context.Background(), &models.Payload{Name: "Ada"})

	require.NoError(t, err)
	assert.Empty(t, mail.sent)
	assert.Len(t, store.saved, 1)
}

func TestUserRegisteredDefaultDisplayName(t *testing.T) {
	mail := &fakeSender{}
	store := &fakeRecorder{}
	h := NewUserRegisteredHandler(mail, store, zap.NewNop())

	err := h.Handle(context.Background(), &models.Payload{Email: "x@y.com"})
	require.NoError(t, err)

	require.Len(t, mail.sent, 1)
	assert.Contains(t, mail.sent[0].body, "Hi User,")
	require.Len(t, store.saved, 1)
	assert.Equal(t, "User", store.saved[0].username)
}

func TestUserUpdatedSendsAndPersists(t *testing.T) {
	mail := &fakeSender{}
	store := &fakeRecorder{}
	h := NewUserUpdatedHandler(mail, store, zap.NewNop())

	err := h.Handle(context.Background(), &models.Payload{
		ID:       int64p(7),
		Email:    "n@d.com",
		Username: "nad",
		Role:     "admin",
	})
	require.NoError(t, err)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "Profile updated", mail.sent[0].subject)
	assert.Contains(t, mail.sent[0].body, "nad")

	require.Len(t, store.saved, 1)
	assert.Equal(t, models.EventUserUpdated, store.saved[0].eventType)
	assert.Equal(t, "nad", store.saved[0].username)
	assert.Equal(t, "admin", store.saved[0].role)
}

func TestRegistryLookup(t *testing.T) {
	registry := NewDefaultRegistry(&fakeSender{}, &fakeRecorder{}, zap.NewNop())

	h, ok := registry.Lookup(models.EventUserRegistered)
	assert.True(t, ok)
	assert.IsType(t, &UserRegisteredHandler{}, h)

	h, ok = registry.Lookup(models.EventUserUpdated)
	assert.True(t, ok)
	assert.IsType(t, &UserUpdatedHandler{}, h)

	_, ok = registry.Lookup(models.EventType("ORDER_PLACED"))
	assert.False(t, ok)
}
