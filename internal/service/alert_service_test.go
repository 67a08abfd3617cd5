package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/shared-session-control/internal/model"
	q "github.com/iliyamo/shared-session-control/internal/queue"
)

type fakeAlertStore struct {
	alerts []model.SecurityAlert
	err    error
}

func (f *fakeAlertStore) Create(ctx context.Context, a *model.SecurityAlert) error {
	if f.err != nil {
		return f.err
	}
	a.ID = uint64(len(f.alerts) + 1)
	f.alerts = append(f.alerts, *a)
	return nil
}

func stubPublisher(t *testing.T) *[]q.SecurityAlertEvent {
	t.Helper()
	var published []q.SecurityAlertEvent
	orig := publishAlert
	publishAlert = func(ctx context.Context, event q.SecurityAlertEvent) error {
		published = append(published, event)
		return nil
	}
	t.Cleanup(func() { publishAlert = orig })
	return &published
}

func TestFailedLoginSeverityEscalation(t *testing.T) {
	store := &fakeAlertStore{}
	published := stubPublisher(t)
	s := NewAlertService(store)

	s.FailedLogin(context.Background(), 1, "alice@x", "1.2.3.4", 2)
	s.FailedLogin(context.Background(), 1, "alice@x", "1.2.3.4", 5)

	require.Len(t, store.alerts, 2)
	assert.Equal(t, model.SeverityMedium, store.alerts[0].Severity)
	assert.Equal(t, model.SeverityHigh, store.alerts[1].Severity)
	assert.Len(t, *published, 2)
}

func TestUnknownEmailAttemptIsSystemScoped(t *testing.T) {
	store := &fakeAlertStore{}
	stubPublisher(t)
	s := NewAlertService(store)

	s.UnknownEmailAttempt(context.Background(), "ghost@x", "1.2.3.4")

	require.Len(t, store.alerts, 1)
	assert.Nil(t, store.alerts[0].UserID)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(store.alerts[0].Metadata, &meta))
	assert.Equal(t, "ghost@x", meta["email"])
}

func TestMultipleDeviceLoginCarriesBothDevices(t *testing.T) {
	store := &fakeAlertStore{}
	stubPublisher(t)
	s := NewAlertService(store)

	s.MultipleDeviceLogin(context.Background(), 1, "alice@x",
		"macOS 10.15.7 - Chrome 120 - desktop", "Windows 10 - Chrome 120 - desktop")

	require.Len(t, store.alerts, 1)
	a := store.alerts[0]
	assert.Equal(t, model.AlertMultipleDeviceLogin, a.AlertType)
	assert.Equal(t, model.SeverityMedium, a.Severity)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(a.Metadata, &meta))
	assert.Contains(t, meta["previous_device"], "macOS")
	assert.Contains(t, meta["new_device"], "Windows")
}

func TestSuspiciousLocationIsHigh(t *testing.T) {
	store := &fakeAlertStore{}
	published := stubPublisher(t)
	s := NewAlertService(store)

	s.SuspiciousLocation(context.Background(), 1, "alice@x",
		"New York, United States", "San Francisco, United States", 4130, 30)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, model.SeverityHigh, store.alerts[0].Severity)
	require.Len(t, *published, 1)
	assert.Equal(t, model.AlertSuspiciousLocation, (*published)[0].AlertType)
}

func TestEmitSwallowsStoreFailure(t *testing.T) {
	store := &fakeAlertStore{err: assert.AnError}
	published := stubPublisher(t)
	s := NewAlertService(store)

	// Must not panic and must not publish a phantom event.
	s.FailedLogin(context.Background(), 1, "alice@x", "1.2.3.4", 1)
	assert.Empty(t, *published)
}
