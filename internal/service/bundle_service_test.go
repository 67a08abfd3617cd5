package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/shared-session-control/internal/model"
	"github.com/iliyamo/shared-session-control/internal/repository"
)

// --- fakes ---

type fakeBundleStore struct {
	bundle model.SharedBundle
	grants []model.BundleUploadGrant
	events []model.BundleEvent
}

func newFakeBundleStore(status string) *fakeBundleStore {
	return &fakeBundleStore{bundle: model.SharedBundle{
		ID: 1, Name: model.SharedBundleName, Status: status, CreatedAt: time.Now().UTC(),
	}}
}

func (f *fakeBundleStore) GetOrCreateShared(ctx context.Context) (model.SharedBundle, error) {
	return f.bundle, nil
}

func (f *fakeBundleStore) GetByID(ctx context.Context, id uint64) (model.SharedBundle, error) {
	if id != f.bundle.ID {
		return model.SharedBundle{}, repository.ErrNotFound
	}
	return f.bundle, nil
}

func (f *fakeBundleStore) UpdateStatus(ctx context.Context, id uint64, status string) error {
	f.bundle.Status = status
	return nil
}

func (f *fakeBundleStore) CompleteUpload(ctx context.Context, id uint64, key, checksum string, fileSize uint64, at time.Time) error {
	f.bundle.Status = model.BundleReady
	f.bundle.BundleKey = &key
	f.bundle.Checksum = &checksum
	f.bundle.FileSizeBytes = &fileSize
	f.bundle.BundleVersion++
	f.bundle.LastSyncedAt = &at
	return nil
}

func (f *fakeBundleStore) CreateGrant(ctx context.Context, g *model.BundleUploadGrant) error {
	g.ID = uint64(len(f.grants) + 1)
	g.CreatedAt = time.Now().UTC().Add(time.Duration(len(f.grants)) * time.Millisecond)
	f.grants = append(f.grants, *g)
	return nil
}

func (f *fakeBundleStore) LatestGrant(ctx context.Context, bundleID, userID uint64) (model.BundleUploadGrant, error) {
	for i := len(f.grants) - 1; i >= 0; i-- {
		if f.grants[i].BundleID == bundleID && f.grants[i].UserID == userID {
			return f.grants[i], nil
		}
	}
	return model.BundleUploadGrant{}, repository.ErrNotFound
}

func (f *fakeBundleStore) CreateEvent(ctx context.Context, e *model.BundleEvent) error {
	e.ID = uint64(len(f.events) + 1)
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeBundleStore) ListEvents(ctx context.Context, bundleID uint64, limit int) ([]model.BundleEvent, error) {
	return f.events, nil
}

func (f *fakeBundleStore) CountEventsByMessage(ctx context.Context, bundleID uint64, message string) (int, error) {
	n := 0
	for _, e := range f.events {
		if e.Message == message {
			n++
		}
	}
	return n, nil
}

type fakeSigner struct{ fail bool }

func (f fakeSigner) PresignPut(ctx context.Context, key string) (string, error) {
	if f.fail {
		return "", fmt.Errorf("connection refused")
	}
	return "https://store.local/put/" + key, nil
}

func (f fakeSigner) PresignGet(ctx context.Context, key string) (string, error) {
	if f.fail {
		return "", fmt.Errorf("connection refused")
	}
	return "https://store.local/get/" + key, nil
}

// --- tests ---

func TestRequestUploadIssuesDistinctKeys(t *testing.T) {
	store := newFakeBundleStore(model.BundlePending)
	s := NewBundleService(store, fakeSigner{})

	a, err := s.RequestUpload(context.Background(), 1, 10)
	require.NoError(t, err)
	b, err := s.RequestUpload(context.Background(), 1, 11)
	require.NoError(t, err)

	assert.NotEqual(t, a.BundleKey, b.BundleKey)
	assert.Contains(t, a.URL, a.BundleKey)
	assert.Equal(t, 15*60, a.ExpiresInSeconds)
	// State does not advance on URL issuance.
	assert.Equal(t, model.BundlePending, store.bundle.Status)
}

func TestCompleteUploadPublishesCallerKey(t *testing.T) {
	store := newFakeBundleStore(model.BundlePending)
	s := NewBundleService(store, fakeSigner{})

	granted, err := s.RequestUpload(context.Background(), 1, 10)
	require.NoError(t, err)

	b, err := s.CompleteUpload(context.Background(), 1, 10, "abc123", 12345)
	require.NoError(t, err)

	assert.Equal(t, model.BundleReady, b.Status)
	require.NotNil(t, b.BundleKey)
	assert.Equal(t, granted.BundleKey, *b.BundleKey)
	assert.Equal(t, uint64(1), b.BundleVersion)
	assert.Equal(t, uint64(12345), *b.FileSizeBytes)
	assert.NotNil(t, b.LastSyncedAt)
}

func TestCompleteUploadWithoutGrant(t *testing.T) {
	store := newFakeBundleStore(model.BundlePending)
	s := NewBundleService(store, fakeSigner{})

	_, err := s.CompleteUpload(context.Background(), 1, 99, "abc", 1)
	assert.ErrorIs(t, err, ErrNoUploadGrant)
}

func TestConcurrentUploadsLastCompleterWins(t *testing.T) {
	store := newFakeBundleStore(model.BundlePending)
	s := NewBundleService(store, fakeSigner{})

	first, err := s.RequestUpload(context.Background(), 1, 10)
	require.NoError(t, err)
	second, err := s.RequestUpload(context.Background(), 1, 11)
	require.NoError(t, err)
	require.NotEqual(t, first.BundleKey, second.BundleKey)

	_, err = s.CompleteUpload(context.Background(), 1, 10, "a", 1)
	require.NoError(t, err)
	b, err := s.CompleteUpload(context.Background(), 1, 11, "b", 2)
	require.NoError(t, err)

	// Each completer published its own key; the later one is current.
	assert.Equal(t, second.BundleKey, *b.BundleKey)
	assert.Equal(t, uint64(2), b.BundleVersion)
}

func TestRequestDownloadRequiresReady(t *testing.T) {
	store := newFakeBundleStore(model.BundlePending)
	s := NewBundleService(store, fakeSigner{})

	_, err := s.RequestDownload(context.Background(), 1, 20)
	assert.ErrorIs(t, err, ErrBundleNotReady)
}

func TestDownloadKeyStableUntilNewUpload(t *testing.T) {
	store := newFakeBundleStore(model.BundlePending)
	s := NewBundleService(store, fakeSigner{})

	_, err := s.RequestUpload(context.Background(), 1, 10)
	require.NoError(t, err)
	_, err = s.CompleteUpload(context.Background(), 1, 10, "a", 1)
	require.NoError(t, err)

	d1, err := s.RequestDownload(context.Background(), 1, 20)
	require.NoError(t, err)
	d2, err := s.RequestDownload(context.Background(), 1, 20)
	require.NoError(t, err)
	// Two successive download URLs reference the same key.
	assert.Equal(t, d1.BundleKey, d2.BundleKey)

	// A completed re-upload swaps the key.
	_, err = s.RequestUpload(context.Background(), 1, 10)
	require.NoError(t, err)
	_, err = s.CompleteUpload(context.Background(), 1, 10, "b", 2)
	require.NoError(t, err)
	d3, err := s.RequestDownload(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.NotEqual(t, d1.BundleKey, d3.BundleKey)
}

func TestPresignFailureIsUpstream(t *testing.T) {
	store := newFakeBundleStore(model.BundleReady)
	key := "bundles/2025/01/01/v1-x.zip"
	store.bundle.BundleKey = &key
	s := NewBundleService(store, fakeSigner{fail: true})

	_, err := s.RequestDownload(context.Background(), 1, 20)
	assert.ErrorIs(t, err, ErrUpstream)

	_, err = s.RequestUpload(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestMarkReadyAndStats(t *testing.T) {
	store := newFakeBundleStore(model.BundlePending)
	s := NewBundleService(store, fakeSigner{})

	b, err := s.MarkReady(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.BundleReady, b.Status)

	_, err = s.RequestUpload(context.Background(), 1, 10)
	require.NoError(t, err)
	_, err = s.CompleteUpload(context.Background(), 1, 10, "a", 1)
	require.NoError(t, err)
	_, err = s.RequestDownload(context.Background(), 1, 20)
	require.NoError(t, err)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Uploads)
	assert.Equal(t, 1, stats.DownloadURLs)
	assert.Equal(t, uint64(1), stats.BundleVersion)
}
