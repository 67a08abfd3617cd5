package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/shared-session-control/internal/model"
	"github.com/iliyamo/shared-session-control/internal/objectstore"
)

// Typed bundle failures.
var (
	// ErrBundleNotReady rejects downloads while no published version exists.
	ErrBundleNotReady = errors.New("bundle is not ready for download")
	// ErrNoUploadGrant rejects complete-upload calls with no prior
	// request-upload from the same caller.
	ErrNoUploadGrant = errors.New("no upload was requested by this caller")
	// ErrUpstream wraps object-store signature failures; handlers map it to
	// 502.
	ErrUpstream = errors.New("object store unavailable")
)

// BundleStore is the slice of the bundle repository the service drives.
type BundleStore interface {
	GetOrCreateShared(ctx context.Context) (model.SharedBundle, error)
	GetByID(ctx context.Context, id uint64) (model.SharedBundle, error)
	UpdateStatus(ctx context.Context, id uint64, status string) error
	CompleteUpload(ctx context.Context, id uint64, key, checksum string, fileSize uint64, at time.Time) error
	CreateGrant(ctx context.Context, g *model.BundleUploadGrant) error
	LatestGrant(ctx context.Context, bundleID, userID uint64) (model.BundleUploadGrant, error)
	CreateEvent(ctx context.Context, e *model.BundleEvent) error
	ListEvents(ctx context.Context, bundleID uint64, limit int) ([]model.BundleEvent, error)
	CountEventsByMessage(ctx context.Context, bundleID uint64, message string) (int, error)
}

// Event messages the service writes itself (alongside client-reported ones).
const (
	eventDownloadURLIssued = "download_url_issued"
	eventUploadURLIssued   = "upload_url_issued"
	eventUploadCompleted   = "upload_completed"
)

// PresignedURL is the handoff returned for both directions.
type PresignedURL struct {
	URL              string `json:"url"`
	BundleKey        string `json:"bundle_key"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// BundleService owns the shared-bundle lifecycle and the presigned handoff.
type BundleService struct {
	bundles BundleStore
	signer  objectstore.Signer
	now     func() time.Time
}

func NewBundleService(bundles BundleStore, signer objectstore.Signer) *BundleService {
	return &BundleService{bundles: bundles, signer: signer, now: func() time.Time { return time.Now().UTC() }}
}

// Shared returns the single shared bundle, lazily creating a PENDING row on
// first read.
func (s *BundleService) Shared(ctx context.Context) (model.SharedBundle, error) {
	return s.bundles.GetOrCreateShared(ctx)
}

// RequestUpload issues a presigned PUT URL under a fresh versioned key and
// records the grant for this caller. Bundle state does not change here;
// state advances only on completion, so an abandoned URL leaves no garbage
// to clean up.
func (s *BundleService) RequestUpload(ctx context.Context, bundleID, userID uint64) (PresignedURL, error) {
	b, err := s.bundles.GetByID(ctx, bundleID)
	if err != nil {
		return PresignedURL{}, err
	}
	key := objectstore.NewBundleKey(b.BundleVersion)
	url, err := s.signer.PresignPut(ctx, key)
	if err != nil {
		return PresignedURL{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if err := s.bundles.CreateGrant(ctx, &model.BundleUploadGrant{
		BundleID:  b.ID,
		UserID:    userID,
		BundleKey: key,
	}); err != nil {
		return PresignedURL{}, err
	}
	s.selfEvent(ctx, b.ID, userID, eventUploadURLIssued, key)
	return PresignedURL{
		URL:              url,
		BundleKey:        key,
		ExpiresInSeconds: int(objectstore.URLTTL.Seconds()),
	}, nil
}

// CompleteUpload publishes the caller's most recent granted key as the
// current bundle version. Two operators uploading concurrently each hold a
// distinct key; whichever completes last wins. The object's existence is
// not verified server-side — a bad upload is recoverable with a fresh
// capture.
func (s *BundleService) CompleteUpload(ctx context.Context, bundleID, userID uint64, checksum string, fileSize uint64) (model.SharedBundle, error) {
	b, err := s.bundles.GetByID(ctx, bundleID)
	if err != nil {
		return model.SharedBundle{}, err
	}
	grant, err := s.bundles.LatestGrant(ctx, b.ID, userID)
	if err != nil {
		return model.SharedBundle{}, ErrNoUploadGrant
	}
	if err := s.bundles.CompleteUpload(ctx, b.ID, grant.BundleKey, checksum, fileSize, s.now()); err != nil {
		return model.SharedBundle{}, err
	}
	s.selfEvent(ctx, b.ID, userID, eventUploadCompleted, grant.BundleKey)
	return s.bundles.GetByID(ctx, b.ID)
}

// RequestDownload issues a presigned GET URL for the current version. Only
// the URL issuance is recorded; per-object download logging belongs to the
// object store.
func (s *BundleService) RequestDownload(ctx context.Context, bundleID, userID uint64) (PresignedURL, error) {
	b, err := s.bundles.GetByID(ctx, bundleID)
	if err != nil {
		return PresignedURL{}, err
	}
	if !b.Downloadable() || b.BundleKey == nil {
		return PresignedURL{}, ErrBundleNotReady
	}
	url, err := s.signer.PresignGet(ctx, *b.BundleKey)
	if err != nil {
		return PresignedURL{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	s.selfEvent(ctx, b.ID, userID, eventDownloadURLIssued, *b.BundleKey)
	return PresignedURL{
		URL:              url,
		BundleKey:        *b.BundleKey,
		ExpiresInSeconds: int(objectstore.URLTTL.Seconds()),
	}, nil
}

// MarkReady force-transitions the bundle to READY. Operator-root path for
// bundles uploaded out-of-band.
func (s *BundleService) MarkReady(ctx context.Context, bundleID uint64) (model.SharedBundle, error) {
	if _, err := s.bundles.GetByID(ctx, bundleID); err != nil {
		return model.SharedBundle{}, err
	}
	if err := s.bundles.UpdateStatus(ctx, bundleID, model.BundleReady); err != nil {
		return model.SharedBundle{}, err
	}
	return s.bundles.GetByID(ctx, bundleID)
}

// SetStatus applies an operator-reported state (auth_error, proxy_error,
// disabled, pending, ...).
func (s *BundleService) SetStatus(ctx context.Context, bundleID uint64, status string) (model.SharedBundle, error) {
	if _, err := s.bundles.GetByID(ctx, bundleID); err != nil {
		return model.SharedBundle{}, err
	}
	if err := s.bundles.UpdateStatus(ctx, bundleID, status); err != nil {
		return model.SharedBundle{}, err
	}
	return s.bundles.GetByID(ctx, bundleID)
}

// ReportEvent appends a client-reported status line. No behavioral effect
// beyond visibility.
func (s *BundleService) ReportEvent(ctx context.Context, bundleID, userID uint64, level, message string, blob []byte) error {
	if level == "" {
		level = "INFO"
	}
	return s.bundles.CreateEvent(ctx, &model.BundleEvent{
		BundleID: bundleID,
		UserID:   &userID,
		Level:    level,
		Message:  message,
		Context:  blob,
	})
}

// SharedStats aggregates the event log for the admin view.
type SharedStats struct {
	BundleVersion uint64     `json:"bundle_version"`
	Status        string     `json:"status"`
	Uploads       int        `json:"uploads"`
	DownloadURLs  int        `json:"download_urls_issued"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
}

// Stats returns counters derived from the shared bundle's event log.
func (s *BundleService) Stats(ctx context.Context) (SharedStats, error) {
	b, err := s.bundles.GetOrCreateShared(ctx)
	if err != nil {
		return SharedStats{}, err
	}
	uploads, err := s.bundles.CountEventsByMessage(ctx, b.ID, eventUploadCompleted)
	if err != nil {
		return SharedStats{}, err
	}
	downloads, err := s.bundles.CountEventsByMessage(ctx, b.ID, eventDownloadURLIssued)
	if err != nil {
		return SharedStats{}, err
	}
	return SharedStats{
		BundleVersion: b.BundleVersion,
		Status:        b.Status,
		Uploads:       uploads,
		DownloadURLs:  downloads,
		LastSyncedAt:  b.LastSyncedAt,
	}, nil
}

// selfEvent records a server-side lifecycle marker in the event log.
func (s *BundleService) selfEvent(ctx context.Context, bundleID, userID uint64, message, key string) {
	_ = s.bundles.CreateEvent(ctx, &model.BundleEvent{
		BundleID: bundleID,
		UserID:   &userID,
		Level:    "INFO",
		Message:  message,
		Context:  []byte(fmt.Sprintf(`{"bundle_key":%q}`, key)),
	})
}
