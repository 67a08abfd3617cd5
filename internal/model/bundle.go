package model

import "time"

// SharedBundleName identifies the single shared bundle row. The row is
// created lazily on first read.
const SharedBundleName = "shared"

// Shared bundle statuses.
const (
	BundlePending     = "PENDING"
	BundleUploading   = "UPLOADING"
	BundleReady       = "READY"
	BundleDownloading = "DOWNLOADING"
	BundleAuthError   = "AUTH_ERROR"
	BundleProxyError  = "PROXY_ERROR"
	BundleDisabled    = "DISABLED"
)

// SharedBundle is the single shared browser-profile snapshot tracked by the
// service. BundleKey is the opaque object-store key of the current version;
// status READY implies BundleKey is non-nil. BundleVersion increases by one
// per completed upload.
type SharedBundle struct {
	ID            uint64
	Name          string
	Status        string
	BundleKey     *string
	Checksum      *string
	FileSizeBytes *uint64
	BundleVersion uint64
	DomainID      *uint64
	ProxyID       *uint64
	LastSyncedAt  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Downloadable reports whether clients may request a download URL in this
// status. DOWNLOADING is a bookkeeping label identical to READY for callers.
func (b *SharedBundle) Downloadable() bool {
	return b.Status == BundleReady || b.Status == BundleDownloading
}

// BundleUploadGrant records the object key issued to a caller at
// request-upload time. complete-upload resolves the caller's most recent
// grant, so two operators uploading concurrently cannot steal each other's
// keys: last completer wins.
type BundleUploadGrant struct {
	ID        uint64
	BundleID  uint64
	UserID    uint64
	BundleKey string
	CreatedAt time.Time
}

// BundleEvent is a client-reported status line appended to the bundle event
// log. No behavioral effect beyond visibility.
type BundleEvent struct {
	ID        uint64
	BundleID  uint64
	UserID    *uint64
	Level     string
	Message   string
	Context   []byte
	CreatedAt time.Time
}
