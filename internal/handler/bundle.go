package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/shared-session-control/internal/middleware"
	"github.com/iliyamo/shared-session-control/internal/model"
	"github.com/iliyamo/shared-session-control/internal/repository"
	"github.com/iliyamo/shared-session-control/internal/service"
)

// BundleHandler exposes the session-bundle distribution surface.
type BundleHandler struct {
	Bundles *service.BundleService
	Repo    *repository.BundleRepo
	Audits  *repository.AuditRepo
}

func NewBundleHandler(bundles *service.BundleService, repo *repository.BundleRepo, audits *repository.AuditRepo) *BundleHandler {
	return &BundleHandler{Bundles: bundles, Repo: repo, Audits: audits}
}

// bundleView masquerades the shared bundle as a session assigned to the
// caller; the client treats it as its own.
type bundleView struct {
	ID            uint64     `json:"id"`
	AssignedTo    uint64     `json:"assigned_to"`
	Status        string     `json:"status"`
	BundleVersion uint64     `json:"bundle_version"`
	Checksum      *string    `json:"checksum,omitempty"`
	FileSizeBytes *uint64    `json:"file_size_bytes,omitempty"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func bundleViewOf(b model.SharedBundle, callerID uint64) bundleView {
	return bundleView{
		ID:            b.ID,
		AssignedTo:    callerID,
		Status:        b.Status,
		BundleVersion: b.BundleVersion,
		Checksum:      b.Checksum,
		FileSizeBytes: b.FileSizeBytes,
		LastSyncedAt:  b.LastSyncedAt,
		CreatedAt:     b.CreatedAt,
	}
}

// MySessions returns the shared bundle as a single-element list assigned to
// the caller, lazily creating the pending row on first read.
func (h *BundleHandler) MySessions(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Bundles.Shared(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, []bundleView{bundleViewOf(b, middleware.UserID(c))})
}

// SharedStats serves upload/download counters for the admin view.
func (h *BundleHandler) SharedStats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	stats, err := h.Bundles.Stats(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// RequestUpload issues a presigned PUT URL under a fresh key.
func (h *BundleHandler) RequestUpload(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	url, err := h.Bundles.RequestUpload(ctx, id, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	audit(ctx, h.Audits, middleware.UserID(c), "bundle.request_upload", "bundle", c.Param("id"))
	return c.JSON(http.StatusOK, url)
}

// CompleteUpload publishes the caller's uploaded object as the current
// bundle version.
func (h *BundleHandler) CompleteUpload(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req struct {
		Checksum      string `json:"checksum"`
		FileSizeBytes uint64 `json:"fileSizeBytes"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Bundles.CompleteUpload(ctx, id, middleware.UserID(c), req.Checksum, req.FileSizeBytes)
	if err != nil {
		return fail(c, err)
	}
	audit(ctx, h.Audits, middleware.UserID(c), "bundle.complete_upload", "bundle", c.Param("id"))
	return c.JSON(http.StatusOK, bundleViewOf(b, middleware.UserID(c)))
}

// RequestDownload issues a presigned GET URL for the current version.
func (h *BundleHandler) RequestDownload(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	url, err := h.Bundles.RequestDownload(ctx, id, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, url)
}

// MarkReady force-transitions the bundle to READY (operator-root only).
func (h *BundleHandler) MarkReady(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Bundles.MarkReady(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	audit(ctx, h.Audits, middleware.UserID(c), "bundle.mark_ready", "bundle", c.Param("id"))
	return c.JSON(http.StatusOK, bundleViewOf(b, middleware.UserID(c)))
}

// ReportEvent appends a client-reported status line to the event log.
func (h *BundleHandler) ReportEvent(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req struct {
		Level   string          `json:"level"`
		Message string          `json:"message"`
		Context json.RawMessage `json:"context"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "message required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Bundles.ReportEvent(ctx, id, middleware.UserID(c), strings.ToUpper(req.Level), req.Message, req.Context); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusCreated)
}

// ListEvents returns the bundle's event log (operator view).
func (h *BundleHandler) ListEvents(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	events, err := h.Repo.ListEvents(ctx, id, 0)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, events)
}

// ----- Admin CRUD -----

// List returns every bundle row.
func (h *BundleHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	bundles, err := h.Repo.List(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, bundles)
}

// Create lazily materializes the shared row (idempotent).
func (h *BundleHandler) Create(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Bundles.Shared(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Get returns one bundle row.
func (h *BundleHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Repo.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

var validBundleStatuses = map[string]bool{
	model.BundlePending:     true,
	model.BundleUploading:   true,
	model.BundleReady:       true,
	model.BundleDownloading: true,
	model.BundleAuthError:   true,
	model.BundleProxyError:  true,
	model.BundleDisabled:    true,
}

// Update patches status and catalog annotations.
func (h *BundleHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req struct {
		Status   *string `json:"status"`
		DomainID *uint64 `json:"domain_id"`
		ProxyID  *uint64 `json:"proxy_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if _, err := h.Repo.GetByID(ctx, id); err != nil {
		return fail(c, err)
	}
	if req.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*req.Status))
		if !validBundleStatuses[status] {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "unknown status"})
		}
		if _, err := h.Bundles.SetStatus(ctx, id, status); err != nil {
			return fail(c, err)
		}
	}
	if req.DomainID != nil || req.ProxyID != nil {
		if err := h.Repo.UpdateAnnotations(ctx, id, req.DomainID, req.ProxyID); err != nil {
			return fail(c, err)
		}
	}
	audit(ctx, h.Audits, middleware.UserID(c), "bundle.update", "bundle", c.Param("id"))
	b, err := h.Repo.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Delete removes a bundle row.
func (h *BundleHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if _, err := h.Repo.GetByID(ctx, id); err != nil {
		return fail(c, err)
	}
	if err := h.Repo.Delete(ctx, id); err != nil {
		return fail(c, err)
	}
	audit(ctx, h.Audits, middleware.UserID(c), "bundle.delete", "bundle", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
