package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/shared-session-control/internal/config"
	"github.com/iliyamo/shared-session-control/internal/device"
	"github.com/iliyamo/shared-session-control/internal/geo"
	"github.com/iliyamo/shared-session-control/internal/model"
	"github.com/iliyamo/shared-session-control/internal/repository"
	"github.com/iliyamo/shared-session-control/internal/utils"
)

// Typed login failures. Handlers map ErrInvalidCredentials to 401 with one
// shared message (never revealing whether the email exists) and the other
// two to 403.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is not active")
	ErrBillingExpired     = errors.New("billing period has expired")
)

// failureWindow is the trailing window over which failed attempts are
// counted for alert severity escalation.
const failureWindow = 15 * time.Minute

// AuthUserStore is the slice of the user repository the auth engine uses.
type AuthUserStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint64) (model.User, error)
	CommitLoginTx(ctx context.Context, tx *sql.Tx, id uint64, ip, accessToken string, at time.Time) error
	SetCurrentSessionToken(ctx context.Context, id uint64, token *string) error
}

// AuthSessionStore is the slice of the session repository the engine uses.
type AuthSessionStore interface {
	ActiveByUserTx(ctx context.Context, tx *sql.Tx, userID uint64) ([]model.SessionActivity, error)
	InvalidateTx(ctx context.Context, tx *sql.Tx, userID uint64, reason string, at time.Time) error
	CreateTx(ctx context.Context, tx *sql.Tx, s *model.SessionActivity) error
	UpdateToken(ctx context.Context, userID uint64, newToken string) error
	Invalidate(ctx context.Context, userID uint64, reason string, at time.Time) error
}

// AuthHistoryStore records login attempts.
type AuthHistoryStore interface {
	Create(ctx context.Context, h *model.LoginHistory) error
	CountRecentFailures(ctx context.Context, userID uint64, since time.Time) (int, error)
}

// AlertSink receives the security events the pipeline fires.
type AlertSink interface {
	FailedLogin(ctx context.Context, userID uint64, email, ip string, recentFailures int)
	UnknownEmailAttempt(ctx context.Context, email, ip string)
	MultipleDeviceLogin(ctx context.Context, userID uint64, email, previousDevice, newDevice string)
	SuspiciousLocation(ctx context.Context, userID uint64, email, from, to string, distanceKm, elapsedMin float64)
}

// LoginInput carries everything the pipeline needs from the request.
type LoginInput struct {
	Email          string
	Password       string
	IP             string
	UserAgent      string
	MACAddress     string
	DeviceMetadata string
}

// TokenPair is the access/refresh pair returned to clients.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// LoginResult is the successful-login payload.
type LoginResult struct {
	User   model.User
	Tokens TokenPair
}

// AuthService runs the login pipeline, token refresh and logout paths. The
// db handle is used only to open the single-session transaction; all row
// access goes through the store interfaces. now is a seam for tests.
type AuthService struct {
	db       *sql.DB
	cfg      config.Config
	users    AuthUserStore
	sessions AuthSessionStore
	history  AuthHistoryStore
	alerts   AlertSink
	resolver geo.Resolver
	now      func() time.Time
}

func NewAuthService(db *sql.DB, cfg config.Config, users AuthUserStore, sessions AuthSessionStore,
	history AuthHistoryStore, alerts AlertSink, resolver geo.Resolver) *AuthService {
	return &AuthService{
		db:       db,
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		history:  history,
		alerts:   alerts,
		resolver: resolver,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Login executes the ordered pipeline: status gate, password verify, billing
// gate, single-session invalidation, token mint, state commit, records and
// alerts. Prior-session invalidation, the new session row and the user-row
// commit run inside one transaction holding a row lock on the user, so two
// concurrent logins serialize and the later committer wins. The location
// lookup and token mint happen before that transaction; the login-history row
// and alerts are written after it commits.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	// 1. Lookup & status gate.
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.alerts.UnknownEmailAttempt(ctx, email, in.IP)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	dev := device.Parse(in.UserAgent)
	fingerprint := dev.Fingerprint()

	if u.Status != model.StatusActive {
		s.recordAttempt(ctx, &u, email, in.IP, fingerprint, false, model.FailureInactiveAccount, nil)
		return LoginResult{}, ErrInactiveAccount
	}

	// 2. Password verify.
	if !utils.VerifyPassword(u.PasswordHash, in.Password) {
		s.recordAttempt(ctx, &u, email, in.IP, fingerprint, false, model.FailureBadPassword, nil)
		failures, err := s.history.CountRecentFailures(ctx, u.ID, s.now().Add(-failureWindow))
		if err != nil {
			log.Printf("auth: failure count failed: %v", err)
		}
		s.alerts.FailedLogin(ctx, u.ID, email, in.IP, failures)
		return LoginResult{}, ErrInvalidCredentials
	}

	// 3. Billing gate. Expired plans reject before any token is minted;
	// disabling the account is the sweeper's job, not the login path's.
	if StatusOf(u, s.now()).State == BillingStateExpired {
		s.recordAttempt(ctx, &u, email, in.IP, fingerprint, false, model.FailureBillingExpired, nil)
		return LoginResult{}, ErrBillingExpired
	}

	// Resolve location before opening the transaction; the lookup may take
	// up to its 5-second deadline and must not hold the row lock that long.
	loc, _ := s.resolver.Resolve(ctx, in.IP)

	// 5. Token mint.
	access, err := utils.NewAccessToken(s.cfg.JWTAccessSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return LoginResult{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.JWTRefreshSecret, u.ID, u.Role, s.cfg.RefreshTTLDays)
	if err != nil {
		return LoginResult{}, err
	}

	// 4 + 6. Single-session invalidation and state commit, atomically.
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return LoginResult{}, err
	}
	var prev *model.SessionActivity
	err = func() error {
		if _, err := s.users.GetByIDForUpdate(ctx, tx, u.ID); err != nil {
			return err
		}
		active, err := s.sessions.ActiveByUserTx(ctx, tx, u.ID)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			prev = &active[0]
			if err := s.sessions.InvalidateTx(ctx, tx, u.ID, model.LogoutNewLogin, now); err != nil {
				return err
			}
		}
		sess := &model.SessionActivity{
			UserID:            u.ID,
			SessionToken:      access.Token,
			IP:                in.IP,
			DeviceFingerprint: fingerprint,
			LoginAt:           now,
			LastActivityAt:    now,
			IsActive:          true,
		}
		applyLocation(sess, loc)
		if err := s.sessions.CreateTx(ctx, tx, sess); err != nil {
			return err
		}
		return s.users.CommitLoginTx(ctx, tx, u.ID, in.IP, access.Token, now)
	}()
	if err != nil {
		_ = tx.Rollback()
		return LoginResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return LoginResult{}, err
	}

	// 7. Emit records (best-effort after the critical commit).
	s.recordAttempt(ctx, &u, email, in.IP, fingerprint, true, "", loc)

	// 8. Alerting.
	if prev != nil {
		s.alerts.MultipleDeviceLogin(ctx, u.ID, email, prev.DeviceFingerprint, fingerprint)
		if loc != nil && prev.Latitude != nil && prev.Longitude != nil {
			dist := geo.Haversine(*prev.Latitude, *prev.Longitude, loc.Lat, loc.Lon)
			elapsed := now.Sub(prev.LastActivityAt).Minutes()
			if geo.IsSuspiciousTravel(dist, elapsed) {
				s.alerts.SuspiciousLocation(ctx, u.ID, email,
					prettyOf(prev), loc.Pretty, dist, elapsed)
			}
		}
	}

	u.CurrentSessionToken = &access.Token
	u.LastLoginAt = &now
	u.LastLoginIP = &in.IP
	return LoginResult{
		User: u,
		Tokens: TokenPair{
			AccessToken:      access.Token,
			AccessExpiresAt:  access.Exp,
			RefreshToken:     refresh.Token,
			RefreshExpiresAt: refresh.Exp,
		},
	}, nil
}

// Refresh exchanges a valid refresh token for a new pair. It does not
// consult currentSessionToken — a displaced session may still refresh — but
// the freshly minted access token immediately becomes the user's current
// one, displacing any other.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	userID, _, err := utils.VerifyToken(s.cfg.JWTRefreshSecret, refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	if u.Status != model.StatusActive {
		return TokenPair{}, ErrInactiveAccount
	}

	access, err := utils.NewAccessToken(s.cfg.JWTAccessSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.JWTRefreshSecret, u.ID, u.Role, s.cfg.RefreshTTLDays)
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.users.SetCurrentSessionToken(ctx, u.ID, &access.Token); err != nil {
		return TokenPair{}, err
	}
	// Keep the activity row's identity across the rotation.
	if err := s.sessions.UpdateToken(ctx, u.ID, access.Token); err != nil {
		log.Printf("auth: session token rewrite failed for user %d: %v", u.ID, err)
	}

	return TokenPair{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.Exp,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.Exp,
	}, nil
}

// CurrentUser loads the authenticated user's record.
func (s *AuthService) CurrentUser(ctx context.Context, userID uint64) (model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// Logout clears the caller's session.
func (s *AuthService) Logout(ctx context.Context, userID uint64) error {
	if err := s.users.SetCurrentSessionToken(ctx, userID, nil); err != nil {
		return err
	}
	return s.sessions.Invalidate(ctx, userID, model.LogoutManual, s.now())
}

// ForceLogout terminates a user's session on an operator's behalf.
func (s *AuthService) ForceLogout(ctx context.Context, userID uint64) error {
	if err := s.users.SetCurrentSessionToken(ctx, userID, nil); err != nil {
		return err
	}
	return s.sessions.Invalidate(ctx, userID, model.LogoutForcedByAdmin, s.now())
}

// recordAttempt appends a login-history row. Never fails the caller.
func (s *AuthService) recordAttempt(ctx context.Context, u *model.User, email, ip, fingerprint string,
	success bool, failureReason string, loc *geo.Location) {
	h := model.LoginHistory{
		Email:             email,
		IP:                ip,
		DeviceFingerprint: fingerprint,
		Success:           success,
	}
	if u != nil {
		h.UserID = &u.ID
	}
	if failureReason != "" {
		h.FailureReason = &failureReason
	}
	if loc != nil {
		h.City = &loc.City
		h.Country = &loc.Country
		h.Latitude = &loc.Lat
		h.Longitude = &loc.Lon
	}
	if err := s.history.Create(ctx, &h); err != nil {
		log.Printf("auth: login history write failed: %v", err)
	}
}

func applyLocation(s *model.SessionActivity, loc *geo.Location) {
	if loc == nil {
		return
	}
	s.City = &loc.City
	s.Country = &loc.Country
	s.Latitude = &loc.Lat
	s.Longitude = &loc.Lon
}

func prettyOf(s *model.SessionActivity) string {
	switch {
	case s.City != nil && s.Country != nil:
		return *s.City + ", " + *s.Country
	case s.Country != nil:
		return *s.Country
	case s.City != nil:
		return *s.City
	}
	return ""
}
