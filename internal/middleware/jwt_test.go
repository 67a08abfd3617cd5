package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/shared-session-control/internal/model"
	"github.com/iliyamo/shared-session-control/internal/repository"
	"github.com/iliyamo/shared-session-control/internal/utils"
)

const testSecret = "access-secret"

type fakeLoader struct{ users map[uint64]model.User }

func (f fakeLoader) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

type fakeToucher struct{ touched []uint64 }

func (f *fakeToucher) TouchActivity(ctx context.Context, userID uint64, at time.Time) error {
	f.touched = append(f.touched, userID)
	return nil
}

func runAuth(t *testing.T, bearer string, loader fakeLoader, toucher *fakeToucher) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Auth(testSecret, loader, toucher)(func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"valid": true, "userId": UserID(c)})
	})
	require.NoError(t, h(c))

	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func activeUser(token string) model.User {
	return model.User{ID: 1, Email: "alice@x", Role: model.RoleUser,
		Status: model.StatusActive, CurrentSessionToken: &token}
}

func TestAuthHappyPath(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 1, model.RoleUser, 15)
	require.NoError(t, err)
	toucher := &fakeToucher{}

	rec, body := runAuth(t, tok.Token, fakeLoader{users: map[uint64]model.User{1: activeUser(tok.Token)}}, toucher)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, []uint64{1}, toucher.touched)
}

func TestAuthMissingBearer(t *testing.T) {
	rec, _ := runAuth(t, "", fakeLoader{}, &fakeToucher{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthExpiredTokenHasDistinctReason(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 1, model.RoleUser, -1)
	require.NoError(t, err)

	rec, body := runAuth(t, tok.Token, fakeLoader{}, &fakeToucher{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_expired", body["reason"])
}

func TestAuthDisplacedSession(t *testing.T) {
	oldTok, err := utils.NewAccessToken(testSecret, 1, model.RoleUser, 15)
	require.NoError(t, err)
	newTok, err := utils.NewAccessToken(testSecret, 1, model.RoleUser, 15)
	require.NoError(t, err)
	require.NotEqual(t, oldTok.Token, newTok.Token)

	// The user's current token is the new one; the old bearer is displaced.
	rec, body := runAuth(t, oldTok.Token, fakeLoader{users: map[uint64]model.User{1: activeUser(newTok.Token)}}, &fakeToucher{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ReasonDisplaced, body["reason"])
}

func TestAuthInactiveAccount(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 1, model.RoleUser, 15)
	require.NoError(t, err)
	u := activeUser(tok.Token)
	u.Status = model.StatusDisabled

	rec, _ := runAuth(t, tok.Token, fakeLoader{users: map[uint64]model.User{1: u}}, &fakeToucher{})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthUnknownUser(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 99, model.RoleUser, 15)
	require.NoError(t, err)

	rec, _ := runAuth(t, tok.Token, fakeLoader{users: map[uint64]model.User{}}, &fakeToucher{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
