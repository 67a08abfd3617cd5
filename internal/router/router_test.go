package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/shared-session-control/internal/handler"
	"github.com/iliyamo/shared-session-control/internal/model"
)

func policyHandlers() Handlers {
	return Handlers{
		Auth:    &handler.AuthHandler{},
		Users:   &handler.UserHandler{},
		Bundle:  &handler.BundleHandler{},
		Billing: &handler.BillingHandler{},
		Admin:   &handler.AdminHandler{},
	}
}

func TestPolicyTableIsWellFormed(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range ProtectedRoutes(policyHandlers()) {
		key := r.Method + " " + r.Path
		assert.False(t, seen[key], "duplicate route %s", key)
		seen[key] = true

		assert.NotZero(t, model.RoleRank(r.MinRole), "unknown role on %s", key)
		require.NotNil(t, r.Handler, "nil handler on %s", key)
	}
}

func TestPolicyMinimumRoles(t *testing.T) {
	want := map[string]string{
		"POST /sessions/:id/mark-ready":     model.RoleOperatorRoot,
		"POST /sessions/:id/request-upload": model.RoleOperator,
		"POST /sessions/:id/request-download": model.RoleUser,
		"GET /sessions/my-sessions":         model.RoleUser,
		"DELETE /users/:id":                 model.RoleOperatorRoot,
		"PATCH /users/:id/role":             model.RoleOperatorRoot,
		"POST /users/:id/billing/payments":  model.RoleOperator,
		"GET /audit-log":                    model.RoleOperatorRoot,
		"GET /auth/session-status":          model.RoleUser,
	}
	got := map[string]string{}
	for _, r := range ProtectedRoutes(policyHandlers()) {
		got[r.Method+" "+r.Path] = r.MinRole
	}
	for route, role := range want {
		assert.Equal(t, role, got[route], route)
	}
}
