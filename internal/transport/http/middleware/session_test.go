package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/usecase"
)

type recordingAuditRepo struct {
	entries []domain.AuditEntry
}

func (r *recordingAuditRepo) Append(_ context.Context, entry domain.AuditEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingAuditRepo) List(_ context.Context, _, _ int) ([]domain.AuditEntry, error) {
	return r.entries, nil
}

func gateEngine(t *testing.T, identity *domain.Session) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)
	access := usecase.NewAccessService(usecase.NewAuditService(&recordingAuditRepo{}, nil, log), log)

	r := gin.New()
	if identity != nil {
		r.Use(func(c *gin.Context) {
			c.Set(identityKey, identity)
			c.Next()
		})
	}
	r.GET("/admin/accounts", RequireRole(access, domain.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func performGateRequest(t *testing.T, identity *domain.Session) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/accounts", nil)
	gateEngine(t, identity).ServeHTTP(w, req)
	return w
}

func TestGateDenialDoesNotRevealAuthenticationState(t *testing.T) {
	guest := performGateRequest(t, nil)
	wrongRole := performGateRequest(t, &domain.Session{
		ID:        "session-1",
		AccountID: 1,
		Username:  "alice",
		Role:      domain.RoleCustomer,
	})

	if guest.Code != http.StatusForbidden {
		t.Fatalf("guest deny status = %d, want %d", guest.Code, http.StatusForbidden)
	}
	if wrongRole.Code != guest.Code {
		t.Fatalf("deny status differs: no session %d, wrong role %d", guest.Code, wrongRole.Code)
	}
	if wrongRole.Body.String() != guest.Body.String() {
		t.Fatalf("deny body differs: no session %q, wrong role %q", guest.Body.String(), wrongRole.Body.String())
	}
}

func TestGateAllowsMatchingRole(t *testing.T) {
	w := performGateRequest(t, &domain.Session{
		ID:        "session-1",
		AccountID: 1,
		Username:  "root",
		Role:      domain.RoleAdmin,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
