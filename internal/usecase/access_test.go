package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
)

func newAccessFixture(t *testing.T) (*AccessService, *fakeAuditRepo) {
	t.Helper()

	log := zaptest.NewLogger(t)
	auditRepo := newFakeAuditRepo()
	auditService := NewAuditService(auditRepo, nil, log)
	auditService.WithClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) })

	return NewAccessService(auditService, log), auditRepo
}

func sessionWithRole(role domain.Role) *domain.Session {
	return &domain.Session{
		ID:        "session-1",
		AccountID: 42,
		Username:  "alice",
		Role:      role,
	}
}

func TestAuthorizeExactRoleMatch(t *testing.T) {
	access, audit := newAccessFixture(t)

	decision := access.Authorize(context.Background(), sessionWithRole(domain.RoleAdmin), RequireRole(domain.RoleAdmin), "GET /admin/accounts", "10.0.0.1")
	if !decision.Allowed {
		t.Fatalf("expected allow, got %+v", decision)
	}

	entry, ok := audit.last()
	if !ok || entry.EventType != domain.AuditEventAccessControl || entry.Status != domain.AuditStatusSuccess {
		t.Fatalf("expected access control success entry, got %+v", entry)
	}
}

func TestAuthorizeDeniesOtherRoles(t *testing.T) {
	access, audit := newAccessFixture(t)

	// No hierarchy: admin does not satisfy a manager requirement.
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleCustomer} {
		decision := access.Authorize(context.Background(), sessionWithRole(role), RequireRole(domain.RoleManager), "GET /manager/categories", "10.0.0.1")
		if decision.Allowed {
			t.Fatalf("expected deny for role %s", role)
		}
	}

	entry, ok := audit.last()
	if !ok || entry.Status != domain.AuditStatusFailure {
		t.Fatalf("expected failure audit entry, got %+v", entry)
	}
	if entry.Username != "alice" || entry.UserID == nil {
		t.Fatalf("denial must audit the acting identity, got %+v", entry)
	}
	if !strings.Contains(entry.Description, "does not satisfy required role") {
		t.Fatalf("denial reason must be recorded in the audit trail, got %q", entry.Description)
	}
}

func TestAuthorizeUnresolvedIdentityAuditsGuest(t *testing.T) {
	access, audit := newAccessFixture(t)

	decision := access.Authorize(context.Background(), nil, RequireAuthenticated(), "POST /logout", "10.0.0.1")
	if decision.Allowed {
		t.Fatal("expected deny without a session")
	}

	entry, ok := audit.last()
	if !ok {
		t.Fatal("expected an audit entry")
	}
	if entry.Username != "Guest" || entry.UserID != nil {
		t.Fatalf("unresolved identity must audit as Guest with nil user id, got %+v", entry)
	}
}

func TestAuthorizeRequireUnauthenticated(t *testing.T) {
	access, _ := newAccessFixture(t)

	if d := access.Authorize(context.Background(), nil, RequireUnauthenticated(), "POST /login", "10.0.0.1"); !d.Allowed {
		t.Fatalf("expected allow without session, got %+v", d)
	}
	if d := access.Authorize(context.Background(), sessionWithRole(domain.RoleCustomer), RequireUnauthenticated(), "POST /login", "10.0.0.1"); d.Allowed {
		t.Fatal("expected deny with an active session")
	}
}

func TestAuthorizeIsIdempotentAndAuditsEachCall(t *testing.T) {
	access, audit := newAccessFixture(t)
	identity := sessionWithRole(domain.RoleCustomer)

	first := access.Authorize(context.Background(), identity, RequireRole(domain.RoleAdmin), "GET /admin/accounts", "10.0.0.1")
	second := access.Authorize(context.Background(), identity, RequireRole(domain.RoleAdmin), "GET /admin/accounts", "10.0.0.1")

	if first.Allowed != second.Allowed {
		t.Fatal("same inputs must yield the same decision")
	}
	if audit.count() != 2 {
		t.Fatalf("audit entries = %d, want one per call", audit.count())
	}
}
