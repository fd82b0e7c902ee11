package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
)

// requirementKind enumerates the supported access requirements.
type requirementKind int

const (
	requireRole requirementKind = iota
	requireAuthenticated
	requireUnauthenticated
)

// Requirement describes what an operation demands of the caller. Role
// requirements match exactly; there is no role hierarchy.
type Requirement struct {
	kind requirementKind
	role domain.Role
}

// RequireRole demands an authenticated caller holding exactly the given role.
func RequireRole(role domain.Role) Requirement {
	return Requirement{kind: requireRole, role: role}
}

// RequireAuthenticated demands any authenticated caller regardless of role.
func RequireAuthenticated() Requirement {
	return Requirement{kind: requireAuthenticated}
}

// RequireUnauthenticated demands a caller with no active session, e.g. for
// login and registration pages.
func RequireUnauthenticated() Requirement {
	return Requirement{kind: requireUnauthenticated}
}

// Decision is the outcome of an authorization check. Reason is for the audit
// trail only and never shown to the caller.
type Decision struct {
	Allowed bool
	Reason  string
}

// AccessService evaluates access requirements against the caller's session
// identity and audits every decision.
type AccessService struct {
	audit  *AuditService
	logger *zap.Logger
}

// NewAccessService constructs an AccessService instance.
func NewAccessService(audit *AuditService, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{audit: audit, logger: logger}
}

// Authorize checks the identity against the requirement. The decision is
// audited under Access Control with the acting identity, or "Guest" with a
// nil user id when no session was resolved. Calling it twice for the same
// input yields the same decision and one audit entry per call.
func (s *AccessService) Authorize(ctx context.Context, identity *domain.Session, requirement Requirement, operation, ip string) Decision {
	decision := evaluate(identity, requirement)

	var userID *int64
	username := guestActor
	if identity != nil {
		userID = &identity.AccountID
		username = identity.Username
	}

	status := domain.AuditStatusFailure
	description := fmt.Sprintf("Unauthorized access attempt to %s: %s", operation, decision.Reason)
	if decision.Allowed {
		status = domain.AuditStatusSuccess
		description = fmt.Sprintf("Access granted to %s", operation)
	}

	s.audit.Record(ctx, domain.AuditEventAccessControl, userID, username, ip, status, description)

	return decision
}

func evaluate(identity *domain.Session, requirement Requirement) Decision {
	switch requirement.kind {
	case requireUnauthenticated:
		if identity != nil {
			return Decision{Allowed: false, Reason: "already authenticated"}
		}
		return Decision{Allowed: true, Reason: "no session present"}
	case requireAuthenticated:
		if identity == nil {
			return Decision{Allowed: false, Reason: "no session present"}
		}
		return Decision{Allowed: true, Reason: "authenticated"}
	case requireRole:
		if identity == nil {
			return Decision{Allowed: false, Reason: "no session present"}
		}
		if !requirement.role.Valid() {
			return Decision{Allowed: false, Reason: "unknown role requirement"}
		}
		if identity.Role != requirement.role {
			return Decision{Allowed: false, Reason: fmt.Sprintf("role %s does not satisfy required role %s", identity.Role, requirement.role)}
		}
		return Decision{Allowed: true, Reason: fmt.Sprintf("role %s matches", identity.Role)}
	default:
		return Decision{Allowed: false, Reason: "unknown requirement"}
	}
}
