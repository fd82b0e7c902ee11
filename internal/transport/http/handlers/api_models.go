package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with the trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountSummary describes a minimal view of an account returned by the API.
type AccountSummary struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	Address   *string     `json:"address,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewAccountSummary maps a domain account to its API view.
func NewAccountSummary(account domain.Account) AccountSummary {
	return AccountSummary{
		ID:        account.ID,
		Username:  account.Username,
		Role:      account.Role,
		Address:   account.Address,
		CreatedAt: account.CreatedAt,
	}
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	Account AccountSummary `json:"account"`
	Report  string         `json:"report"`
}

// LoginReportResponse carries the one-shot last-login report.
type LoginReportResponse struct {
	Report string `json:"report,omitempty"`
	Taken  bool   `json:"taken"`
}

// RegistrationRequest defines the account registration payload.
type RegistrationRequest struct {
	Username        string `json:"username" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// ProvisionRequest defines the admin account-provisioning payload.
type ProvisionRequest struct {
	Username        string `json:"username" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	Role            string `json:"role" binding:"required"`
}

// AssignCategoriesRequest defines the category assignment payload.
type AssignCategoriesRequest struct {
	Categories []string `json:"categories" binding:"required"`
}

// RecoveryVerifyRequest carries the recovery challenge response.
type RecoveryVerifyRequest struct {
	Username string `json:"username" binding:"required"`
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
}

// RecoveryVerifyResponse returns the token a reset must present.
type RecoveryVerifyResponse struct {
	RecoveryToken string `json:"recovery_token"`
}

// RecoveryResetRequest carries the token-bound password reset payload.
type RecoveryResetRequest struct {
	Username      string `json:"username" binding:"required"`
	RecoveryToken string `json:"recovery_token" binding:"required"`
	NewPassword   string `json:"new_password" binding:"required"`
}

// ChangePasswordRequest carries an authenticated password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// SecurityQuestionRequest carries a security-question update.
type SecurityQuestionRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	Question        string `json:"question" binding:"required"`
	Answer          string `json:"answer" binding:"required"`
}

// UpdateAddressRequest carries a delivery address update.
type UpdateAddressRequest struct {
	Address string `json:"address" binding:"required"`
}

// AuditEntryView is the API projection of an audit log entry.
type AuditEntryView struct {
	ID          int64     `json:"id"`
	EventType   string    `json:"event_type"`
	UserID      *int64    `json:"user_id,omitempty"`
	Username    string    `json:"username"`
	IPAddress   string    `json:"ip_address"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAuditEntryView maps a domain audit entry to its API view.
func NewAuditEntryView(entry domain.AuditEntry) AuditEntryView {
	return AuditEntryView{
		ID:          entry.ID,
		EventType:   string(entry.EventType),
		UserID:      entry.UserID,
		Username:    entry.Username,
		IPAddress:   entry.IPAddress,
		Status:      string(entry.Status),
		Description: entry.Description,
		CreatedAt:   entry.CreatedAt,
	}
}

// CategoryView is the API projection of a category assignment.
type CategoryView struct {
	Category   string    `json:"category"`
	AssignedAt time.Time `json:"assigned_at"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse reports per-dependency readiness.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
