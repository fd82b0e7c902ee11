package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/transport/http/middleware"
	"github.com/Skillial/CSSECDV-Case-Study/internal/usecase"
)

// defaultAuditPageLimit caps audit-log pages when no limit is configured.
const defaultAuditPageLimit = 200

// AdminHandler exposes the administrator-only endpoints: account provisioning,
// category assignment and the audit log.
type AdminHandler struct {
	registration   *usecase.RegistrationService
	audit          *usecase.AuditService
	auditPageLimit int
}

// NewAdminHandler constructs AdminHandler. auditPageLimit caps the page size
// of audit-log listings; values <= 0 fall back to the default cap.
func NewAdminHandler(registration *usecase.RegistrationService, audit *usecase.AuditService, auditPageLimit int) *AdminHandler {
	if auditPageLimit <= 0 {
		auditPageLimit = defaultAuditPageLimit
	}
	return &AdminHandler{registration: registration, audit: audit, auditPageLimit: auditPageLimit}
}

// ProvisionAccount creates an admin or manager account.
func (h *AdminHandler) ProvisionAccount(c *gin.Context) {
	var req ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Username, password and role are required"))
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Role must be admin or manager"))
		return
	}

	account, err := h.registration.ProvisionAccount(c.Request.Context(), middleware.Identity(c), usecase.ProvisionInput{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            role,
		IP:              c.ClientIP(),
	})
	if err != nil {
		if errors.Is(err, usecase.ErrRegistrationInvalid) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRegistrationFailed, Status: http.StatusBadRequest, Message: "Registration failed. Please try again with different information."},
		}, http.StatusInternalServerError, "Something went wrong. Please try again later")
		return
	}

	c.JSON(http.StatusCreated, NewAccountSummary(*account))
}

// AssignCategories replaces a manager's category assignments.
func (h *AdminHandler) AssignCategories(c *gin.Context) {
	employeeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Invalid account id"))
		return
	}

	var req AssignCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Categories are required"))
		return
	}

	err = h.registration.AssignCategories(c.Request.Context(), middleware.Identity(c), employeeID, req.Categories, c.ClientIP())
	if err != nil {
		if errors.Is(err, usecase.ErrRegistrationInvalid) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "Account not found"},
			{Err: usecase.ErrNotAManager, Status: http.StatusBadRequest, Message: "Categories can only be assigned to managers"},
		}, http.StatusInternalServerError, "Something went wrong. Please try again later")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Categories assigned"})
}

// ListAccounts returns the account overview for administrators.
func (h *AdminHandler) ListAccounts(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	accounts, err := h.registration.ListAccounts(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Something went wrong. Please try again later"))
		return
	}

	views := make([]AccountSummary, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, NewAccountSummary(account))
	}

	c.JSON(http.StatusOK, views)
}

// ListAuditLog returns audit entries newest first. The page size is clamped
// to the configured maximum.
func (h *AdminHandler) ListAuditLog(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	if limit > h.auditPageLimit {
		limit = h.auditPageLimit
	}
	offset := intQuery(c, "offset", 0)

	entries, err := h.audit.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Something went wrong. Please try again later"))
		return
	}

	views := make([]AuditEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, NewAuditEntryView(entry))
	}

	c.JSON(http.StatusOK, views)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
