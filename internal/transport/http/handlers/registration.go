package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Skillial/CSSECDV-Case-Study/internal/usecase"
)

// RegistrationHandler exposes customer self-registration.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registration *usecase.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration}
}

// Register creates a customer account. Duplicate usernames answer with the
// same generic message as any other rejection.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Registration failed. Please try again with different information."))
		return
	}

	account, err := h.registration.RegisterCustomer(c.Request.Context(), usecase.RegisterInput{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
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
