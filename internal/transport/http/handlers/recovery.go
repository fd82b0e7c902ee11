package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Skillial/CSSECDV-Case-Study/internal/usecase"
)

// recoveryGenericMessage answers every verification failure so account
// details cannot be probed through the recovery flow.
const recoveryGenericMessage = "Could not verify your details. Please try again."

// RecoveryHandler exposes the security-question recovery flow.
type RecoveryHandler struct {
	recovery *usecase.RecoveryService
}

// NewRecoveryHandler constructs RecoveryHandler.
func NewRecoveryHandler(recovery *usecase.RecoveryService) *RecoveryHandler {
	return &RecoveryHandler{recovery: recovery}
}

// Verify checks the username, question and answer, issuing a short-lived
// recovery token on success.
func (h *RecoveryHandler) Verify(c *gin.Context) {
	var req RecoveryVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, recoveryGenericMessage))
		return
	}

	token, err := h.recovery.VerifyDetails(c.Request.Context(), usecase.VerifyDetailsInput{
		Username: req.Username,
		Question: req.Question,
		Answer:   req.Answer,
		IP:       c.ClientIP(),
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRecoveryVerificationFailed, Status: http.StatusBadRequest, Message: recoveryGenericMessage},
		}, http.StatusInternalServerError, "Something went wrong. Please try again later")
		return
	}

	c.JSON(http.StatusOK, RecoveryVerifyResponse{RecoveryToken: token})
}

// Reset replaces the password using the token from a prior verification.
// Policy rejections are specific; token failures are not.
func (h *RecoveryHandler) Reset(c *gin.Context) {
	var req RecoveryResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, recoveryGenericMessage))
		return
	}

	err := h.recovery.ResetPassword(c.Request.Context(), usecase.ResetPasswordInput{
		Username:      req.Username,
		RecoveryToken: req.RecoveryToken,
		NewPassword:   req.NewPassword,
		IP:            c.ClientIP(),
	})
	if err != nil {
		if errors.Is(err, usecase.ErrPasswordPolicy) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRecoveryTokenInvalid, Status: http.StatusBadRequest, Message: recoveryGenericMessage},
			{Err: usecase.ErrPasswordSameAsOld, Status: http.StatusBadRequest, Message: "New password must be different from the old password"},
			{Err: usecase.ErrPasswordTooRecent, Status: http.StatusBadRequest, Message: "Password was changed too recently. Please try again later"},
			{Err: usecase.ErrPasswordInHistory, Status: http.StatusBadRequest, Message: "New password must not match a recently used password"},
		}, http.StatusInternalServerError, "Something went wrong. Please try again later")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password has been reset"})
}
