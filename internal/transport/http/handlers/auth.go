package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skillial/CSSECDV-Case-Study/internal/transport/http/middleware"
	"github.com/Skillial/CSSECDV-Case-Study/internal/usecase"
)

// AuthHandler exposes login, logout and the one-shot last-login report.
type AuthHandler struct {
	auth     *usecase.AuthService
	sessions *usecase.SessionService
	cookie   *middleware.SessionCookie
	logger   *zap.Logger
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, sessions *usecase.SessionService, cookie *middleware.SessionCookie, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		cookie:   cookie,
		logger:   logger,
	}
}

// Login authenticates the submitted credentials and sets the session cookie.
// Every failure returns the same message and status.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Malformed payloads get the same answer as bad credentials.
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Invalid username and/or password"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Username: req.Username,
		Password: req.Password,
		IP:       c.ClientIP(),
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Invalid username and/or password"},
		}, http.StatusInternalServerError, "Something went wrong. Please try again later")
		return
	}

	if err := h.cookie.Write(c, result.Token); err != nil {
		h.logger.Error("write session cookie failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Something went wrong. Please try again later"))
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Account: NewAccountSummary(result.Account),
		Report:  result.Report.Message,
	})
}

// Logout destroys the session and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.SessionToken(c)
	identity := middleware.Identity(c)

	if err := h.auth.Logout(c.Request.Context(), token, identity, c.ClientIP()); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
	}
	h.cookie.Clear(c)

	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out"})
}

// LastLoginReport surfaces the last-login summary exactly once per session.
func (h *AuthHandler) LastLoginReport(c *gin.Context) {
	token := middleware.SessionToken(c)

	message, taken, err := h.sessions.TakeLastLoginReport(c.Request.Context(), token)
	if err != nil {
		h.logger.Error("take login report failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Something went wrong. Please try again later"))
		return
	}

	c.JSON(http.StatusOK, LoginReportResponse{Report: message, Taken: taken})
}
