package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Skillial/CSSECDV-Case-Study/internal/transport/http/middleware"
	"github.com/Skillial/CSSECDV-Case-Study/internal/usecase"
)

// defaultMaxUploadBytes bounds picture uploads when no cap is configured.
const defaultMaxUploadBytes int64 = 50 << 20

// ProfileHandler exposes the authenticated account-profile endpoints.
type ProfileHandler struct {
	profile        *usecase.ProfileService
	recovery       *usecase.RecoveryService
	maxUploadBytes int64
}

// NewProfileHandler constructs ProfileHandler. maxUploadBytes bounds how much
// of a picture upload is read from the wire; values <= 0 fall back to the
// default cap.
func NewProfileHandler(profile *usecase.ProfileService, recovery *usecase.RecoveryService, maxUploadBytes int64) *ProfileHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ProfileHandler{profile: profile, recovery: recovery, maxUploadBytes: maxUploadBytes}
}

// UpdateAddress replaces the caller's delivery address.
func (h *ProfileHandler) UpdateAddress(c *gin.Context) {
	var req UpdateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Address is required"))
		return
	}

	err := h.profile.UpdateAddress(c.Request.Context(), middleware.Identity(c), req.Address, c.ClientIP())
	if err != nil {
		if errors.Is(err, usecase.ErrProfileInvalid) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Something went wrong. Please try again later"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Address updated"})
}

// ChangePassword updates the caller's password after verifying the old one.
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	identity := middleware.Identity(c)

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Old and new passwords are required"))
		return
	}

	err := h.recovery.ChangePassword(c.Request.Context(), usecase.ChangePasswordInput{
		AccountID:   identity.AccountID,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
		IP:          c.ClientIP(),
	})
	if err != nil {
		if errors.Is(err, usecase.ErrPasswordPolicy) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidOldPassword, Status: http.StatusBadRequest, Message: "Old password does not match"},
			{Err: usecase.ErrPasswordSameAsOld, Status: http.StatusBadRequest, Message: "New password must be different from the old password"},
			{Err: usecase.ErrPasswordTooRecent, Status: http.StatusBadRequest, Message: "Password was changed too recently. Please try again later"},
			{Err: usecase.ErrPasswordInHistory, Status: http.StatusBadRequest, Message: "New password must not match a recently used password"},
		}, http.StatusInternalServerError, "Something went wrong. Please try again later")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password changed"})
}

// SetSecurityQuestion stores or replaces the caller's recovery question.
func (h *ProfileHandler) SetSecurityQuestion(c *gin.Context) {
	identity := middleware.Identity(c)

	var req SecurityQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Password, question and answer are required"))
		return
	}

	err := h.recovery.SetSecurityQuestion(c.Request.Context(), usecase.SetSecurityQuestionInput{
		AccountID:       identity.AccountID,
		CurrentPassword: req.CurrentPassword,
		Question:        req.Question,
		Answer:          req.Answer,
		IP:              c.ClientIP(),
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidOldPassword, Status: http.StatusBadRequest, Message: "Password does not match"},
			{Err: usecase.ErrPasswordPolicy, Status: http.StatusBadRequest, Message: "Question or answer is invalid"},
		}, http.StatusInternalServerError, "Something went wrong. Please try again later")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Security question updated"})
}

// UploadPicture stores the caller's profile picture from the raw request body.
// The body read is bounded so an oversized upload is cut off at the cap rather
// than buffered in full.
func (h *ProfileHandler) UploadPicture(c *gin.Context) {
	identity := middleware.Identity(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, NewErrorResponse(c, "Profile picture is too large"))
			return
		}
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Could not read upload"))
		return
	}

	err = h.profile.UpdateProfileImage(c.Request.Context(), identity, c.ContentType(), data, c.ClientIP())
	if err != nil {
		if errors.Is(err, usecase.ErrProfileInvalid) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Something went wrong. Please try again later"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Profile picture updated"})
}

// Picture serves the caller's stored profile picture.
func (h *ProfileHandler) Picture(c *gin.Context) {
	identity := middleware.Identity(c)

	image, err := h.profile.ProfileImage(c.Request.Context(), identity.AccountID)
	if err != nil {
		if errors.Is(err, usecase.ErrProfileImageNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "No profile picture set"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Something went wrong. Please try again later"))
		return
	}

	c.Data(http.StatusOK, image.ContentType, image.Data)
}

// Categories lists the category assignments for the calling manager.
func (h *ProfileHandler) Categories(c *gin.Context) {
	identity := middleware.Identity(c)

	assignments, err := h.profile.Categories(c.Request.Context(), identity.AccountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Something went wrong. Please try again later"))
		return
	}

	views := make([]CategoryView, 0, len(assignments))
	for _, assignment := range assignments {
		views = append(views, CategoryView{
			Category:   assignment.Category,
			AssignedAt: assignment.AssignedAt,
		})
	}

	c.JSON(http.StatusOK, views)
}
