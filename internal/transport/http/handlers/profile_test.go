package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestUploadPictureRejectsOversizedBodyEarly(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// No profile service is wired: the bounded body read must reject the
	// upload before the handler ever reaches the service.
	handler := NewProfileHandler(nil, nil, 1024)

	r := gin.New()
	r.PUT("/profile/picture", handler.UploadPicture)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/profile/picture", bytes.NewReader(make([]byte, 4096)))
	req.Header.Set("Content-Type", "image/png")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}
