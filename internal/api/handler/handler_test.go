package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/leadflowhq/leadflow/internal/domain"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "job not found", err: domain.ErrJobNotFound, wantStatus: http.StatusNotFound},
		{name: "wrapped campaign not found", err: errors.Join(errors.New("load"), domain.ErrCampaignNotFound), wantStatus: http.StatusNotFound},
		{name: "lead not found", err: domain.ErrLeadNotFound, wantStatus: http.StatusNotFound},
		{name: "message not found", err: domain.ErrMessageNotFound, wantStatus: http.StatusNotFound},
		{
			name:       "illegal transition",
			err:        &domain.InvalidTransitionError{Entity: "job", From: "completed", To: "pending"},
			wantStatus: http.StatusConflict,
		},
		{name: "bad payload", err: domain.ErrInvalidPayload, wantStatus: http.StatusBadRequest},
		{name: "everything else", err: errors.New("db connection lost"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			respondError(c, logger, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}

	t.Run("internal errors do not leak detail", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)

		respondError(c, logger, errors.New("pq: password authentication failed"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "password")
	})
}
