package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/azad25/admin-ai-sub003/internal/crypto"
	"github.com/azad25/admin-ai-sub003/internal/domain"
	"github.com/azad25/admin-ai-sub003/internal/metrics"
)

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "database unreachable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// credentialStatus is the masked view of one provider credential. Plaintext
// never appears here; envelope is elided down to its IV prefix so operators
// can correlate values without learning them.
type credentialStatus struct {
	Provider      string `json:"provider"`
	IsActive      bool   `json:"isActive"`
	IsVerified    bool   `json:"isVerified"`
	SelectedModel string `json:"selectedModel,omitempty"`
	EnvelopeHint  string `json:"envelopeHint"`
	Readable      bool   `json:"readable"`
}

func (s *Server) handleCredentialStatus(c echo.Context) error {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid account id"})
	}

	providers, err := s.store.List(c.Request().Context(), accountID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "account not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load credentials"})
	}

	statuses := make([]credentialStatus, 0, len(providers))
	for _, p := range providers {
		readable := false
		if plaintext, err := crypto.Decrypt(s.key, p.APIKey); err == nil {
			readable = true
			crypto.Zero(plaintext)
			metrics.VerificationsTotal.WithLabelValues("ok").Inc()
		} else {
			metrics.VerificationsTotal.WithLabelValues("unreadable").Inc()
		}

		statuses = append(statuses, credentialStatus{
			Provider:      p.Provider,
			IsActive:      p.IsActive,
			IsVerified:    p.IsVerified,
			SelectedModel: p.SelectedModel,
			EnvelopeHint:  MaskEnvelope(p.APIKey),
			Readable:      readable,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"accountId":   accountID,
		"credentials": statuses,
	})
}

// MaskEnvelope reduces a stored envelope to a short non-sensitive hint
// (the IV prefix). The IV is public by construction, the ciphertext is not
// shown at all.
func MaskEnvelope(envelope string) string {
	const hintLen = 8
	if len(envelope) <= hintLen {
		return envelope
	}
	return envelope[:hintLen] + "…"
}
