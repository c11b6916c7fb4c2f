package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"palay-drying-backend/internal/remote"
	appsync "palay-drying-backend/internal/sync"
)

type syncResponse struct {
	Uploaded   int `json:"uploaded"`
	Downloaded int `json:"downloaded"`
	Applied    int `json:"applied"`
	Skipped    int `json:"skipped"`
}

// RunSync triggers one full sync cycle for the logged-in farmer, using the
// credentials cached in the session.
func (h *Handler) RunSync(c *gin.Context) {
	session := sessionFrom(c)
	ctx := c.Request.Context()

	farmer, err := h.store.FarmerByID(ctx, session.AccountID)
	if err != nil || farmer == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve farmer"})
		return
	}

	result, err := h.engine.RunCycle(ctx, *farmer, appsync.Credentials{
		Username: session.Username,
		Password: session.Password,
	})
	if err != nil {
		log.Printf("Sync cycle failed for farmer %q: %v", farmer.Username, err)
		status, message := syncErrorStatus(err)
		c.AbortWithStatusJSON(status, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusOK, syncResponse{
		Uploaded:   result.Uploaded,
		Downloaded: result.Downloaded,
		Applied:    result.Applied,
		Skipped:    len(result.Diagnostics),
	})
}

func syncErrorStatus(err error) (int, string) {
	var transport *remote.TransportError
	var rejection *remote.RejectionError
	var cycle *appsync.CycleError
	switch {
	case errors.As(err, &transport):
		return http.StatusServiceUnavailable, "Device is offline, please retry later"
	case errors.Is(err, remote.ErrAuthFailed):
		return http.StatusUnauthorized, "Authentication failed, please log in again"
	case errors.As(err, &rejection):
		return http.StatusBadGateway, "Server rejected the upload, the batch will be retried next sync"
	case errors.As(err, &cycle) && cycle.Stage == appsync.StageCommitting:
		return http.StatusInternalServerError, "Failed to commit sync results locally"
	default:
		return http.StatusInternalServerError, "Sync failed"
	}
}
