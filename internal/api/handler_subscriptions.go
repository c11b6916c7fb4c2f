package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"palay-drying-backend/internal/model"
)

type subscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256DH string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

// PutSubscription registers or refreshes a push subscription for due-date
// reminders.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := sessionFrom(c)
	sub := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.Keys.P256DH,
		Auth:     req.Keys.Auth,
		FarmerID: session.AccountID,
	}
	if err := h.store.SavePushSubscription(c.Request.Context(), &sub); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to save subscription"})
		return
	}
	c.Status(http.StatusNoContent)
}
