package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"palay-drying-backend/internal/auth"
	"palay-drying-backend/internal/identity"
)

type staffLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type staffLoginResponse struct {
	Token    string `json:"token"`
	Email    string `json:"email"`
	Barangay string `json:"barangay"`
}

// StaffLogin authenticates a barangay operator account. Staff accounts are
// provisioned on the device and never synchronized, so there is no remote
// fallback here.
func (h *Handler) StaffLogin(c *gin.Context) {
	var req staffLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	staff, err := h.store.StaffByEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up account"})
		return
	}
	if staff == nil || !auth.CheckPassword(staff.PasswordHash, req.Password) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	id := identity.ForStaff(*staff)
	token := uuid.NewString()
	h.sessions.Set(token, Session{
		AccountID: id.AccountID(),
		Role:      id.Role(),
		Username:  staff.Email,
	}, h.sessionTTL)

	c.JSON(http.StatusOK, staffLoginResponse{
		Token:    token,
		Email:    staff.Email,
		Barangay: id.DisplayName(),
	})
}

// ListDueRecords returns the batches due for consumption on a day, today by
// default, for staff managing pickups.
func (h *Handler) ListDueRecords(c *gin.Context) {
	day := time.Now().UTC()
	if q := c.Query("date"); q != "" {
		parsed, err := time.Parse(dateLayout, q)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	records, err := h.store.RecordsDueOn(c.Request.Context(), day)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list due records"})
		return
	}
	c.JSON(http.StatusOK, records)
}
