package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"palay-drying-backend/internal/auth"
	"palay-drying-backend/internal/identity"
	"palay-drying-backend/internal/model"
	"palay-drying-backend/internal/remote"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// Login authenticates a farmer. A farmer known locally is verified against
// the local hash; an unknown farmer is authenticated against the remote and,
// on success, materialized locally together with the locality reference
// tables.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	ctx := c.Request.Context()
	farmer, err := h.store.FarmerByUsername(ctx, req.Username)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up farmer"})
		return
	}

	if farmer != nil {
		if !auth.CheckPassword(farmer.PasswordHash, req.Password) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
			return
		}
	} else {
		farmer = h.materializeFarmer(c, req.Username, req.Password)
		if farmer == nil {
			return // response already written
		}
	}

	token := uuid.NewString()
	h.sessions.Set(token, Session{
		AccountID: farmer.ID,
		Role:      identity.RoleFarmer,
		Username:  farmer.Username,
		Password:  req.Password,
	}, h.sessionTTL)

	c.JSON(http.StatusOK, loginResponse{
		Token:    token,
		Username: farmer.Username,
		FullName: identity.ForFarmer(*farmer).DisplayName(),
	})
}

// materializeFarmer performs the first-login flow for a farmer this device
// has never seen: remote authentication, account fetch, locality refresh,
// local row creation. On failure it writes the response and returns nil.
func (h *Handler) materializeFarmer(c *gin.Context, username, password string) *model.Farmer {
	ctx := c.Request.Context()

	token, err := h.remote.Authenticate(ctx, username, password)
	if err != nil {
		var transport *remote.TransportError
		switch {
		case errors.As(err, &transport):
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "No connection to the server. Please try again later."})
		case errors.Is(err, remote.ErrAuthFailed):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		default:
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Unexpected response from the server"})
		}
		return nil
	}

	remoteFarmer, err := h.remote.FetchFarmer(ctx, token, username)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch farmer details from the server"})
		return nil
	}

	// Locality reference data is refreshed alongside the account. A failure
	// here is logged but does not block the login.
	if barangays, municipalities, err := h.remote.FetchLocalities(ctx, token); err != nil {
		log.Printf("Warning: failed to refresh localities during login: %v", err)
	} else if err := h.store.UpsertLocalities(ctx, remote.LocalBarangays(barangays), remote.LocalMunicipalities(municipalities)); err != nil {
		log.Printf("Warning: failed to store localities during login: %v", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create local account"})
		return nil
	}

	farmer := &model.Farmer{
		UUID:         remoteFarmer.UUID,
		Username:     remoteFarmer.Username,
		PasswordHash: hash,
		FullName:     remoteFarmer.FullName,
		BarangayID:   remoteFarmer.BarangayID,
	}
	if err := h.store.SaveFarmer(ctx, farmer); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create local account"})
		return nil
	}
	log.Printf("Materialized farmer %q from remote on first login", farmer.Username)
	return farmer
}

// Logout drops the session.
func (h *Handler) Logout(c *gin.Context) {
	if token := bearerToken(c.GetHeader("Authorization")); token != "" {
		h.sessions.Delete(token)
	}
	c.Status(http.StatusNoContent)
}
