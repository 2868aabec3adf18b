package handlers

import (
	"errors"
	"net/http"

	"hearthsync/internal/service"
	"hearthsync/internal/transport"

	"github.com/gin-gonic/gin"
)

// Cloud account credentials payload.
type cloudCredentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// @Summary      Cloud login
// @Description  Authenticates the relay account shared by all appliances
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        body  body  cloudCredentials  true  "Cloud credentials"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/account/login [post]
// @Security     BearerAuth
func (h *Handler) cloudLogin(c *gin.Context) {
	var input cloudCredentials
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	if err := h.services.Account.Login(c.Request.Context(), input.Email, input.Password); err != nil {
		if errors.Is(err, transport.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "cloud rejected the credentials"})
			return
		}
		h.logAndJSONError(c, http.StatusBadGateway, "cloud login failed", "cloud_login_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "account": h.services.Account.Status()})
}

// @Summary      Cloud logout
// @Tags         account
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/account/logout [post]
// @Security     BearerAuth
func (h *Handler) cloudLogout(c *gin.Context) {
	h.services.Account.Logout(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Discover fireplaces
// @Description  Enumerates the account's locations and registers every fireplace found
// @Tags         account
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, fireplaces"
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string  "not logged in"
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/account/discover [post]
// @Security     BearerAuth
func (h *Handler) discover(c *gin.Context) {
	found, err := h.services.Account.Discover(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrNotLoggedIn) {
			c.JSON(http.StatusConflict, gin.H{"error": "cloud account is not logged in"})
			return
		}
		h.logAndJSONError(c, http.StatusBadGateway, "discovery failed", "discovery_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":      len(found),
		"fireplaces": found,
	})
}

// @Summary      Account status
// @Tags         account
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/account/status [get]
// @Security     BearerAuth
func (h *Handler) accountStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Account.Status())
}
