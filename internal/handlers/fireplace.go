package handlers

import (
	"errors"
	"net/http"

	"hearthsync/internal/catalog"
	"hearthsync/internal/control"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusOn        = "on"
	statusOff       = "off"
	statusAccepted  = "accepted"
	statusRefreshed = "refresh_requested"

	errTurnOn       = "failed to turn fireplace on"
	errTurnOff      = "failed to turn fireplace off"
	errGetState     = "failed to load state"
	errListFires    = "failed to list fireplaces"
	errUnknownFire  = "unknown fireplace serial"
	errBodyPrefix   = "invalid body: "
	errSendCommand  = "failed to send command"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// controlStatus maps a control error to an HTTP status: 404 for an unknown
// serial, 400 for catalog rejections, 502 for anything that reached the wire.
func controlStatus(err error) int {
	var oor *catalog.OutOfRangeError
	switch {
	case errors.Is(err, control.ErrUnknownAppliance):
		return http.StatusNotFound
	case errors.As(err, &oor):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// Respond with a status and include the cached state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, serial, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status, "serial": serial}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(ctx, serial)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// Request DTO for sending a catalog command.
type commandRequest struct {
	Command string `json:"command" binding:"required"` // catalog name, e.g. flame_height
	Value   int    `json:"value"`
}

// CommandRequest is an exported model for Swagger docs of the command payload.
type CommandRequest struct {
	// Command name from the catalog: power, pilot, beep, light, flame_height,
	// fan_speed, thermostat_setpoint, sleep_timer, soft_reset, firmware_upgrade
	Command string `json:"command" example:"flame_height"`
	// Value within the command's accepted range
	Value int `json:"value" example:"3"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List fireplaces
// @Tags         fireplaces
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, fireplaces"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/fireplaces [get]
// @Security     BearerAuth
func (h *Handler) listFireplaces(c *gin.Context) {
	ctx := c.Request.Context()
	fireplaces, err := h.services.Monitoring.List(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListFires, "fireplace_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":      len(fireplaces),
		"fireplaces": fireplaces,
	})
}

// @Summary      Get fireplace state
// @Tags         fireplaces
// @Produce      json
// @Param        serial  path  string  true  "Appliance serial"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/fireplaces/{serial}/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	serial := c.Param("serial")
	st, err := h.services.Monitoring.GetState(c.Request.Context(), serial)
	if err != nil {
		h.logAndJSONError(c, http.StatusNotFound, errUnknownFire, "fireplace_get_state_failed", err, "serial", serial)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Send command
// @Description  Dispatches a catalog command; the value must be inside the command's range
// @Tags         fireplaces
// @Accept       json
// @Produce      json
// @Param        serial  path  string          true  "Appliance serial"
// @Param        body    body  CommandRequest  true  "Command payload"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/fireplaces/{serial}/command [post]
// @Security     BearerAuth
func (h *Handler) sendCommand(c *gin.Context) {
	serial := c.Param("serial")
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBodyPrefix + err.Error()})
		return
	}
	if err := h.services.Fireplace.Command(c.Request.Context(), serial, req.Command, req.Value); err != nil {
		code := controlStatus(err)
		if code == http.StatusBadRequest {
			c.JSON(code, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, code, errSendCommand, "fireplace_command_failed", err, "serial", serial, "command", req.Command)
		return
	}
	h.respondWithStatusAndState(c, serial, statusAccepted, gin.H{"command": req.Command, "value": req.Value})
}

// @Summary      Turn fireplace on
// @Tags         fireplaces
// @Produce      json
// @Param        serial  path  string  true  "Appliance serial"
// @Success      200  {object}  map[string]interface{}  "status, state"
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/fireplaces/{serial}/on [post]
// @Security     BearerAuth
func (h *Handler) turnOn(c *gin.Context) {
	serial := c.Param("serial")
	if err := h.services.Fireplace.On(c.Request.Context(), serial); err != nil {
		h.logAndJSONError(c, controlStatus(err), errTurnOn, "fireplace_on_failed", err, "serial", serial)
		return
	}
	h.respondWithStatusAndState(c, serial, statusOn, gin.H{})
}

// @Summary      Turn fireplace off
// @Tags         fireplaces
// @Produce      json
// @Param        serial  path  string  true  "Appliance serial"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/fireplaces/{serial}/off [post]
// @Security     BearerAuth
func (h *Handler) turnOff(c *gin.Context) {
	serial := c.Param("serial")
	if err := h.services.Fireplace.Off(c.Request.Context(), serial); err != nil {
		h.logAndJSONError(c, controlStatus(err), errTurnOff, "fireplace_off_failed", err, "serial", serial)
		return
	}
	h.respondWithStatusAndState(c, serial, statusOff, gin.H{})
}

// @Summary      Request immediate poll
// @Tags         fireplaces
// @Produce      json
// @Param        serial  path  string  true  "Appliance serial"
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/fireplaces/{serial}/refresh [post]
// @Security     BearerAuth
func (h *Handler) refresh(c *gin.Context) {
	serial := c.Param("serial")
	if err := h.services.Fireplace.Refresh(c.Request.Context(), serial); err != nil {
		h.logAndJSONError(c, controlStatus(err), errUnknownFire, "fireplace_refresh_failed", err, "serial", serial)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusRefreshed, "serial": serial})
}
