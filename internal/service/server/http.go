package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/oshokin/equipment-monitor/internal/domain/equipment"
	"github.com/oshokin/equipment-monitor/internal/service/monitor"
)

// Service abstracts the monitor operations the transport layer depends on.
type Service interface {
	EquipmentState(id string) (*domain.Equipment, *domain.RuntimeState, error)
	AllEquipmentStates() (map[string]*domain.Equipment, map[string]*domain.RuntimeState)
	AddEquipment(ctx context.Context, id, name, location string) (*domain.Equipment, error)
	RemoveEquipment(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	SetCollectInterval(ctx context.Context, id string, interval time.Duration) error
	SetDoorConfig(ctx context.Context, id string, cfg domain.DoorConfig) error
	SetTemperatureConfig(ctx context.Context, id string, cfg domain.TemperatureConfig) error
	SetSensorSource(ctx context.Context, id string, sensorType domain.SensorType, entityID string) error
	TriggerSiren(ctx context.Context, id string) error
	SilenceSiren(ctx context.Context, id string) error
	HandleSensorUpdate(ctx context.Context, entityID, state string, attributes map[string]any, ts time.Time) error
	Pause(ctx context.Context)
	Resume(ctx context.Context)
	IntegrationStatus() monitor.IntegrationStatus
	QueueSize() int
	LastSync() time.Time
}

// handler carries the service behind the route handlers.
type handler struct {
	svc Service
}

// NewHandler wires the provided service implementation into an HTTP handler.
func NewHandler(svc Service) http.Handler {
	gin.SetMode(gin.ReleaseMode)

	h := &handler{svc: svc}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", h.healthz)
	router.GET("/status", h.status)
	router.GET("/equipment", h.listEquipment)
	router.GET("/equipment/:id", h.getEquipment)
	router.POST("/equipment", h.addEquipment)
	router.DELETE("/equipment/:id", h.removeEquipment)
	router.PUT("/equipment/:id/enabled", h.setEnabled)
	router.PUT("/equipment/:id/collect-interval", h.setCollectInterval)
	router.PUT("/equipment/:id/door", h.setDoorConfig)
	router.PUT("/equipment/:id/temperature", h.setTemperatureConfig)
	router.PUT("/equipment/:id/sensors", h.setSensors)
	router.POST("/equipment/:id/siren/trigger", h.triggerSiren)
	router.POST("/equipment/:id/siren/silence", h.silenceSiren)
	router.POST("/sync/pause", h.pauseSync)
	router.POST("/sync/resume", h.resumeSync)
	router.POST("/updates", h.injectUpdate)

	return router
}

func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		Status:    string(h.svc.IntegrationStatus()),
		QueueSize: h.svc.QueueSize(),
		LastSync:  formatTime(h.svc.LastSync()),
	})
}

func (h *handler) listEquipment(c *gin.Context) {
	equipments, states := h.svc.AllEquipmentStates()

	response := make(map[string]equipmentResponse, len(equipments))
	for id, e := range equipments {
		response[id] = equipmentResponse{Equipment: e, State: states[id]}
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) getEquipment(c *gin.Context) {
	e, state, err := h.svc.EquipmentState(c.Param("id"))
	if err != nil {
		h.replyError(c, err)

		return
	}

	c.JSON(http.StatusOK, equipmentResponse{Equipment: e, State: state})
}

func (h *handler) addEquipment(c *gin.Context) {
	var body addEquipmentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})

		return
	}

	e, err := h.svc.AddEquipment(c.Request.Context(), body.ID, body.Name, body.Location)
	if err != nil {
		h.replyError(c, err)

		return
	}

	c.JSON(http.StatusCreated, e)
}

func (h *handler) removeEquipment(c *gin.Context) {
	if err := h.svc.RemoveEquipment(c.Request.Context(), c.Param("id")); err != nil {
		h.replyError(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) setEnabled(c *gin.Context) {
	var body struct {
		Enabled bool `json:"enabled"`
	}

	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})

		return
	}

	if err := h.svc.SetEnabled(c.Request.Context(), c.Param("id"), body.Enabled); err != nil {
		h.replyError(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) setCollectInterval(c *gin.Context) {
	var body struct {
		Interval string `json:"interval"`
	}

	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})

		return
	}

	interval, err := time.ParseDuration(body.Interval)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid interval"})

		return
	}

	if err = h.svc.SetCollectInterval(c.Request.Context(), c.Param("id"), interval); err != nil {
		h.replyError(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) setDoorConfig(c *gin.Context) {
	var body doorConfigRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})

		return
	}

	timeout, err := time.ParseDuration(body.OpenTimeout)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid open_timeout"})

		return
	}

	cfg := domain.DoorConfig{
		EnableSiren: body.EnableSiren,
		OpenTimeout: timeout,
	}

	if err = h.svc.SetDoorConfig(c.Request.Context(), c.Param("id"), cfg); err != nil {
		h.replyError(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) setTemperatureConfig(c *gin.Context) {
	var body domain.TemperatureConfig
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})

		return
	}

	if err := h.svc.SetTemperatureConfig(c.Request.Context(), c.Param("id"), body); err != nil {
		h.replyError(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) setSensors(c *gin.Context) {
	var body map[domain.SensorType]string
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})

		return
	}

	for sensorType, entityID := range body {
		if err := h.svc.SetSensorSource(c.Request.Context(), c.Param("id"), sensorType, entityID); err != nil {
			h.replyError(c, err)

			return
		}
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) triggerSiren(c *gin.Context) {
	if err := h.svc.TriggerSiren(c.Request.Context(), c.Param("id")); err != nil {
		h.replyError(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) silenceSiren(c *gin.Context) {
	if err := h.svc.SilenceSiren(c.Request.Context(), c.Param("id")); err != nil {
		h.replyError(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) pauseSync(c *gin.Context) {
	h.svc.Pause(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *handler) resumeSync(c *gin.Context) {
	h.svc.Resume(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *handler) injectUpdate(c *gin.Context) {
	var body updateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})

		return
	}

	timestamp := time.Now().UTC()

	if body.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, body.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid timestamp"})

			return
		}

		timestamp = parsed
	}

	err := h.svc.HandleSensorUpdate(c.Request.Context(), body.EntityID, body.State, body.Attributes, timestamp)
	if err != nil {
		h.replyError(c, err)

		return
	}

	c.Status(http.StatusAccepted)
}

// replyError maps service errors onto HTTP statuses.
func (h *handler) replyError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, monitor.ErrEquipmentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, monitor.ErrEquipmentExists):
		status = http.StatusConflict
	}

	c.JSON(status, errorResponse{Error: err.Error()})
}

// statusResponse is the aggregate monitor status payload.
type statusResponse struct {
	// Status is the integration status (online, offline, paused, api_error, auth_error).
	Status string `json:"status"`
	// QueueSize is the number of pending events.
	QueueSize int `json:"queue_size"`
	// LastSync is the RFC3339 time of the last successful flush, empty when none.
	LastSync string `json:"last_sync,omitempty"`
}

// equipmentResponse bundles configuration and runtime state.
type equipmentResponse struct {
	// Equipment is the configuration with bindings and thresholds.
	Equipment *domain.Equipment `json:"equipment"`
	// State is the current runtime state.
	State *domain.RuntimeState `json:"state"`
}

// addEquipmentRequest is the body of POST /equipment.
type addEquipmentRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// doorConfigRequest is the body of PUT /equipment/:id/door.
type doorConfigRequest struct {
	EnableSiren bool `json:"enable_siren"`
	// OpenTimeout is a Go duration string (e.g., "120s").
	OpenTimeout string `json:"open_timeout"`
}

// updateRequest is the body of POST /updates, mirroring the bus payload.
type updateRequest struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"`
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// formatTime renders a time as RFC3339, empty for the zero value.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}
