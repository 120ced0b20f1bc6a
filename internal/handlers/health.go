package handlers

import "github.com/gofiber/fiber/v2"

// HealthHandler handles health check requests
type HealthHandler struct {
	Version string
	Storage string

	// Optional probes; nil probes are omitted from the response
	ActiveSessions func() int
	FreeChannelUp  func() bool
	PingDatabase   func() error
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, storage string) *HealthHandler {
	return &HealthHandler{
		Version: version,
		Storage: storage,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":  "OK",
		"service": "StayFlow Backend",
		"version": h.Version,
		"storage": h.Storage,
	}
	if h.ActiveSessions != nil {
		resp["sessions"] = h.ActiveSessions()
	}
	if h.FreeChannelUp != nil {
		resp["whatsapp"] = fiber.Map{"free_channel_ready": h.FreeChannelUp()}
	}
	if h.PingDatabase != nil {
		db := "connected"
		if err := h.PingDatabase(); err != nil {
			db = "error: " + err.Error()
			resp["status"] = "DEGRADED"
		}
		resp["database"] = db
	}
	return c.JSON(resp)
}
