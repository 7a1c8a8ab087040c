package backendsim

import "github.com/labstack/echo/v4"

// Register mounts every backend route under /api.
func (h *Handler) Register(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/config/apply", h.HandleApplyConfig)
	api.POST("/connect", h.HandleConnect)
	api.POST("/disconnect", h.HandleDisconnect)
	api.POST("/read", h.HandleRead)
	api.GET("/data", h.HandleData)
	api.GET("/logs", h.HandleLogs)
	api.GET("/frames", h.HandleFrames)
	api.POST("/datapoints/add", h.HandleAddPoint)
	api.POST("/datapoints/clear", h.HandleClearPoints)
	api.POST("/control", h.HandleControl)
	api.GET("/serial_ports", h.HandleSerialPorts)
	api.GET("/host_ip", h.HandleHostIP)
}
