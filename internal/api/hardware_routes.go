package api

import "github.com/gin-gonic/gin"

// RegisterHardwareRoutes mounts the Hardware service's routes on r.
// GET /health is mounted separately by internal/health.RegisterHTTPRoutes.
func RegisterHardwareRoutes(r *gin.Engine, h *HardwareHandler) {
	r.POST("/hardware/discover", h.Discover)
	r.POST("/hardware/reset/all", h.ResetAll)
	r.POST("/hardware/reset/:type", h.Reset)
	r.GET("/hardware/gpio/status", h.GPIOStatus)

	r.POST("/firmware/build/:type", h.FirmwareBuild)
	r.POST("/firmware/upload/:type", h.FirmwareUpload)
	r.POST("/firmware/flash/:type", h.FirmwareFlash)

	r.POST("/ldpc/command", h.LDPCCommand)
	r.GET("/ldpc/serial-history", h.LDPCSerialHistory)
	r.POST("/ldpc/test", h.LDPCTest)

	r.POST("/sat/command", h.SATCommand)
	r.GET("/sat/serial-history", h.SATSerialHistory)
	r.POST("/sat/solve", h.SATSolve)

	r.POST("/session-break", h.SessionBreak)
}
