package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/devicemanager"
	"github.com/bendatsko/dacroq/internal/devicesession"
	"github.com/bendatsko/dacroq/internal/devicetype"
	"github.com/bendatsko/dacroq/internal/firmware"
	"github.com/bendatsko/dacroq/internal/gpio"
	"github.com/bendatsko/dacroq/internal/orchestrator"
)

// HardwareHandler serves the Hardware service's HTTP surface (SPEC_FULL.md
// §6 "HTTP — Hardware service"): discovery, reset, firmware, and direct
// device command/test routes.
type HardwareHandler struct {
	Manager  *devicemanager.Manager
	Pool     *devicesession.Pool
	GPIO     *gpio.Driver
	Firmware *firmware.Driver
	Table    *devicetype.Table
	Logger   *zap.Logger
}

func NewHardwareHandler(manager *devicemanager.Manager, pool *devicesession.Pool, gpioDrv *gpio.Driver, fw *firmware.Driver, table *devicetype.Table, logger *zap.Logger) *HardwareHandler {
	return &HardwareHandler{Manager: manager, Pool: pool, GPIO: gpioDrv, Firmware: fw, Table: table, Logger: logger}
}

func parseType(c *gin.Context) (devicetype.Type, bool) {
	typ := devicetype.Type(c.Param("type"))
	if !typ.Valid() {
		apierr.WriteJSON(c, apierr.New(apierr.UnknownDevice, fmt.Sprintf("unknown device type %q", c.Param("type"))))
		return "", false
	}
	return typ, true
}

// Discover runs a discovery pass over every candidate serial port.
func (h *HardwareHandler) Discover(c *gin.Context) {
	discovered, err := h.Manager.DiscoverAll()
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"discovered": discovered, "status": "ok"})
}

// Reset pulses the reset line for one device type.
func (h *HardwareHandler) Reset(c *gin.Context) {
	typ, ok := parseType(c)
	if !ok {
		return
	}
	if err := h.Manager.ResetDevice(typ); err != nil {
		if apierr.Is(err, apierr.GPIOUnavailable) {
			c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
			return
		}
		apierr.WriteJSON(c, err)
		return
	}
	cfg, _ := h.Table.Get(typ)
	c.JSON(http.StatusOK, gin.H{"success": true, "gpio_pin": cfg.ResetLine})
}

// ResetAll pulses every configured device type's reset line.
func (h *HardwareHandler) ResetAll(c *gin.Context) {
	if err := h.Manager.ResetAll(); err != nil {
		if apierr.Is(err, apierr.GPIOUnavailable) {
			c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
			return
		}
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GPIOStatus reports the current logic level of every reset line.
func (h *HardwareHandler) GPIOStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pins": h.GPIO.Status(), "healthy": h.GPIO.Healthy()})
}

// FirmwareBuild compiles the PlatformIO project for one device type.
func (h *HardwareHandler) FirmwareBuild(c *gin.Context) {
	typ, ok := parseType(c)
	if !ok {
		return
	}
	output, err := h.Firmware.Build(c.Request.Context(), typ)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "output": output})
}

type portBody struct {
	Port string `json:"port"`
}

// FirmwareUpload uploads the last build to a (possibly re-discovered) port.
func (h *HardwareHandler) FirmwareUpload(c *gin.Context) {
	typ, ok := parseType(c)
	if !ok {
		return
	}
	var body portBody
	_ = c.ShouldBindJSON(&body)

	output, err := h.Firmware.Upload(c.Request.Context(), typ, body.Port)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "output": output})
}

type flashBody struct {
	Port  string `json:"port"`
	Build bool   `json:"build"`
}

// FirmwareFlash builds (optionally) then uploads in one call.
func (h *HardwareHandler) FirmwareFlash(c *gin.Context) {
	typ, ok := parseType(c)
	if !ok {
		return
	}
	var body flashBody
	_ = c.ShouldBindJSON(&body)

	output, err := h.Firmware.Flash(c.Request.Context(), typ, body.Port, body.Build)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "output": output})
}

type commandBody struct {
	Command string `json:"command"`
}

func (h *HardwareHandler) runCommand(c *gin.Context, typ devicetype.Type) {
	var body commandBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Command == "" {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "command is required"))
		return
	}
	sess, err := h.Pool.Acquire(typ)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	output, err := sess.Execute(body.Command, 5*time.Second)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": output})
}

// LDPCCommand sends a raw command to the LDPC board.
func (h *HardwareHandler) LDPCCommand(c *gin.Context) { h.runCommand(c, devicetype.LDPC) }

// SATCommand sends a raw command to the SAT board.
func (h *HardwareHandler) SATCommand(c *gin.Context) { h.runCommand(c, devicetype.SAT) }

func (h *HardwareHandler) serialHistory(c *gin.Context, typ devicetype.Type) {
	sess, err := h.Pool.Acquire(typ)
	if err != nil {
		// Still report what we know even if the board is currently
		// unreachable: an empty, disconnected history is informative.
		c.JSON(http.StatusOK, gin.H{"history": []any{}, "connected": false, "last_heartbeat": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"history":        sess.History(),
		"connected":      sess.Connected(),
		"last_heartbeat": sess.LastHeartbeat(),
	})
}

// LDPCSerialHistory returns the LDPC session's traffic ring buffer.
func (h *HardwareHandler) LDPCSerialHistory(c *gin.Context) { h.serialHistory(c, devicetype.LDPC) }

// SATSerialHistory returns the SAT session's traffic ring buffer.
func (h *HardwareHandler) SATSerialHistory(c *gin.Context) { h.serialHistory(c, devicetype.SAT) }

type ldpcTestBody struct {
	SNRdB   int `json:"snr_db"`
	NumRuns int `json:"num_runs"`
}

// LDPCTest runs a single-SNR LDPC test directly against the board and
// returns its results synchronously.
func (h *HardwareHandler) LDPCTest(c *gin.Context) {
	var body ldpcTestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "invalid request body"))
		return
	}
	if body.SNRdB < 1 || body.SNRdB > 10 {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "snr_db must be within [1,10]"))
		return
	}
	if body.NumRuns < 1 || body.NumRuns > 10 {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "num_runs must be within [1,10]"))
		return
	}

	sess, err := h.Pool.Acquire(devicetype.LDPC)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	if err := sess.HealthCheck(); err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	results, err := sess.RunSNRTest(body.SNRdB, body.NumRuns)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type satSolveBody struct {
	DIMACS       string `json:"dimacs"`
	ProblemCount int    `json:"problem_count"`
}

// SATSolve drives a SAT campaign directly against the board for a
// caller-supplied DIMACS problem.
func (h *HardwareHandler) SATSolve(c *gin.Context) {
	var body satSolveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "invalid request body"))
		return
	}
	cnf, err := orchestrator.ParseDIMACS(body.DIMACS)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	if body.ProblemCount < 1 {
		body.ProblemCount = 1
	}

	sess, err := h.Pool.Acquire(devicetype.SAT)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	results, err := sess.SolveSATProblem(cnf.NumVars, body.ProblemCount)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type sessionBreakBody struct {
	Text string `json:"text"`
}

// SessionBreak acquires a session for every device type through the pool
// (which probes an idle session and connects where none is live) and
// records a UI-visible marker in each acquired session's history. Types
// whose session cannot be acquired are skipped.
func (h *HardwareHandler) SessionBreak(c *gin.Context) {
	var body sessionBreakBody
	_ = c.ShouldBindJSON(&body)
	if body.Text == "" {
		body.Text = "session break"
	}
	for _, typ := range devicetype.All() {
		if sess, err := h.Pool.Acquire(typ); err == nil {
			sess.AddSessionSeparator(body.Text)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
