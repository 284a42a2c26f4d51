// Package devicemanager owns the port-registration maps, brokers access to
// the GPIO reset driver, and runs USB discovery, per SPEC_FULL.md §6.6. It
// satisfies the devicesession.PortFinder interface and the gpio.PortCleaner
// interface purely structurally, so neither package imports this one.
package devicemanager

import (
	"fmt"
	"sync"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/devicetype"
)

// resetDriver is the narrow slice of *gpio.Driver the manager needs to
// implement reset_device/reset_all.
type resetDriver interface {
	Reset(typ devicetype.Type) error
	ResetAll() error
}

// Manager tracks which port is bound to which device type and brokers
// resets through the GPIO driver.
type Manager struct {
	mu    sync.Mutex
	table *devicetype.Table
	gpio  resetDriver

	portToType map[string]devicetype.Type
	typeToPort map[devicetype.Type]string
}

// New builds a manager against the given type table and reset driver. gpio
// may be nil in environments without GPIO hardware; resets then fail with
// GPIOUnavailable.
func New(table *devicetype.Table, gpio resetDriver) *Manager {
	return &Manager{
		table:      table,
		gpio:       gpio,
		portToType: make(map[string]devicetype.Type),
		typeToPort: make(map[devicetype.Type]string),
	}
}

// RegisterPort binds port to typ. It fails if port is already registered to
// a different type — the exclusivity rule from §6.6.
func (m *Manager) RegisterPort(port string, typ devicetype.Type) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.portToType[port]; ok && existing != typ {
		return apierr.New(apierr.PortConflict, fmt.Sprintf("port %s already registered to %s", port, existing))
	}
	m.portToType[port] = typ
	m.typeToPort[typ] = port
	return nil
}

// ClearPort drops typ's registration, forcing fresh discovery on next
// acquisition. Called by the GPIO driver after a reset (ResetDevice and
// ResetAll reach it through the driver).
func (m *Manager) ClearPort(typ devicetype.Type) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if port, ok := m.typeToPort[typ]; ok {
		delete(m.portToType, port)
		delete(m.typeToPort, typ)
	}
}

// CandidatePorts returns ports worth trying for typ, in the priority order
// used by sessions (SPEC_FULL.md §6.4): the already-discovered port, then the type's preferred
// ports, then any Teensy-candidate port not owned by another type.
func (m *Manager) CandidatePorts(typ devicetype.Type) []string {
	m.mu.Lock()
	var out []string
	if port, ok := m.typeToPort[typ]; ok {
		out = append(out, port)
	}
	cfg, hasCfg := m.table.Get(typ)
	owned := make(map[string]bool, len(m.portToType))
	for p, t := range m.portToType {
		if t != typ {
			owned[p] = true
		}
	}
	m.mu.Unlock()

	if hasCfg {
		out = append(out, cfg.PreferredPorts...)
	}

	ports, err := scanPorts()
	if err == nil {
		for _, p := range ports {
			if p.IsTeensyCandidate() && !owned[p.Device] {
				out = append(out, p.Device)
			}
		}
	}
	return dedupe(out)
}

// SetGPIO attaches the reset driver after construction. The GPIO driver
// itself takes this Manager as its PortCleaner, so main wiring must build
// the Manager first (with a nil driver, which fails resets with
// GPIOUnavailable), then the gpio.Driver, then call SetGPIO to close the
// loop.
func (m *Manager) SetGPIO(gpio resetDriver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gpio = gpio
}

// ResetDevice delegates to the GPIO driver; the driver's PortCleaner
// callback (this Manager) clears the registration once the pulse
// completes.
func (m *Manager) ResetDevice(typ devicetype.Type) error {
	if m.gpio == nil {
		return apierr.New(apierr.GPIOUnavailable, "gpio driver not configured")
	}
	return m.gpio.Reset(typ)
}

// ResetAll pulses every configured device's reset line.
func (m *Manager) ResetAll() error {
	if m.gpio == nil {
		return apierr.New(apierr.GPIOUnavailable, "gpio driver not configured")
	}
	return m.gpio.ResetAll()
}

// Status reports the active port-to-type map, a copy keyed by device type,
// and the total count.
func (m *Manager) Status() (activePorts map[string]string, discovered map[string]string, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activePorts = make(map[string]string, len(m.portToType))
	for port, typ := range m.portToType {
		activePorts[port] = string(typ)
	}
	discovered = make(map[string]string, len(m.typeToPort))
	for typ, port := range m.typeToPort {
		discovered[string(typ)] = port
	}
	return activePorts, discovered, len(m.portToType)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
