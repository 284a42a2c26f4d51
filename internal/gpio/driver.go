// Package gpio drives the reset lines wired to each accelerator board. It
// opens the host's GPIO chip once at startup and claims one output line per
// configured device type, matching SPEC_FULL.md §6.1.
package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/gpiod"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/devicetype"
	"github.com/bendatsko/dacroq/internal/metrics"
)

const (
	pulseLow    = 1500 * time.Millisecond
	settleDelay = 3 * time.Second

	lineInactive = 1 // HIGH: reset is active-low
	lineActive   = 0 // LOW: asserts reset
)

// PortCleaner is called after a reset so the device manager can clear the
// affected type's port registration, forcing fresh discovery.
type PortCleaner interface {
	ClearPort(devicetype.Type)
}

// Driver claims one output line per device type on a single GPIO chip and
// pulses it low to reset the corresponding board.
type Driver struct {
	mu     sync.Mutex
	chip   *gpiod.Chip
	lines  map[devicetype.Type]*gpiod.Line
	table  *devicetype.Table
	portCl PortCleaner

	resetsIssued int64
	lastErr      error

	metrics *metrics.HardwareMetrics
}

// SetMetrics attaches the hardware service's metrics so every reset pulse
// is counted on /metrics. Nil-safe.
func (d *Driver) SetMetrics(m *metrics.HardwareMetrics) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metrics = m
}

// New opens chipName (typically "gpiochip0") and claims a reset line for
// every type in table. If the chip cannot be opened, the driver is returned
// in an unavailable state rather than failing construction: hosts without
// GPIO hardware must still run the rest of the control plane.
func New(chipName string, table *devicetype.Table, portCl PortCleaner) *Driver {
	d := &Driver{
		lines:  make(map[devicetype.Type]*gpiod.Line),
		table:  table,
		portCl: portCl,
	}

	chip, err := gpiod.NewChip(chipName, gpiod.WithConsumer("dacroq"))
	if err != nil {
		d.lastErr = fmt.Errorf("open chip %s: %w", chipName, err)
		return d
	}
	d.chip = chip

	for _, cfg := range table.All() {
		line, err := chip.RequestLine(cfg.ResetLine, gpiod.AsOutput(lineInactive))
		if err != nil {
			d.lastErr = fmt.Errorf("claim line %d for %s: %w", cfg.ResetLine, cfg.Type, err)
			continue
		}
		d.lines[cfg.Type] = line
	}

	return d
}

// Healthy reports whether the chip opened and every configured line was
// claimed successfully.
func (d *Driver) Healthy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chip != nil && len(d.lines) == len(d.table.All())
}

// LastError returns the most recent initialization or operation error, if
// any.
func (d *Driver) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// ResetsIssued returns the number of reset pulses issued so far.
func (d *Driver) ResetsIssued() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resetsIssued
}

// Reset pulses a single device type's line low for 1.5s, returns it high,
// and sleeps 3s to let the board re-enumerate over USB.
func (d *Driver) Reset(typ devicetype.Type) error {
	if !typ.Valid() {
		return apierr.New(apierr.UnknownDevice, fmt.Sprintf("unconfigured device type %q", typ))
	}

	d.mu.Lock()
	if d.chip == nil {
		d.mu.Unlock()
		return apierr.New(apierr.GPIOUnavailable, "gpio driver not initialized")
	}
	line, ok := d.lines[typ]
	d.mu.Unlock()
	if !ok {
		return apierr.New(apierr.UnknownDevice, fmt.Sprintf("no reset line claimed for %q", typ))
	}

	if err := line.SetValue(lineActive); err != nil {
		d.recordErr(err)
		return apierr.Wrap(apierr.GPIOUnavailable, "assert reset", err)
	}
	time.Sleep(pulseLow)
	if err := line.SetValue(lineInactive); err != nil {
		d.recordErr(err)
		return apierr.Wrap(apierr.GPIOUnavailable, "release reset", err)
	}
	time.Sleep(settleDelay)

	d.mu.Lock()
	d.resetsIssued++
	m := d.metrics
	d.mu.Unlock()
	if m != nil {
		m.GPIOResets.WithLabelValues(string(typ)).Inc()
	}

	if d.portCl != nil {
		d.portCl.ClearPort(typ)
	}
	return nil
}

// ResetAll drives every configured line low, holds them all low for one
// shared pulse, then releases them all. Each phase sets the lines one after
// another with one SetValue call per line (no batch request), back to back
// with no delay between lines.
func (d *Driver) ResetAll() error {
	d.mu.Lock()
	if d.chip == nil {
		d.mu.Unlock()
		return apierr.New(apierr.GPIOUnavailable, "gpio driver not initialized")
	}
	lines := make([]*gpiod.Line, 0, len(d.lines))
	types := make([]devicetype.Type, 0, len(d.lines))
	for typ, line := range d.lines {
		lines = append(lines, line)
		types = append(types, typ)
	}
	d.mu.Unlock()

	for _, l := range lines {
		if err := l.SetValue(lineActive); err != nil {
			d.recordErr(err)
			return apierr.Wrap(apierr.GPIOUnavailable, "assert reset (all)", err)
		}
	}
	time.Sleep(pulseLow)
	for _, l := range lines {
		if err := l.SetValue(lineInactive); err != nil {
			d.recordErr(err)
			return apierr.Wrap(apierr.GPIOUnavailable, "release reset (all)", err)
		}
	}
	time.Sleep(settleDelay)

	d.mu.Lock()
	d.resetsIssued += int64(len(lines))
	m := d.metrics
	d.mu.Unlock()
	if m != nil {
		for _, typ := range types {
			m.GPIOResets.WithLabelValues(string(typ)).Inc()
		}
	}

	if d.portCl != nil {
		for _, typ := range types {
			d.portCl.ClearPort(typ)
		}
	}
	return nil
}

// PinState returns the current line value for a device type: 1 for
// inactive (HIGH), 0 for reset-asserted (LOW).
func (d *Driver) PinState(typ devicetype.Type) (int, error) {
	d.mu.Lock()
	line, ok := d.lines[typ]
	d.mu.Unlock()
	if !ok {
		return 0, apierr.New(apierr.UnknownDevice, fmt.Sprintf("no reset line claimed for %q", typ))
	}
	return line.Value()
}

// Status returns the pin state of every configured device type, keyed by
// type, for the /hardware/gpio/status route.
func (d *Driver) Status() map[devicetype.Type]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[devicetype.Type]int, len(d.lines))
	for typ, line := range d.lines {
		v, err := line.Value()
		if err != nil {
			continue
		}
		out[typ] = v
	}
	return out
}

// Close restores every line to HIGH and releases the chip.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, line := range d.lines {
		_ = line.SetValue(lineInactive)
		_ = line.Close()
	}
	if d.chip != nil {
		return d.chip.Close()
	}
	return nil
}

func (d *Driver) recordErr(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
}
