// Package firmware wraps the external PlatformIO toolchain used to build
// and flash board firmware, per SPEC_FULL.md §6.7.
package firmware

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/devicetype"
)

const (
	buildTimeout  = 300 * time.Second
	uploadTimeout = 120 * time.Second
	postFlashWait = 3 * time.Second
)

// PortClearer forgets a device type's port registration so discovery runs
// fresh after a flash reboots the board.
type PortClearer interface {
	ClearPort(devicetype.Type)
}

// Driver shells out to `pio` for each configured device type's firmware
// project.
type Driver struct {
	table   *devicetype.Table
	ports   PortClearer
	logger  *zap.Logger
	pioPath string
}

// New builds a firmware driver. pioPath is usually just "pio" and resolved
// via $PATH.
func New(table *devicetype.Table, ports PortClearer, logger *zap.Logger) *Driver {
	return &Driver{table: table, ports: ports, logger: logger, pioPath: "pio"}
}

// Build runs `pio run` for typ's firmware project with a 5-minute timeout.
func (d *Driver) Build(ctx context.Context, typ devicetype.Type) (string, error) {
	cfg, ok := d.table.Get(typ)
	if !ok {
		return "", apierr.New(apierr.UnknownDevice, fmt.Sprintf("unconfigured device type %q", typ))
	}

	ctx, cancel := context.WithTimeout(ctx, buildTimeout)
	defer cancel()

	out, err := d.run(ctx, "run", "-d", cfg.FirmwarePath, "-e", cfg.PIOEnvironment)
	if err != nil {
		return out, apierr.Wrap(apierr.DeviceError, "pio build failed", err)
	}
	return out, nil
}

// Upload runs `pio run -t upload` against an optional explicit port, with a
// 2-minute timeout.
func (d *Driver) Upload(ctx context.Context, typ devicetype.Type, port string) (string, error) {
	cfg, ok := d.table.Get(typ)
	if !ok {
		return "", apierr.New(apierr.UnknownDevice, fmt.Sprintf("unconfigured device type %q", typ))
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	args := []string{"run", "-d", cfg.FirmwarePath, "-e", cfg.PIOEnvironment, "-t", "upload"}
	if port != "" {
		args = append(args, "--upload-port", port)
	}

	out, err := d.run(ctx, args...)
	if err != nil {
		return out, apierr.Wrap(apierr.DeviceError, "pio upload failed", err)
	}
	return out, nil
}

// Flash composes Build (optional) and Upload, then clears typ's port
// registration and waits for the board to reboot so discovery sees it
// fresh.
func (d *Driver) Flash(ctx context.Context, typ devicetype.Type, port string, buildFirst bool) (string, error) {
	var combined bytes.Buffer

	if buildFirst {
		out, err := d.Build(ctx, typ)
		combined.WriteString(out)
		if err != nil {
			return combined.String(), err
		}
	}

	out, err := d.Upload(ctx, typ, port)
	combined.WriteString(out)
	if err != nil {
		return combined.String(), err
	}

	if d.ports != nil {
		d.ports.ClearPort(typ)
	}
	time.Sleep(postFlashWait)
	return combined.String(), nil
}

func (d *Driver) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, d.pioPath, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if d.logger != nil {
		d.logger.Info("running pio", zap.Strings("args", args))
	}
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return out.String(), fmt.Errorf("pio %v timed out: %w", args, ctx.Err())
	}
	return out.String(), err
}
