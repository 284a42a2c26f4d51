package devicemanager

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/devicetype"
	"github.com/bendatsko/dacroq/internal/serialport"
)

type stubGPIO struct {
	resetCalled    []devicetype.Type
	resetAllCalled bool
	failReset      bool
}

func (g *stubGPIO) Reset(typ devicetype.Type) error {
	g.resetCalled = append(g.resetCalled, typ)
	if g.failReset {
		return apierr.New(apierr.GPIOUnavailable, "no chip")
	}
	return nil
}

func (g *stubGPIO) ResetAll() error {
	g.resetAllCalled = true
	return nil
}

func TestRegisterPortExclusivity(t *testing.T) {
	m := New(devicetype.NewTable(), nil)
	require.NoError(t, m.RegisterPort("/dev/ttyACM0", devicetype.LDPC))
	require.NoError(t, m.RegisterPort("/dev/ttyACM0", devicetype.LDPC)) // idempotent

	err := m.RegisterPort("/dev/ttyACM0", devicetype.SAT)
	require.Error(t, err)
	require.True(t, apierr.Is(err, apierr.PortConflict))
}

func TestClearPortRemovesBothDirections(t *testing.T) {
	m := New(devicetype.NewTable(), nil)
	require.NoError(t, m.RegisterPort("/dev/ttyACM0", devicetype.LDPC))
	m.ClearPort(devicetype.LDPC)

	active, discovered, total := m.Status()
	require.Empty(t, active)
	require.Empty(t, discovered)
	require.Equal(t, 0, total)
}

func TestResetDeviceWithoutGPIOFails(t *testing.T) {
	m := New(devicetype.NewTable(), nil)
	err := m.ResetDevice(devicetype.LDPC)
	require.True(t, apierr.Is(err, apierr.GPIOUnavailable))
}

func TestResetDeviceDelegatesToGPIO(t *testing.T) {
	gpio := &stubGPIO{}
	m := New(devicetype.NewTable(), gpio)
	require.NoError(t, m.ResetDevice(devicetype.SAT))
	require.Equal(t, []devicetype.Type{devicetype.SAT}, gpio.resetCalled)
}

func TestResetAllDelegatesToGPIO(t *testing.T) {
	gpio := &stubGPIO{}
	m := New(devicetype.NewTable(), gpio)
	require.NoError(t, m.ResetAll())
	require.True(t, gpio.resetAllCalled)
}

func TestCandidatePortsPrefersDiscoveredThenConfigured(t *testing.T) {
	orig := scanPorts
	defer func() { scanPorts = orig }()
	scanPorts = func() ([]serialport.Port, error) { return nil, nil }

	m := New(devicetype.NewTable(), nil)
	require.NoError(t, m.RegisterPort("/dev/discovered0", devicetype.LDPC))

	candidates := m.CandidatePorts(devicetype.LDPC)
	require.Equal(t, "/dev/discovered0", candidates[0])
}
