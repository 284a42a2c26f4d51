package gpio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/devicetype"
)

// On a host without the named chip, New must report itself unavailable
// rather than panicking or failing construction.
func TestNewUnavailableChipDoesNotPanic(t *testing.T) {
	table := devicetype.NewTable()
	d := New("gpiochip-does-not-exist", table, nil)

	require.False(t, d.Healthy())
	require.Error(t, d.LastError())
}

func TestResetOnUnconfiguredTypeIsUnknownDevice(t *testing.T) {
	table := devicetype.NewTable()
	d := New("gpiochip-does-not-exist", table, nil)

	err := d.Reset(devicetype.Type("bogus"))
	require.True(t, apierr.Is(err, apierr.UnknownDevice))
}

func TestResetWhenUnavailableIsGPIOUnavailable(t *testing.T) {
	table := devicetype.NewTable()
	d := New("gpiochip-does-not-exist", table, nil)

	err := d.Reset(devicetype.LDPC)
	require.True(t, apierr.Is(err, apierr.GPIOUnavailable))
}

func TestPinStateOnUnconfiguredTypeIsUnknownDevice(t *testing.T) {
	table := devicetype.NewTable()
	d := New("gpiochip-does-not-exist", table, nil)

	_, err := d.PinState(devicetype.Type("bogus"))
	require.True(t, apierr.Is(err, apierr.UnknownDevice))
}

func TestCloseOnUninitializedDriverIsSafe(t *testing.T) {
	table := devicetype.NewTable()
	d := New("gpiochip-does-not-exist", table, nil)
	require.NoError(t, d.Close())
}
