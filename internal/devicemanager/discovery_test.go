package devicemanager

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bendatsko/dacroq/internal/devicetype"
	"github.com/bendatsko/dacroq/internal/serialport"
)

func TestClassifyByKeyword(t *testing.T) {
	table := devicetype.NewTable()
	typ, ok := classify(table, "/dev/ttyACM0", "DACROQ_BOARD:LDPC AMORGOS ready")
	require.True(t, ok)
	require.Equal(t, devicetype.LDPC, typ)
}

func TestClassifyByPortSubstringFallback(t *testing.T) {
	table := devicetype.NewTable()
	typ, ok := classify(table, "/dev/cu.usbmodem139000", "STATUS:READY")
	require.True(t, ok)
	require.Equal(t, devicetype.SAT, typ)
}

func TestClassifyUnidentified(t *testing.T) {
	table := devicetype.NewTable()
	_, ok := classify(table, "/dev/ttyUSB9", "garbage")
	require.False(t, ok)
}

func TestDiscoverAllSkipsNonTeensyPorts(t *testing.T) {
	orig := scanPorts
	defer func() { scanPorts = orig }()

	scanPorts = func() ([]serialport.Port, error) {
		return []serialport.Port{{Device: "/dev/ttyUSB0", VendorID: "0403"}}, nil
	}

	m := New(devicetype.NewTable(), nil)
	found, err := m.DiscoverAll()
	require.NoError(t, err)
	require.Empty(t, found)
}
