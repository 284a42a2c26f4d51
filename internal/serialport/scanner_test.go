package serialport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTeensyCandidateByVendorID(t *testing.T) {
	p := Port{Device: "/dev/ttyACM0", VendorID: "16c0"}
	require.True(t, p.IsTeensyCandidate())
}

func TestIsTeensyCandidateByDescription(t *testing.T) {
	p := Port{Device: "/dev/cu.usbmodem158960", Description: "USB Serial"}
	require.True(t, p.IsTeensyCandidate())

	p2 := Port{Device: "/dev/ttyUSB0", Description: "Teensy 4.1"}
	require.True(t, p2.IsTeensyCandidate())
}

func TestIsTeensyCandidateFalse(t *testing.T) {
	p := Port{Device: "/dev/ttyUSB0", Description: "FTDI USB-RS232", VendorID: "0403"}
	require.False(t, p.IsTeensyCandidate())
}

func TestAnyHasVendorID(t *testing.T) {
	require.False(t, anyHasVendorID([]Port{{Device: "a"}, {Device: "b"}}))
	require.True(t, anyHasVendorID([]Port{{Device: "a"}, {Device: "b", VendorID: "16C0"}}))
}
