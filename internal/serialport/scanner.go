package serialport

import (
	"strings"

	"github.com/google/gousb"
	"go.bug.st/serial/enumerator"
)

// teensyVendorID is the USB vendor ID PJRC ships on every Teensy board.
const teensyVendorID = gousb.ID(0x16C0)

// Port describes one serial port the host reports.
type Port struct {
	Device       string `json:"device"`
	Description  string `json:"description"`
	VendorID     string `json:"vendor_id"`
	ProductID    string `json:"product_id"`
	SerialNumber string `json:"serial_number"`
}

// IsTeensyCandidate reports whether p is plausibly one of our boards: either
// its vendor ID matches PJRC's, or its description names the hardware.
func (p Port) IsTeensyCandidate() bool {
	if strings.EqualFold(p.VendorID, "16C0") {
		return true
	}
	desc := strings.ToLower(p.Description)
	return strings.Contains(desc, "teensy") || strings.Contains(desc, "usbmodem")
}

// Scan enumerates every serial port the OS reports. It performs no I/O on
// the ports themselves — only descriptor lookups.
func Scan() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	ports := make([]Port, 0, len(details))
	for _, d := range details {
		ports = append(ports, Port{
			Device:       d.Name,
			Description:  d.Product,
			VendorID:     d.VID,
			ProductID:    d.PID,
			SerialNumber: d.SerialNumber,
		})
	}

	if !anyHasVendorID(ports) {
		fillVendorIDsFromUSBBus(ports)
	}
	return ports, nil
}

func anyHasVendorID(ports []Port) bool {
	for _, p := range ports {
		if p.VendorID != "" {
			return true
		}
	}
	return false
}

// fillVendorIDsFromUSBBus is a fallback for platforms where the serial
// enumerator can't surface VID/PID: it walks the USB bus directly via gousb
// and tags any port whose serial number matches a PJRC device.
func fillVendorIDsFromUSBBus(ports []Port) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	bySerial := make(map[string]gousb.ID)
	devices, _ := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == teensyVendorID
	})
	for _, dev := range devices {
		if sn, err := dev.SerialNumber(); err == nil && sn != "" {
			bySerial[sn] = dev.Desc.Vendor
		}
		_ = dev.Close()
	}

	for i := range ports {
		if vid, ok := bySerial[ports[i].SerialNumber]; ok {
			ports[i].VendorID = vid.String()
		}
	}
}
