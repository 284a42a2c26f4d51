// Package devicetype holds the closed set of accelerator device types and
// their static configuration. It is a read-only table injected into the
// session and device-manager layers, breaking the session<->manager cycle
// described in SPEC_FULL.md §6.6.
package devicetype

import "strings"

// Type identifies which firmware a device is running.
type Type string

const (
	LDPC Type = "ldpc"
	SAT  Type = "sat"
	KSAT Type = "ksat"
)

// All enumerates the closed set of device types in a stable order.
func All() []Type { return []Type{LDPC, SAT, KSAT} }

func (t Type) Valid() bool {
	switch t {
	case LDPC, SAT, KSAT:
		return true
	default:
		return false
	}
}

// ChipType returns the persisted chip_type label for a device type.
func (t Type) ChipType() string {
	switch t {
	case LDPC:
		return "LDPC"
	case SAT:
		return "SAT"
	case KSAT:
		return "KSAT"
	default:
		return string(t)
	}
}

// Config is the static, per-type configuration consulted by the session and
// device-manager layers. It never changes at runtime.
type Config struct {
	Type                   Type
	PreferredPorts         []string
	StartupMessages        []string
	IdentificationKeywords []string
	FirmwarePath           string
	PIOEnvironment         string
	ResetLine              int
}

// Table is a read-only view over the device-type configuration, handed to
// collaborators that must not mutate it.
type Table struct {
	configs map[Type]Config
}

// NewTable builds the default configuration table for the three known
// device types, matching the DeviceTypeConfig fields in SPEC_FULL.md §5.
func NewTable() *Table {
	return &Table{configs: map[Type]Config{
		LDPC: {
			Type:                   LDPC,
			PreferredPorts:         []string{"/dev/ttyACM0", "/dev/cu.usbmodem158960"},
			StartupMessages:        []string{"AMORGOS", "DACROQ_BOARD:LDPC"},
			IdentificationKeywords: []string{"AMORGOS", "LDPC"},
			FirmwarePath:           "firmware/amorgos",
			PIOEnvironment:         "teensy41",
			ResetLine:              18,
		},
		SAT: {
			Type:                   SAT,
			PreferredPorts:         []string{"/dev/ttyACM1", "/dev/cu.usbmodem138999"},
			StartupMessages:        []string{"DAEDALUS", "DACROQ_BOARD:SAT"},
			IdentificationKeywords: []string{"DAEDALUS", "3-SAT"},
			FirmwarePath:           "firmware/daedalus",
			PIOEnvironment:         "teensy41",
			ResetLine:              19,
		},
		KSAT: {
			Type:                   KSAT,
			PreferredPorts:         []string{"/dev/ttyACM2", "/dev/cu.usbmodem140001"},
			StartupMessages:        []string{"MEDUSA", "DACROQ_BOARD:KSAT"},
			IdentificationKeywords: []string{"MEDUSA", "K-SAT"},
			FirmwarePath:           "firmware/medusa",
			PIOEnvironment:         "teensy41",
			ResetLine:              20,
		},
	}}
}

// Get returns the configuration for a device type.
func (t *Table) Get(typ Type) (Config, bool) {
	c, ok := t.configs[typ]
	return c, ok
}

// All returns every configured type.
func (t *Table) All() []Config {
	out := make([]Config, 0, len(t.configs))
	for _, typ := range All() {
		if c, ok := t.configs[typ]; ok {
			out = append(out, c)
		}
	}
	return out
}

// IdentifyByPortSubstring applies the documented pragmatic fallback from
// the device-manager identification step (SPEC_FULL.md §6.6): disambiguate a STATUS:READY device by a
// substring of its port path. This heuristic is fragile and inherited from
// the original firmware fleet; it must be preserved for back-compat.
func IdentifyByPortSubstring(portPath string) (Type, bool) {
	substrTypes := []struct {
		substr string
		typ    Type
	}{
		{"158960", LDPC},
		{"138999", SAT},
		{"139000", SAT},
		{"140001", KSAT},
	}
	for _, st := range substrTypes {
		if strings.Contains(portPath, st.substr) {
			return st.typ, true
		}
	}
	return "", false
}
