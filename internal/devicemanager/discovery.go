package devicemanager

import (
	"strings"
	"time"

	"github.com/bendatsko/dacroq/internal/devicetype"
	"github.com/bendatsko/dacroq/internal/serialport"
)

const (
	probeBaudWait   = 1500 * time.Millisecond
	probeReadWindow = 750 * time.Millisecond
)

// scanPorts is a package variable so tests can substitute a fake scanner.
var scanPorts = serialport.Scan

// DiscoverAll enumerates Teensy-candidate ports and identifies each with a
// short STATUS probe, per §6.6. Every identified port is registered;
// ports that fail the exclusivity check or don't respond are skipped.
func (m *Manager) DiscoverAll() (map[string]string, error) {
	ports, err := scanPorts()
	if err != nil {
		return nil, err
	}

	identified := make(map[string]string)
	for _, p := range ports {
		if !p.IsTeensyCandidate() {
			continue
		}
		typ, ok := m.identify(p)
		if !ok {
			continue
		}
		if err := m.RegisterPort(p.Device, typ); err != nil {
			continue
		}
		identified[p.Device] = string(typ)
	}
	return identified, nil
}

// identify runs a throwaway probe on p and classifies it by keyword match
// against the type table, falling back to the port-substring heuristic.
func (m *Manager) identify(p serialport.Port) (devicetype.Type, bool) {
	scratch := serialport.NewHistory(func() int64 { return time.Now().Unix() })
	link, err := serialport.Open(p.Device, devicetype.Type(""), scratch)
	if err != nil {
		return "", false
	}
	defer link.Close()

	time.Sleep(probeBaudWait)
	link.Drain()
	if err := link.WriteLine("STATUS"); err != nil {
		return "", false
	}

	var responses []string
	deadline := time.Now().Add(probeReadWindow)
	for time.Now().Before(deadline) {
		line, _ := link.ReadLine(time.Until(deadline))
		if line != "" {
			responses = append(responses, line)
		}
	}
	return classify(m.table, p.Device, strings.Join(responses, " "))
}

// classify applies the §6.6 identification algorithm to a probe's
// collected responses: keyword match first, then the STATUS:READY
// port-substring fallback. Split out from identify so it can be tested
// without a real serial link.
func classify(table *devicetype.Table, portDevice, responses string) (devicetype.Type, bool) {
	for _, cfg := range table.All() {
		for _, kw := range cfg.IdentificationKeywords {
			if strings.Contains(responses, kw) {
				return cfg.Type, true
			}
		}
	}

	if strings.Contains(responses, "STATUS:READY") {
		if typ, ok := devicetype.IdentifyByPortSubstring(portDevice); ok {
			return typ, true
		}
	}
	return "", false
}
