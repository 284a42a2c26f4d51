// Package devicesession implements the handshake, heartbeat, command
// execution, and bulk telemetry campaigns for a single logical device
// (one LDPC, SAT, or K-SAT board), plus the pool that keeps at most one
// live session per type, matching SPEC_FULL.md §6.4-6.5.
package devicesession

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/devicetype"
	"github.com/bendatsko/dacroq/internal/metrics"
	"github.com/bendatsko/dacroq/internal/serialport"
)

const (
	bootWait           = 2 * time.Second
	bannerWindow       = 5 * time.Second
	statusProbeWindow  = 1 * time.Second
	heartbeatWindow    = 30 * time.Second
	supervisionProbe   = 3 * time.Second
	defaultCmdTimeout  = 5 * time.Second
	maxReconnectTries  = 3
)

var terminatorPrefixes = []string{"ACK:", "STATUS:", "ERROR:", "DACROQ_BOARD:", "COMPLETE"}

// PortFinder is the narrow view of the device manager a session needs:
// candidate ports to try, and registration so a discovered port isn't
// reused by another type. Defined here (not imported from
// internal/devicemanager) to keep the manager<->session dependency
// one-directional.
type PortFinder interface {
	CandidatePorts(typ devicetype.Type) []string
	RegisterPort(port string, typ devicetype.Type) error
	ClearPort(typ devicetype.Type)
}

// Session owns one serial link for one device type. All operations
// acquire mu before touching the link, per SPEC_FULL.md §6.4.
type Session struct {
	typ    devicetype.Type
	cfg    devicetype.Config
	finder PortFinder

	mu                sync.Mutex
	link              *serialport.Link
	hist              *serialport.History
	port              string
	connected         bool
	lastHeartbeat     time.Time
	reconnectAttempts int

	metrics *metrics.HardwareMetrics
}

// SetMetrics attaches the hardware service's metrics so Connect/reconnect
// attempts, handshake failures, and session state are reported on
// /metrics. Nil-safe: a session with no metrics attached behaves exactly
// as before.
func (s *Session) SetMetrics(m *metrics.HardwareMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// New constructs a session for typ. It does not connect; call Connect (or
// let Execute/campaigns connect lazily) before using it.
func New(typ devicetype.Type, cfg devicetype.Config, finder PortFinder) *Session {
	return &Session{
		typ:    typ,
		cfg:    cfg,
		finder: finder,
		hist:   serialport.NewHistory(func() int64 { return time.Now().Unix() }),
	}
}

// Connected reports whether the session currently believes its link is
// live.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// LastHeartbeat returns the last time a heartbeat or successful probe was
// observed.
func (s *Session) LastHeartbeat() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat
}

// History returns the session's serial traffic ring buffer.
func (s *Session) History() []serialport.Entry {
	return s.hist.Snapshot()
}

// AddSessionSeparator records a system-only marker the UI uses to delimit
// reset boundaries; it never touches the link.
func (s *Session) AddSessionSeparator(text string) {
	s.hist.Record(serialport.System, text)
}

// Connect performs port selection (if port is empty) and the handshake
// described in SPEC_FULL.md §6.4. On success the session is marked
// connected with a fresh last_heartbeat.
func (s *Session) Connect(port string) error {
	candidates := []string{port}
	if port == "" {
		candidates = s.candidatePorts()
	}

	var lastErr error
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if err := s.handshake(candidate); err != nil {
			lastErr = err
			continue
		}
		if s.finder != nil {
			if err := s.finder.RegisterPort(candidate, s.typ); err != nil {
				s.Close()
				lastErr = apierr.Wrap(apierr.PortConflict, "register port", err)
				continue
			}
		}
		return nil
	}
	if lastErr == nil {
		lastErr = apierr.New(apierr.HandshakeFailed, "no candidate ports available").WithHint("press RESET")
	}
	return lastErr
}

func (s *Session) candidatePorts() []string {
	if s.finder == nil {
		return s.cfg.PreferredPorts
	}
	return s.finder.CandidatePorts(s.typ)
}

func (s *Session) handshake(port string) (err error) {
	defer func() {
		if err != nil && s.metrics != nil {
			s.metrics.HandshakeFailures.WithLabelValues(string(s.typ)).Inc()
		}
	}()

	link, err := serialport.Open(port, s.typ, s.hist)
	if err != nil {
		return apierr.Wrap(apierr.HandshakeFailed, "open "+port, err).WithHint("press RESET")
	}

	time.Sleep(bootWait)
	link.Drain()

	var banner []string
	deadline := time.Now().Add(bannerWindow)
	for time.Now().Before(deadline) {
		line, _ := link.ReadLine(time.Until(deadline))
		if line == "" {
			continue
		}
		banner = append(banner, line)
		if matchesAny(line, s.cfg.StartupMessages) {
			s.markConnected(link, port)
			return nil
		}
	}

	if err := link.WriteLine("STATUS"); err != nil {
		_ = link.Close()
		return apierr.Wrap(apierr.HandshakeFailed, "probe STATUS", err).WithHint("press RESET")
	}
	probeDeadline := time.Now().Add(statusProbeWindow)
	for time.Now().Before(probeDeadline) {
		line, _ := link.ReadLine(time.Until(probeDeadline))
		if line == "" {
			continue
		}
		banner = append(banner, line)
		if strings.Contains(line, "STATUS:READY") {
			s.markConnected(link, port)
			return nil
		}
	}

	_ = link.Close()
	return apierr.New(apierr.HandshakeFailed, fmt.Sprintf("no banner match, collected: %s", strings.Join(banner, " | "))).
		WithHint("press RESET")
}

func (s *Session) markConnected(link *serialport.Link, port string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.link = link
	s.port = port
	s.connected = true
	s.lastHeartbeat = time.Now()
	s.reconnectAttempts = 0
	if s.metrics != nil {
		s.metrics.SessionsConnected.WithLabelValues(string(s.typ)).Set(1)
	}
}

func matchesAny(line string, substrs []string) bool {
	for _, m := range substrs {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// NoteHeartbeat records an observed HEARTBEAT line. Callers that read raw
// lines off the link outside Execute (e.g. a dedicated heartbeat listener)
// call this instead of writing to history, since heartbeats are excluded
// from the ring.
func (s *Session) NoteHeartbeat() {
	s.mu.Lock()
	s.lastHeartbeat = time.Now()
	s.mu.Unlock()
}

// CheckConnection implements the supervision rule from §6.4: healthy if a
// heartbeat was seen in the last 30s, otherwise a STATUS probe must
// succeed within 3s. On failure the link is closed and the session is
// marked disconnected. mu is held for the full probe, serializing it
// against any other I/O on the link.
func (s *Session) CheckConnection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.link == nil {
		return false
	}
	if time.Since(s.lastHeartbeat) <= heartbeatWindow {
		return true
	}

	link := s.link
	if err := link.WriteLine("STATUS"); err != nil {
		s.closeLinkLocked()
		return false
	}
	deadline := time.Now().Add(supervisionProbe)
	for time.Now().Before(deadline) {
		line, _ := link.ReadLine(time.Until(deadline))
		if strings.Contains(line, "STATUS:READY") {
			s.lastHeartbeat = time.Now()
			return true
		}
	}
	s.closeLinkLocked()
	return false
}

// closeLinkLocked drops the link and marks the session disconnected.
// Callers must already hold mu.
func (s *Session) closeLinkLocked() {
	link := s.link
	s.link = nil
	s.connected = false
	if s.metrics != nil {
		s.metrics.SessionsConnected.WithLabelValues(string(s.typ)).Set(0)
	}
	if link != nil {
		_ = link.Close()
	}
}

// Close releases the underlying link, if any.
func (s *Session) Close() error {
	s.mu.Lock()
	link := s.link
	s.closeLinkLocked()
	s.mu.Unlock()
	if link == nil {
		return nil
	}
	if s.finder != nil {
		s.finder.ClearPort(s.typ)
	}
	return nil
}

// ensureConnected reconnects, up to max_reconnect_attempts, if the session
// isn't currently usable.
func (s *Session) ensureConnected() error {
	if s.CheckConnection() {
		return nil
	}
	s.mu.Lock()
	attempts := s.reconnectAttempts
	s.mu.Unlock()
	if attempts >= maxReconnectTries {
		return apierr.New(apierr.NotConnected, "max reconnect attempts exhausted").WithHint("press RESET")
	}
	s.mu.Lock()
	s.reconnectAttempts++
	if s.metrics != nil {
		s.metrics.ReconnectAttempts.WithLabelValues(string(s.typ)).Inc()
	}
	s.mu.Unlock()
	return s.Connect(s.port)
}

// Execute implements the command contract from §6.4: drain pending
// input, write cmd, then read lines until a terminator prefix or timeout.
// mu is held for the full exchange so concurrent callers serialize rather
// than interleave bytes on the wire.
func (s *Session) Execute(cmd string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = defaultCmdTimeout
	}
	if err := s.ensureConnected(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	link := s.link
	if link == nil {
		return "", apierr.New(apierr.NotConnected, "no active link").WithHint("press RESET")
	}

	link.Drain()
	if err := link.WriteLine(cmd); err != nil {
		return "", apierr.Wrap(apierr.DeviceError, "write command", err)
	}

	var lines []string
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		line, err := link.ReadLine(time.Until(deadline))
		if err != nil {
			return "", err
		}
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if strings.HasPrefix(line, "ERROR:") {
			return strings.Join(lines, "\n"), apierr.New(apierr.DeviceError, line)
		}
		if hasTerminatorPrefix(line) {
			break
		}
	}

	return strings.Join(lines, "\n"), nil
}

func hasTerminatorPrefix(line string) bool {
	for _, p := range terminatorPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
