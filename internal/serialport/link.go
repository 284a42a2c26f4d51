package serialport

import (
	"bufio"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/tarm/serial"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/devicetype"
)

const (
	linkBaud        = 2_000_000
	writeTimeout    = 2 * time.Second
	defaultReadWait = 5 * time.Second
)

// Link wraps a raw serial handle with line-oriented, history-recording I/O.
// All writes go through writeMu; reads are served by a single background
// goroutine so that ReadLine's deadline never blocks a concurrent Write.
type Link struct {
	port   *serial.Port
	hist   *History
	device string
	typ    devicetype.Type

	writeMu sync.Mutex

	lines  chan string
	closed chan struct{}
	once   sync.Once
}

// Open opens device at the fixed protocol baud rate and starts the
// background read loop. The caller owns the returned Link and must Close it.
func Open(device string, typ devicetype.Type, hist *History) (*Link, error) {
	cfg := &serial.Config{Name: device, Baud: linkBaud, ReadTimeout: 100 * time.Millisecond}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		hist.Record(System, fmt.Sprintf("open %s failed: %v", device, err))
		return nil, apierr.Wrap(apierr.NotConnected, fmt.Sprintf("open %s", device), err).
			WithHint("press RESET")
	}

	l := &Link{
		port:   port,
		hist:   hist,
		device: device,
		typ:    typ,
		lines:  make(chan string, 64),
		closed: make(chan struct{}),
	}
	hist.Record(System, fmt.Sprintf("connected %s", device))
	go l.readLoop()
	return l, nil
}

// readLoop owns the port's read side exclusively and pushes decoded,
// trailing-whitespace-stripped lines onto l.lines until the link is closed.
func (l *Link) readLoop() {
	r := bufio.NewReader(l.port)
	for {
		select {
		case <-l.closed:
			return
		default:
		}

		raw, err := r.ReadString('\n')
		if err != nil {
			if len(raw) == 0 {
				continue // read timeout with no data yet; keep polling
			}
		}
		if raw == "" {
			continue
		}
		line := strings.TrimRight(raw, "\r\n")
		if line == "" {
			continue
		}
		if !utf8.ValidString(line) {
			line = strings.ToValidUTF8(line, "�")
		}

		select {
		case l.lines <- line:
		case <-l.closed:
			return
		}
	}
}

// WriteLine appends "\n", writes it, and records it as sent. Lines that
// start with HEARTBEAT are written but not recorded in history.
func (l *Link) WriteLine(text string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	_ = l.port.Flush()
	deadline := time.Now().Add(writeTimeout)
	if _, err := l.port.Write([]byte(text + "\n")); err != nil {
		l.hist.Record(System, fmt.Sprintf("write error: %v", err))
		return apierr.Wrap(apierr.DeviceError, "write", err)
	}
	if time.Now().After(deadline) {
		return apierr.New(apierr.TimeoutExceeded, "write timed out")
	}
	if !isHeartbeatLine(text) {
		l.hist.Record(Sent, text)
	}
	return nil
}

// ReadLine blocks for at most deadline for a complete line. It returns an
// empty string, with no error, if the deadline passes without one.
func (l *Link) ReadLine(deadline time.Duration) (string, error) {
	if deadline <= 0 {
		deadline = defaultReadWait
	}
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case line := <-l.lines:
		if !isHeartbeatLine(line) {
			l.hist.Record(Received, line)
		}
		return line, nil
	case <-timer.C:
		return "", nil
	case <-l.closed:
		return "", apierr.New(apierr.NotConnected, "link closed")
	}
}

// Drain reads and records every line already buffered, without blocking for
// more.
func (l *Link) Drain() []string {
	var out []string
	for {
		select {
		case line := <-l.lines:
			if !isHeartbeatLine(line) {
				l.hist.Record(Received, line)
			}
			out = append(out, line)
		default:
			return out
		}
	}
}

// Close sends a best-effort idle command appropriate to the device type,
// then releases the handle. Errors sending the idle command are ignored:
// the port is going away regardless.
func (l *Link) Close() error {
	var err error
	l.once.Do(func() {
		idleCmd := "LED:OFF"
		if l.typ == devicetype.LDPC {
			idleCmd = "LED:IDLE"
		}
		l.writeMu.Lock()
		_, _ = l.port.Write([]byte(idleCmd + "\n"))
		l.writeMu.Unlock()

		close(l.closed)
		l.hist.Record(System, fmt.Sprintf("disconnected %s", l.device))
		err = l.port.Close()
	})
	return err
}

func isHeartbeatLine(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "HEARTBEAT")
}
