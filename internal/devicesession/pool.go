package devicesession

import (
	"fmt"
	"sync"
	"time"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/devicetype"
	"github.com/bendatsko/dacroq/internal/metrics"
)

const maxIdleTime = 30 * time.Second

// Pool holds at most one live session per device type, per SPEC_FULL.md
// §6.5. A single mutex serializes Acquire and CloseAll; the per-session
// mutex still protects individual I/O.
type Pool struct {
	mu       sync.Mutex
	table    *devicetype.Table
	finder   PortFinder
	sessions map[devicetype.Type]*Session
	lastUsed map[devicetype.Type]time.Time
	metrics  *metrics.HardwareMetrics
}

// SetMetrics attaches the hardware service's metrics; every session the
// pool subsequently creates is wired with it. Nil-safe.
func (p *Pool) SetMetrics(m *metrics.HardwareMetrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = m
	for _, sess := range p.sessions {
		sess.SetMetrics(m)
	}
}

// NewPool builds an empty pool against the given type table and port
// finder.
func NewPool(table *devicetype.Table, finder PortFinder) *Pool {
	return &Pool{
		table:    table,
		finder:   finder,
		sessions: make(map[devicetype.Type]*Session),
		lastUsed: make(map[devicetype.Type]time.Time),
	}
}

// Acquire returns a connected, recently-used session for typ, reconnecting
// or constructing one as needed.
func (p *Pool) Acquire(typ devicetype.Type) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sess, ok := p.sessions[typ]; ok {
		idle := time.Since(p.lastUsed[typ])
		if sess.Connected() && sess.CheckConnection() && idle <= maxIdleTime {
			p.lastUsed[typ] = time.Now()
			return sess, nil
		}
		_ = sess.Close()
		delete(p.sessions, typ)
	}

	cfg, ok := p.table.Get(typ)
	if !ok {
		return nil, apierr.New(apierr.UnknownDevice, fmt.Sprintf("unconfigured device type %q", typ))
	}
	sess := New(typ, cfg, p.finder)
	sess.SetMetrics(p.metrics)
	if err := sess.Connect(""); err != nil {
		return nil, err
	}
	p.sessions[typ] = sess
	p.lastUsed[typ] = time.Now()
	return sess, nil
}

// CloseAll closes every live session. Called on process shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for typ, sess := range p.sessions {
		_ = sess.Close()
		delete(p.sessions, typ)
	}
}

// Connected reports how many of the pool's known device types currently
// have a connected session, satisfying the health package's pool-status
// interface.
func (p *Pool) Connected() (connected, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	total = len(p.table.All())
	for _, sess := range p.sessions {
		if sess.Connected() {
			connected++
		}
	}
	return connected, total
}
