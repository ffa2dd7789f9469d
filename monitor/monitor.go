// Package monitor runs the scheduling loop: periodic registry scans and
// per-property refreshes against every valid target.
//
// One goroutine does all of it, one target after another, so reads against
// a client never race each other. A failing (property, target) pair is
// logged and skipped; it never aborts the tick.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"polmem/property"
	"polmem/registry"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/benbjohnson/clock"
)

// ErrUnknownProperty is returned for a property name that was never registered.
var ErrUnknownProperty = errors.New("unknown property")

// Ticker is driven once per tick, before any property refresh.
type Ticker interface {
	Tick(ctx context.Context)
}

type registration struct {
	prop     property.Property
	interval time.Duration
	last     time.Time
}

// Entry describes one registered property. A zero Interval means the
// property is static and never polled by the loop.
type Entry struct {
	Property property.Property
	Interval time.Duration
}

type Monitor struct {
	registry     *registry.Registry
	clock        clock.Clock
	tick         time.Duration
	scanInterval time.Duration
	log          *logger.Logger

	requests chan request

	mu       sync.Mutex
	regs     []*registration
	tickers  []Ticker
	lastScan time.Time
	scanned  bool
	runDone  chan struct{}
}

type request struct {
	fn   func(ctx context.Context)
	done chan struct{}
}

type Option func(*Monitor)

func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

func New(reg *registry.Registry, tick, scanInterval time.Duration, options ...Option) *Monitor {
	m := &Monitor{
		registry:     reg,
		clock:        clock.New(),
		tick:         tick,
		scanInterval: scanInterval,
		log:          logger.NewLogger(coloransi.Color(coloransi.ColorLimeGreen, coloransi.ColorPurple, "monitor")),
		requests:     make(chan request),
	}
	for _, o := range options {
		o(m)
	}
	if m.tick <= 0 {
		m.tick = 10 * time.Millisecond
	}
	return m
}

// Register adds p with a refresh interval. Use 0 for static properties.
func (m *Monitor) Register(p property.Property, interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs = append(m.regs, &registration{prop: p, interval: interval})
}

// AddTicker adds t to run at the start of every tick.
func (m *Monitor) AddTicker(t Ticker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickers = append(m.tickers, t)
}

// Entries lists the registrations in registration order.
func (m *Monitor) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.regs))
	for i, r := range m.regs {
		out[i] = Entry{Property: r.prop, Interval: r.interval}
	}
	return out
}

// SetInterval changes the refresh interval of the named property.
func (m *Monitor) SetInterval(name string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if r.prop.Name() == name {
			r.interval = d
			m.log.Infoln("Interval of", name, "set to", d)
			return nil
		}
	}
	return fmt.Errorf("%q: %w", name, ErrUnknownProperty)
}

// Run ticks until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	done := make(chan struct{})
	m.mu.Lock()
	if m.runDone != nil {
		m.mu.Unlock()
		return errors.New("monitor already running")
	}
	m.runDone = done
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.runDone = nil
		m.mu.Unlock()
		close(done)
	}()

	ticker := m.clock.Ticker(m.tick)
	defer ticker.Stop()

	m.log.Infoln("Monitor started, tick", m.tick, "scan every", m.scanInterval)
	m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.log.Infoln("Monitor stopped")
			return nil
		case req := <-m.requests:
			m.runRequest(ctx, req)
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Do runs fn on the loop goroutine, between ticks, and waits for it. When
// the loop is not running fn runs on the caller's goroutine.
func (m *Monitor) Do(ctx context.Context, fn func(ctx context.Context)) error {
	m.mu.Lock()
	loopDone := m.runDone
	m.mu.Unlock()

	if loopDone == nil {
		fn(ctx)
		return nil
	}

	req := request{fn: fn, done: make(chan struct{})}
	select {
	case m.requests <- req:
	case <-loopDone:
		fn(ctx)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) runRequest(ctx context.Context, req request) {
	defer close(req.done)
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("request panicked: ", r)
		}
	}()
	req.fn(ctx)
}

// Tick runs one iteration: a registry scan when due, the tickers, then
// every due property against every valid target.
func (m *Monitor) Tick(ctx context.Context) {
	now := m.clock.Now()

	m.mu.Lock()
	scan := !m.scanned || now.Sub(m.lastScan) >= m.scanInterval
	if scan {
		m.scanned = true
		m.lastScan = now
	}
	tickers := append([]Ticker(nil), m.tickers...)
	var due []property.Property
	for _, r := range m.regs {
		if r.interval <= 0 || now.Sub(r.last) < r.interval {
			continue
		}
		r.last = now
		due = append(due, r.prop)
	}
	m.mu.Unlock()

	if scan {
		if _, err := m.registry.Scan(ctx); err != nil {
			m.log.Warn("scan: ", err)
		}
	}
	for _, t := range tickers {
		m.runTicker(ctx, t)
	}
	if len(due) == 0 {
		return
	}

	targets := m.registry.Snapshot()
	for _, p := range due {
		for _, t := range targets {
			if ctx.Err() != nil {
				return
			}
			m.refresh(ctx, p, t)
		}
	}
}

// RefreshProperty refreshes the named property on every valid target now
// and restarts its interval.
func (m *Monitor) RefreshProperty(ctx context.Context, name string) error {
	m.mu.Lock()
	var reg *registration
	for _, r := range m.regs {
		if r.prop.Name() == name {
			reg = r
			break
		}
	}
	if reg == nil {
		m.mu.Unlock()
		return fmt.Errorf("%q: %w", name, ErrUnknownProperty)
	}
	reg.last = m.clock.Now()
	p := reg.prop
	m.mu.Unlock()

	for _, t := range m.registry.Snapshot() {
		m.refresh(ctx, p, t)
	}
	return nil
}

// refresh runs refresh, report, acknowledge for one pair. The change is
// acknowledged only after the report returned.
func (m *Monitor) refresh(ctx context.Context, p property.Property, t registry.Target) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn(p.Name(), " on PID ", t.PID, " panicked: ", r)
		}
	}()

	if err := p.Refresh(ctx, t); err != nil {
		m.log.Debugln(p.Name(), "on PID", t.PID, "skipped:", err)
		return
	}
	if !p.HasChanged(t.PID) {
		return
	}
	if err := p.ReportChange(ctx, t.PID); err != nil {
		m.log.Warn(p.Name(), " report for PID ", t.PID, " failed: ", err)
	}
	p.AcknowledgeChange(t.PID)
}

func (m *Monitor) runTicker(ctx context.Context, t Ticker) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("ticker panicked: ", r)
		}
	}()
	t.Tick(ctx)
}
