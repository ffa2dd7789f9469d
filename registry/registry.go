// Package registry tracks the live game client processes.
//
// A candidate moves Discovered -> Attached (handle open) -> Valid (both module
// bases resolved). Only Valid targets are stored. A target whose liveness
// probe fails is closed once, removed, and purged from every Purger.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"polmem/process"
	"polmem/telemetry"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
)

// ErrNotTracked is returned for a PID the registry does not hold.
var ErrNotTracked = errors.New("process not tracked")

// Target is one attached client. Copies handed out by the registry share
// the underlying handle, which only the registry closes.
type Target struct {
	PID        process.ProcessID
	Proc       process.Process
	ExeBase    process.ProcessMemoryAddress
	ModuleBase process.ProcessMemoryAddress
	Valid      bool
	AttachedAt time.Time
}

// Purger drops all per-process state for pid.
type Purger interface {
	Forget(pid process.ProcessID)
}

// ScanResult lists what one Scan changed.
type ScanResult struct {
	Attached []process.ProcessID
	Evicted  []process.ProcessID
}

type Registry struct {
	helper     process.ProcessHelper
	executable string
	module     string
	clock      clock.Clock
	log        *logger.Logger

	mu       sync.Mutex
	targets  map[process.ProcessID]*Target
	purgers  []Purger
	onAttach []func(Target)
	onEvict  []func(process.ProcessID)
}

type Option func(*Registry)

func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// New creates a registry for clients named executable that have module loaded.
func New(helper process.ProcessHelper, executable, module string, options ...Option) *Registry {
	r := &Registry{
		helper:     helper,
		executable: executable,
		module:     module,
		clock:      clock.New(),
		log:        logger.NewLogger(coloransi.Color(coloransi.ColorLimeGreen, coloransi.ColorIndigo, "registry")),
		targets:    make(map[process.ProcessID]*Target),
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// AddPurger registers state to purge on eviction.
func (r *Registry) AddPurger(p Purger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgers = append(r.purgers, p)
}

// OnAttach registers fn to run after a target becomes Valid.
func (r *Registry) OnAttach(fn func(Target)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAttach = append(r.onAttach, fn)
}

// OnEvict registers fn to run after a target was closed and purged.
func (r *Registry) OnEvict(fn func(process.ProcessID)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvict = append(r.onEvict, fn)
}

// Scan evicts dead targets, then attaches new matching processes.
// Attachment failures are not errors: the candidate is retried next scan.
func (r *Registry) Scan(ctx context.Context) (ScanResult, error) {
	_, span := telemetry.Tracer().Start(ctx, "registry.scan")
	defer span.End()

	var res ScanResult
	res.Evicted = r.evictDead()

	found, err := r.helper.FindProcessByName(r.executable)
	if err != nil {
		span.RecordError(err)
		return res, fmt.Errorf("find %s: %w", r.executable, err)
	}

	for _, info := range found {
		if r.tracked(info.PID) {
			continue
		}
		t, err := r.attach(info.PID)
		if err != nil {
			r.log.Debugln("Attach", info.PID, "failed:", err)
			continue
		}

		r.mu.Lock()
		r.targets[t.PID] = t
		hooks := append([]func(Target){}, r.onAttach...)
		r.mu.Unlock()

		r.log.Infoln("Attached", info.PID, "module base", t.ModuleBase.ToString())
		res.Attached = append(res.Attached, t.PID)
		for _, fn := range hooks {
			fn(*t)
		}
	}

	span.SetAttributes(
		attribute.Int("registry.attached", len(res.Attached)),
		attribute.Int("registry.evicted", len(res.Evicted)),
		attribute.Int("registry.tracked", r.Len()),
	)
	return res, nil
}

func (r *Registry) attach(pid process.ProcessID) (*Target, error) {
	proc, err := r.helper.NewWithPID(pid)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	exeBase, err := proc.ModuleBase(r.executable)
	if err != nil {
		proc.Close()
		return nil, fmt.Errorf("resolve %s: %w", r.executable, err)
	}

	modBase, err := proc.ModuleBase(r.module)
	if err != nil {
		proc.Close()
		return nil, fmt.Errorf("resolve %s: %w", r.module, err)
	}

	return &Target{
		PID:        pid,
		Proc:       proc,
		ExeBase:    exeBase,
		ModuleBase: modBase,
		Valid:      true,
		AttachedAt: r.clock.Now(),
	}, nil
}

// evictDead probes every target outside the lock and removes the dead ones.
func (r *Registry) evictDead() []process.ProcessID {
	var dead []*Target
	for _, t := range r.snapshotPtrs() {
		if !t.Proc.IsRunning() {
			dead = append(dead, t)
		}
	}
	if len(dead) == 0 {
		return nil
	}

	var evicted []process.ProcessID
	for _, t := range dead {
		if !r.remove(t) {
			continue
		}
		evicted = append(evicted, t.PID)
	}
	return evicted
}

// remove takes t out of the map, closes it and purges its state. It reports
// false if t was already removed, so a handle is never closed twice.
func (r *Registry) remove(t *Target) bool {
	r.mu.Lock()
	if cur, ok := r.targets[t.PID]; !ok || cur != t {
		r.mu.Unlock()
		return false
	}
	delete(r.targets, t.PID)
	t.Valid = false
	purgers := append([]Purger{}, r.purgers...)
	hooks := append([]func(process.ProcessID){}, r.onEvict...)
	r.mu.Unlock()

	if err := t.Proc.Close(); err != nil {
		r.log.Warn("Close ", t.PID, ": ", err)
	}
	for _, p := range purgers {
		p.Forget(t.PID)
	}
	for _, fn := range hooks {
		fn(t.PID)
	}

	r.log.Infoln("Evicted", t.PID)
	return true
}

func (r *Registry) tracked(pid process.ProcessID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.targets[pid]
	return ok
}

func (r *Registry) snapshotPtrs() []*Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Target, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t)
	}
	return out
}

// Snapshot returns copies of all Valid targets ordered by PID. Callers do
// their foreign-process I/O on the copies, outside the registry lock.
func (r *Registry) Snapshot() []Target {
	r.mu.Lock()
	out := make([]Target, 0, len(r.targets))
	for _, t := range r.targets {
		if t.Valid {
			out = append(out, *t)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// PIDs returns the tracked process ids in ascending order.
func (r *Registry) PIDs() []process.ProcessID {
	snap := r.Snapshot()
	out := make([]process.ProcessID, len(snap))
	for i, t := range snap {
		out[i] = t.PID
	}
	return out
}

func (r *Registry) Get(pid process.ProcessID) (Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.targets[pid]
	if !ok || !t.Valid {
		return Target{}, fmt.Errorf("%d: %w", pid, ErrNotTracked)
	}
	return *t, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.targets)
}

// Close releases every handle and purges all state.
func (r *Registry) Close() {
	for _, t := range r.snapshotPtrs() {
		r.remove(t)
	}
}
