package property

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"polmem/process"
	"polmem/registry"
	"polmem/sink"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v5"
)

// ResolverConfig bounds identity retries on a freshly attached client.
type ResolverConfig struct {
	Stabilization  time.Duration
	Attempts       int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Jitter         float64
}

type pendingIdentity struct {
	target  registry.Target
	attempt int
	next    time.Time
	backoff *backoff.ExponentialBackOff
}

// IdentityResolver reads the static identity properties of new clients.
// A freshly launched client may not have loaded its character yet, so the
// first read waits for a stabilization delay and failures are retried on an
// exponential schedule. Attempts run from Tick on the scheduler goroutine;
// nothing here sleeps.
type IdentityResolver struct {
	name  *PlayerName
	id    *PlayerID
	cfg   ResolverConfig
	clock clock.Clock
	log   *logger.Logger

	mu      sync.Mutex
	pending map[process.ProcessID]*pendingIdentity
}

var _ Identity = (*IdentityResolver)(nil)

func NewIdentityResolver(name *PlayerName, id *PlayerID, cfg ResolverConfig, c clock.Clock) *IdentityResolver {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if c == nil {
		c = clock.New()
	}
	return &IdentityResolver{
		name:    name,
		id:      id,
		cfg:     cfg,
		clock:   c,
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorPink, coloransi.ColorIndigo, "identity")),
		pending: make(map[process.ProcessID]*pendingIdentity),
	}
}

// Schedule queues t for resolution after the stabilization delay.
func (r *IdentityResolver) Schedule(t registry.Target) {
	r.scheduleAt(t, r.clock.Now().Add(r.cfg.Stabilization))
}

func (r *IdentityResolver) scheduleAt(t registry.Target, at time.Time) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.BackoffInitial
	b.MaxInterval = r.cfg.BackoffMax
	b.RandomizationFactor = r.cfg.Jitter
	b.Reset()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[t.PID] = &pendingIdentity{target: t, next: at, backoff: b}
}

// Tick runs every attempt that is due.
func (r *IdentityResolver) Tick(ctx context.Context) {
	now := r.clock.Now()

	r.mu.Lock()
	var due []*pendingIdentity
	for _, p := range r.pending {
		if !now.Before(p.next) {
			due = append(due, p)
		}
	}
	r.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].target.PID < due[j].target.PID })
	for _, p := range due {
		r.attempt(ctx, p)
	}
}

func (r *IdentityResolver) attempt(ctx context.Context, p *pendingIdentity) {
	pid := p.target.PID
	err := r.resolve(ctx, p.target)

	r.mu.Lock()
	defer r.mu.Unlock()

	// Forgotten while we were reading
	if r.pending[pid] != p {
		return
	}

	p.attempt++
	switch {
	case err == nil:
		delete(r.pending, pid)
		r.log.Infoln("PID", pid, "is", r.name.Get(pid))
	case p.attempt >= r.cfg.Attempts:
		delete(r.pending, pid)
		r.log.Warn("PID ", pid, ": identity unresolved after ", p.attempt, " attempts, keeping ", sink.UnknownName, ": ", err)
	default:
		p.next = r.clock.Now().Add(p.backoff.NextBackOff())
		r.log.Debugln("PID", pid, "identity attempt", p.attempt, "failed:", err)
	}
}

// resolve refreshes both identity properties and settles their change flags.
// They are not on the periodic schedule, so nothing else reports or
// acknowledges them.
func (r *IdentityResolver) resolve(ctx context.Context, t registry.Target) error {
	nameErr := r.name.Refresh(ctx, t)
	idErr := r.id.Refresh(ctx, t)
	for _, p := range []Property{r.name, r.id} {
		if !p.HasChanged(t.PID) {
			continue
		}
		if err := p.ReportChange(ctx, t.PID); err != nil {
			r.log.Warn(p.Name(), " report for PID ", t.PID, " failed: ", err)
		}
		p.AcknowledgeChange(t.PID)
	}
	return errors.Join(nameErr, idErr)
}

// ForceRefresh re-reads identity for every target now. Targets that fail
// are handed back to the retry schedule.
func (r *IdentityResolver) ForceRefresh(ctx context.Context, targets []registry.Target) error {
	var errs []error
	for _, t := range targets {
		if err := r.resolve(ctx, t); err != nil {
			errs = append(errs, err)
			r.scheduleAt(t, r.clock.Now())
			continue
		}
		r.mu.Lock()
		delete(r.pending, t.PID)
		r.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Pending reports whether pid still awaits resolution.
func (r *IdentityResolver) Pending(pid process.ProcessID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[pid]
	return ok
}

func (r *IdentityResolver) Forget(pid process.ProcessID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, pid)
}

func (r *IdentityResolver) PlayerName(pid process.ProcessID) string {
	return r.name.Get(pid)
}

func (r *IdentityResolver) PlayerID(pid process.ProcessID) (uint32, bool) {
	return r.id.Get(pid)
}

// Resolved reports whether pid has a usable name.
func (r *IdentityResolver) Resolved(pid process.ProcessID) bool {
	return r.name.Get(pid) != sink.UnknownName
}
