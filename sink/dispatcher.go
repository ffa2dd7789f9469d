package sink

import (
	"context"
	"errors"
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// ErrQueueFull is returned by Send when the dispatcher cannot accept more work.
var ErrQueueFull = errors.New("delivery queue full")

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("dispatcher closed")

type job struct {
	path    string
	payload any
}

// Dispatcher turns Sink.Post into fire-and-forget delivery. A fixed pool of
// workers drains a bounded queue; callers never wait on the network.
type Dispatcher struct {
	sink   Sink
	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logger.Logger

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(s Sink, queueSize, workers int) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sink:   s,
		jobs:   make(chan job, queueSize),
		ctx:    ctx,
		cancel: cancel,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.ColorIndigo, "sink")),
	}

	d.wg.Add(workers)
	for range workers {
		go d.worker()
	}
	return d
}

// Send queues payload for path. A full queue drops the payload.
func (d *Dispatcher) Send(path string, payload any) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.jobs <- job{path: path, payload: payload}:
		return nil
	default:
		d.log.Warn("Dropping delivery to ", path, ": queue full")
		return ErrQueueFull
	}
}

// Close cancels in-flight requests and waits for the workers to exit.
// Payloads still queued are dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.cancel()
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		if d.ctx.Err() != nil {
			continue
		}
		if err := d.sink.Post(d.ctx, j.path, j.payload); err != nil {
			d.log.Warn("Delivery to ", j.path, " failed: ", err)
		}
	}
}
