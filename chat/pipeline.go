package chat

import (
	"context"
	"sync"
	"time"

	"polmem/process"
	"polmem/property"
	"polmem/sink"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/benbjohnson/clock"
)

// PipelineConfig sets the debounce timing and buffer sizes.
type PipelineConfig struct {
	QuietPeriod   time.Duration
	WaiterPoll    time.Duration
	QueueCapacity int
	HistorySize   int
	Path          string
}

type chatState struct {
	queue       []Message
	history     []Message
	lastArrival time.Time
	waiting     bool
}

// Pipeline queues accepted messages per process and flushes each queue once
// it has been quiet for QuietPeriod. At most one waiter runs per process.
type Pipeline struct {
	cfg      PipelineConfig
	identity property.Identity
	out      property.Deliverer
	clock    clock.Clock
	log      *logger.Logger

	mu      sync.Mutex
	states  map[process.ProcessID]*chatState
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPipeline(cfg PipelineConfig, identity property.Identity, out property.Deliverer, clk clock.Clock) *Pipeline {
	if cfg.QueueCapacity < 1 {
		cfg.QueueCapacity = 100
	}
	if cfg.HistorySize < 1 {
		cfg.HistorySize = 100
	}
	if cfg.WaiterPoll <= 0 {
		cfg.WaiterPoll = 100 * time.Millisecond
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Pipeline{
		cfg:      cfg,
		identity: identity,
		out:      out,
		clock:    clk,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPink, coloransi.ColorIndigo, "chat")),
		states:   make(map[process.ProcessID]*chatState),
	}
}

// Start enables delivery. Calling it while running does nothing.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.running = true
	p.log.Infoln("Chat monitoring started")
}

// Stop signals every waiter and waits for them to exit. Waiters exit without
// flushing; queued messages stay queued for the next Start.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Infoln("Chat monitoring stopped")
}

func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Accept queues msg for pid. Unknown messages are dropped. Returns whether
// the message was queued.
func (p *Pipeline) Accept(pid process.ProcessID, msg Message) bool {
	if msg.Type == Unknown {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return false
	}

	st, ok := p.states[pid]
	if !ok {
		st = &chatState{}
		p.states[pid] = st
	}

	if len(st.queue) >= p.cfg.QueueCapacity {
		st.queue = st.queue[len(st.queue)-p.cfg.QueueCapacity+1:]
	}
	st.queue = append(st.queue, msg)

	if len(st.history) >= p.cfg.HistorySize {
		st.history = st.history[len(st.history)-p.cfg.HistorySize+1:]
	}
	st.history = append(st.history, msg)

	st.lastArrival = p.clock.Now()
	if !st.waiting {
		st.waiting = true
		p.wg.Add(1)
		go p.wait(p.ctx, pid, st)
	}
	return true
}

// wait polls until pid has been quiet for QuietPeriod, then drains and
// delivers the queue. It exits without flushing on shutdown or when the
// state was forgotten.
func (p *Pipeline) wait(ctx context.Context, pid process.ProcessID, st *chatState) {
	defer p.wg.Done()

	ticker := p.clock.Ticker(p.cfg.WaiterPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			st.waiting = false
			p.mu.Unlock()
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		if p.states[pid] != st {
			st.waiting = false
			p.mu.Unlock()
			return
		}
		if p.clock.Since(st.lastArrival) < p.cfg.QuietPeriod {
			p.mu.Unlock()
			continue
		}
		batch := st.queue
		st.queue = nil
		st.waiting = false
		p.mu.Unlock()

		p.deliver(pid, batch)
		return
	}
}

func (p *Pipeline) deliver(pid process.ProcessID, batch []Message) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn("chat delivery for PID ", pid, " panicked: ", r)
		}
	}()

	if len(batch) == 0 {
		return
	}

	name := sink.SanitizeName(p.identity.PlayerName(pid))
	id, ok := p.identity.PlayerID(pid)
	if name == sink.UnknownName || !ok {
		p.log.Infoln("Skipping", len(batch), "chat messages for unidentified PID", pid)
		return
	}

	for _, group := range groupByType(batch) {
		payload := sink.ChatBatch{
			Name:     name,
			ID:       id,
			Type:     group[0].Type.String(),
			Messages: make([]sink.ChatLine, 0, len(group)),
		}
		for i, m := range group {
			payload.Messages = append(payload.Messages, sink.ChatLine{
				Index:     i + 1,
				Sender:    m.Sender,
				Message:   m.Body,
				Type:      m.Type.String(),
				Timestamp: m.Timestamp.Unix(),
				Raw:       m.Raw,
			})
		}

		p.log.Infoln("Flushing", len(group), payload.Type, "messages for", name, "( PID", pid, ")")
		if p.out == nil {
			continue
		}
		if err := p.out.Send(p.cfg.Path, payload); err != nil {
			p.log.Warn("chat delivery for ", name, " failed: ", err)
		}
	}
}

// groupByType splits batch by type, groups ordered by first appearance.
func groupByType(batch []Message) [][]Message {
	index := make(map[MessageType]int)
	var groups [][]Message
	for _, m := range batch {
		i, ok := index[m.Type]
		if !ok {
			i = len(groups)
			index[m.Type] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], m)
	}
	return groups
}

// Recent returns up to n of the latest accepted messages for pid, oldest
// first. It does not touch the delivery queue.
func (p *Pipeline) Recent(pid process.ProcessID, n int) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.states[pid]
	if !ok || n <= 0 {
		return nil
	}
	h := st.history
	if n < len(h) {
		h = h[len(h)-n:]
	}
	return append([]Message(nil), h...)
}

// Pending returns the number of queued, undelivered messages for pid.
func (p *Pipeline) Pending(pid process.ProcessID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.states[pid]; ok {
		return len(st.queue)
	}
	return 0
}

// Forget drops queue and history for pid. A running waiter for it exits on
// its next poll without delivering.
func (p *Pipeline) Forget(pid process.ProcessID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.states, pid)
}
