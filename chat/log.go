package chat

import (
	"context"
	"fmt"
	"sync"

	"polmem/process"
	"polmem/property"
	"polmem/registry"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/benbjohnson/clock"
)

// Log is the streaming chat property. Each Refresh polls the source, parses
// new lines and hands them to the pipeline. It never reports a change of its
// own; delivery belongs to the pipeline.
type Log struct {
	source   Source
	parser   Parser
	pipeline *Pipeline
	clock    clock.Clock
	log      *logger.Logger

	mu   sync.Mutex
	last map[process.ProcessID]Message
}

var _ property.Property = (*Log)(nil)

func NewLog(source Source, parser Parser, pipeline *Pipeline, clk clock.Clock) *Log {
	if parser == nil {
		parser = LineParser{}
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Log{
		source:   source,
		parser:   parser,
		pipeline: pipeline,
		clock:    clk,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPink, coloransi.ColorIndigo, "chat-log")),
		last:     make(map[process.ProcessID]Message),
	}
}

func (l *Log) Name() string { return "Chat Log" }

// Refresh is a no-op while the pipeline is stopped.
func (l *Log) Refresh(ctx context.Context, t registry.Target) error {
	if !t.Valid {
		return process.ErrProcessNotOpen
	}
	if !l.pipeline.Running() {
		return nil
	}

	lines, err := l.source.Poll(t)
	if err != nil {
		return fmt.Errorf("poll chat: %w", err)
	}

	for _, line := range lines {
		msg, ok := l.parse(line)
		if !ok {
			continue
		}
		if msg.Type == Unknown {
			l.log.Debugln("PID", t.PID, "dropping unparseable line:", msg.Raw)
			continue
		}
		if l.pipeline.Accept(t.PID, msg) {
			l.mu.Lock()
			l.last[t.PID] = msg
			l.mu.Unlock()
		}
	}
	return nil
}

func (l *Log) parse(line string) (msg Message, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Warn("parsing chat line ", line, " panicked: ", r)
			ok = false
		}
	}()
	return l.parser.Parse(line, l.clock.Now()), true
}

func (l *Log) DisplayValue(pid process.ProcessID) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg, ok := l.last[pid]
	if !ok {
		return ""
	}
	if msg.Sender == "" {
		return fmt.Sprintf("[%s] %s", msg.Type, msg.Body)
	}
	return fmt.Sprintf("[%s] %s: %s", msg.Type, msg.Sender, msg.Body)
}

func (l *Log) HasChanged(pid process.ProcessID) bool { return false }

func (l *Log) AcknowledgeChange(pid process.ProcessID) {}

func (l *Log) ReportChange(ctx context.Context, pid process.ProcessID) error { return nil }

// Recent returns up to n latest messages for pid.
func (l *Log) Recent(pid process.ProcessID, n int) []Message {
	return l.pipeline.Recent(pid, n)
}

func (l *Log) Forget(pid process.ProcessID) {
	l.source.Forget(pid)
	l.pipeline.Forget(pid)

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.last, pid)
}
