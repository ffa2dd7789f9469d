package chat

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"polmem/hexdump"
	"polmem/process"
	"polmem/registry"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// ErrCaptureUnavailable is returned when no capture instance can be created
// for a process.
var ErrCaptureUnavailable = errors.New("chat capture unavailable")

// ErrLineCount is returned for a capture line count outside 0..maxLineCount.
var ErrLineCount = errors.New("implausible chat line count")

const maxLineCount = 10000

// Source yields new cleaned chat lines for a target on every Poll.
type Source interface {
	Poll(t registry.Target) ([]string, error)
	Forget(pid process.ProcessID)
	Close() error
}

// BufferSource reads the client's fixed-size last-message buffer and reports
// its content whenever it differs from the previous read.
type BufferSource struct {
	pointerSize process.ProcessMemorySize
	chain       process.Chain
	size        process.ProcessMemorySize
	cleaner     Cleaner
	log         *logger.Logger

	mu   sync.Mutex
	last map[process.ProcessID]string
}

var _ Source = (*BufferSource)(nil)

func NewBufferSource(pointerSize process.ProcessMemorySize, chain process.Chain, size process.ProcessMemorySize, cleaner Cleaner) *BufferSource {
	return &BufferSource{
		pointerSize: pointerSize,
		chain:       chain,
		size:        size,
		cleaner:     cleaner,
		log:         logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.ColorIndigo, "chat-buffer")),
		last:        make(map[process.ProcessID]string),
	}
}

func (s *BufferSource) Poll(t registry.Target) ([]string, error) {
	if !t.Valid {
		return nil, process.ErrProcessNotOpen
	}

	raw, err := process.ReadBytesPath(t.Proc, t.ModuleBase, s.pointerSize, s.chain, s.size)
	if err != nil {
		return nil, fmt.Errorf("read chat buffer: %w", err)
	}

	line := s.cleaner.Buffer(raw)
	if line == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last[t.PID] == line {
		return nil, nil
	}
	s.last[t.PID] = line

	if end := bytes.IndexByte(raw, 0); end > 0 {
		s.log.Debugln("PID", t.PID, "chat buffer\n"+hexdump.DumpBytes(raw[:end]))
	}
	return []string{line}, nil
}

func (s *BufferSource) Forget(pid process.ProcessID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.last, pid)
}

func (s *BufferSource) Close() error { return nil }

// CaptureAPI is an external chat capture module. Implementations are not
// reentrant; CaptureSource serializes every call.
type CaptureAPI interface {
	CreateInstance(pid process.ProcessID) (uintptr, error)
	DeleteInstance(handle uintptr)
	LineCount(handle uintptr) (int, error)
	LineRaw(handle uintptr, index int) ([]byte, error)
}

// captureMu guards every call into a CaptureAPI, across all sources.
var captureMu sync.Mutex

type captureInstance struct {
	handle uintptr
	next   int
}

// CaptureSource polls a CaptureAPI for lines appended since the last poll.
// A new instance starts at the line count seen at creation, so history
// written before attach is skipped.
type CaptureSource struct {
	api        CaptureAPI
	maxPerPoll int
	cleaner    Cleaner
	log        *logger.Logger

	instances map[process.ProcessID]*captureInstance
}

var _ Source = (*CaptureSource)(nil)

func NewCaptureSource(api CaptureAPI, maxPerPoll int, cleaner Cleaner) *CaptureSource {
	if maxPerPoll < 1 {
		maxPerPoll = 1
	}
	return &CaptureSource{
		api:        api,
		maxPerPoll: maxPerPoll,
		cleaner:    cleaner,
		log:        logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.ColorIndigo, "chat-capture")),
		instances:  make(map[process.ProcessID]*captureInstance),
	}
}

func (s *CaptureSource) Poll(t registry.Target) ([]string, error) {
	if !t.Valid {
		return nil, process.ErrProcessNotOpen
	}
	if s.api == nil {
		return nil, ErrCaptureUnavailable
	}

	captureMu.Lock()
	defer captureMu.Unlock()

	inst, ok := s.instances[t.PID]
	if !ok {
		handle, err := s.api.CreateInstance(t.PID)
		if err != nil || handle == 0 {
			return nil, fmt.Errorf("pid %d: %w", t.PID, errors.Join(ErrCaptureUnavailable, err))
		}
		count, err := s.lineCount(handle)
		if err != nil {
			s.api.DeleteInstance(handle)
			return nil, err
		}
		inst = &captureInstance{handle: handle, next: count}
		s.instances[t.PID] = inst
		s.log.Infoln("Capture instance created for PID", t.PID, "starting at line", count)
		return nil, nil
	}

	count, err := s.lineCount(inst.handle)
	if err != nil {
		return nil, err
	}
	if count < inst.next {
		// the client cleared its log
		inst.next = count
		return nil, nil
	}

	end := min(count, inst.next+s.maxPerPoll)
	var lines []string
	for ; inst.next < end; inst.next++ {
		raw, err := s.api.LineRaw(inst.handle, inst.next)
		if err != nil {
			s.log.Debugln("PID", t.PID, "line", inst.next, "unreadable:", err)
			continue
		}
		if line := s.cleaner.Line(raw); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (s *CaptureSource) lineCount(handle uintptr) (int, error) {
	count, err := s.api.LineCount(handle)
	if err != nil {
		return 0, fmt.Errorf("line count: %w", err)
	}
	if count < 0 || count > maxLineCount {
		return 0, fmt.Errorf("%d: %w", count, ErrLineCount)
	}
	return count, nil
}

func (s *CaptureSource) Forget(pid process.ProcessID) {
	captureMu.Lock()
	defer captureMu.Unlock()

	if inst, ok := s.instances[pid]; ok {
		s.api.DeleteInstance(inst.handle)
		delete(s.instances, pid)
	}
}

// Close deletes every capture instance.
func (s *CaptureSource) Close() error {
	captureMu.Lock()
	defer captureMu.Unlock()

	for pid, inst := range s.instances {
		s.api.DeleteInstance(inst.handle)
		delete(s.instances, pid)
	}
	return nil
}
