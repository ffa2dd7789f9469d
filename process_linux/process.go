//go:build linux

package process_linux

import (
	"fmt"
	"os"
	"sync"

	"polmem/process"
	"polmem/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// LinuxProcess implements the process.Process interface for Linux systems.
// Windows game clients run under Wine, so module lookups go through
// /proc/<pid>/maps and reads through process_vm_readv.
type LinuxProcess struct {
	pid       process.ProcessID
	startTime uint64
	log       *logger.Logger
	mu        sync.Mutex
}

var _ process.Process = (*LinuxProcess)(nil)

// New creates a new LinuxProcess instance
func New() *LinuxProcess {
	return &LinuxProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a new LinuxProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (process.Process, error) {
	p := New()
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *LinuxProcess) Open(pid process.ProcessID) error {
	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procPath); os.IsNotExist(err) {
		return fmt.Errorf("process with PID %d does not exist", pid)
	}

	startTime, err := readStartTime(int(pid))
	if err != nil {
		return fmt.Errorf("read start time for PID %d: %w", pid, err)
	}

	p.mu.Lock()
	p.pid = pid
	p.startTime = startTime
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	p.mu.Unlock()

	p.log.Infoln("Process opened")

	return nil
}

func (p *LinuxProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return process.ErrProcessNotOpen
	}

	p.pid = 0
	p.startTime = 0
	p.log.Infoln("Process closed")
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))

	return nil
}

// GetPID returns the process ID
func (p *LinuxProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// ModuleBase resolves a module load address from the current memory map.
func (p *LinuxProcess) ModuleBase(name string) (process.ProcessMemoryAddress, error) {
	pid := p.GetPID()
	if pid == 0 {
		return 0, process.ErrProcessNotOpen
	}

	mm, err := memory_map.ReadMemoryMap(int(pid))
	if err != nil {
		return 0, fmt.Errorf("failed to read memory map: %w", err)
	}

	base, ok := memory_map.ModuleBase(name, mm)
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, process.ErrModuleNotFound)
	}
	return process.ProcessMemoryAddress(base), nil
}

// IsRunning reports whether the PID still exists and still belongs to the
// process that was opened. A reused PID has a different start time.
func (p *LinuxProcess) IsRunning() bool {
	p.mu.Lock()
	pid, startTime := p.pid, p.startTime
	p.mu.Unlock()

	if pid == 0 || !procExists(int(pid)) {
		return false
	}

	current, err := readStartTime(int(pid))
	if err != nil {
		return false
	}
	return current == startTime
}
