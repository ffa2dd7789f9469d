package process_blob

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"polmem/process"
)

// ProcessTable implements process.ProcessHelper over simulated processes.
type ProcessTable struct {
	mu       sync.Mutex
	procs    map[process.ProcessID]*ProcessDump
	openErrs map[process.ProcessID]error
}

var _ process.ProcessHelper = (*ProcessTable)(nil)

func NewProcessTable() *ProcessTable {
	return &ProcessTable{
		procs:    make(map[process.ProcessID]*ProcessDump),
		openErrs: make(map[process.ProcessID]error),
	}
}

// Add publishes p in the table.
func (t *ProcessTable) Add(p *ProcessDump) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.procs[p.pid] = p
}

// Remove drops pid from the table, as if the OS reaped it.
func (t *ProcessTable) Remove(pid process.ProcessID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.procs, pid)
}

// FailOpen makes NewWithPID(pid) fail with err; nil clears it.
func (t *ProcessTable) FailOpen(pid process.ProcessID, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.openErrs, pid)
		return
	}
	t.openErrs[pid] = err
}

func (t *ProcessTable) NewWithPID(pid process.ProcessID) (process.Process, error) {
	t.mu.Lock()
	p, ok := t.procs[pid]
	openErr := t.openErrs[pid]
	t.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("process with PID %d does not exist", pid)
	}
	if openErr != nil {
		return nil, openErr
	}
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}

// FindProcessByName lists running processes, sorted by PID.
func (t *ProcessTable) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []process.ProcessInfo
	for pid, p := range t.procs {
		p.mu.Lock()
		running := p.running
		p.mu.Unlock()
		if running && strings.EqualFold(p.name, name) {
			out = append(out, process.ProcessInfo{PID: pid, Name: p.name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}
