package process_blob

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"sync"

	"polmem/process"
)

// heapBase is where PlantChain starts allocating simulated heap regions.
const heapBase process.ProcessMemoryAddress = 0x20000000

// ProcessDump implements process.Process over in-memory blobs. It stands in
// for a live client: memory can be rewritten, reads can be failed, and the
// process can be killed between scheduler ticks.
type ProcessDump struct {
	mu      sync.Mutex
	pid     process.ProcessID
	name    string
	blobs   []*ProcessBlob
	modules map[string]process.ProcessMemoryAddress
	heap    process.ProcessMemoryAddress
	open    bool
	running bool
	closes  int
	reads   int
	readErr error
}

var _ process.Process = (*ProcessDump)(nil)

// NewProcessDump creates a running, unopened simulated process.
func NewProcessDump(pid process.ProcessID, name string) *ProcessDump {
	return &ProcessDump{
		pid:     pid,
		name:    name,
		modules: make(map[string]process.ProcessMemoryAddress),
		heap:    heapBase,
		running: true,
	}
}

func (p *ProcessDump) Name() string {
	return p.name
}

func (p *ProcessDump) Open(pid process.ProcessID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return fmt.Errorf("process with PID %d does not exist", pid)
	}
	if pid != p.pid {
		return fmt.Errorf("process with PID %d does not exist", pid)
	}
	p.open = true
	return nil
}

// Close counts every call so tests can assert a handle is closed once.
func (p *ProcessDump) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closes++
	if !p.open {
		return process.ErrProcessNotOpen
	}
	p.open = false
	return nil
}

func (p *ProcessDump) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return 0
	}
	return p.pid
}

func (p *ProcessDump) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reads++
	if !p.open {
		return nil, process.ErrProcessNotOpen
	}
	if !p.running {
		return nil, fmt.Errorf("process %d exited: %w", p.pid, process.ErrAddressNotMapped)
	}
	if p.readErr != nil {
		return nil, p.readErr
	}
	if size == 0 {
		return []byte{}, nil
	}

	blob := p.findBlob(addr, size)
	if blob == nil {
		return nil, fmt.Errorf("%s+%d: %w", addr.ToString(), size, process.ErrAddressNotMapped)
	}
	return blob.ReadMemory(addr, size)
}

func (p *ProcessDump) ModuleBase(name string) (process.ProcessMemoryAddress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return 0, process.ErrProcessNotOpen
	}
	base, ok := p.modules[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, process.ErrModuleNotFound)
	}
	return base, nil
}

func (p *ProcessDump) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open && p.running
}

// ----- simulation controls -----

// SetModule registers a loaded module at base.
func (p *ProcessDump) SetModule(name string, base process.ProcessMemoryAddress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modules[strings.ToLower(name)] = base
}

// Map adds a region backed by data. Regions must not overlap.
func (p *ProcessDump) Map(base process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mapLocked(base, data)
}

func (p *ProcessDump) mapLocked(base process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	blob := NewProcessBlob(base, data)
	p.blobs = append(p.blobs, blob)
	sort.Slice(p.blobs, func(i, j int) bool {
		return p.blobs[i].baseaddress < p.blobs[j].baseaddress
	})
	return blob
}

// Write copies data into already mapped memory.
func (p *ProcessDump) Write(addr process.ProcessMemoryAddress, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	blob := p.findBlob(addr, process.ProcessMemorySize(len(data)))
	if blob == nil {
		return fmt.Errorf("%s: %w", addr.ToString(), process.ErrAddressNotMapped)
	}
	return blob.WriteMemory(addr, data)
}

func (p *ProcessDump) WriteUint32(addr process.ProcessMemoryAddress, v uint32) error {
	return p.Write(addr, binary.LittleEndian.AppendUint32(nil, v))
}

func (p *ProcessDump) WritePointer(addr, v process.ProcessMemoryAddress, pointerSize process.ProcessMemorySize) error {
	return p.Write(addr, EncodePointer(v, pointerSize))
}

// PlantChain lays out heap regions so chain resolves from moduleBase and
// returns the final address, which has room for size bytes.
func (p *ProcessDump) PlantChain(moduleBase process.ProcessMemoryAddress, pointerSize process.ProcessMemorySize, chain process.Chain, size process.ProcessMemorySize) (process.ProcessMemoryAddress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := moduleBase + process.ProcessMemoryAddress(chain.Base)
	if p.findBlob(current, pointerSize) == nil {
		p.mapLocked(current, make([]byte, pointerSize))
	}

	for _, off := range chain.Offsets {
		regionSize := uint64(off) + uint64(max(size, pointerSize))
		region := p.heap
		p.heap += process.ProcessMemoryAddress((regionSize + 0xFFFF) &^ 0xFFFF)
		p.mapLocked(region, make([]byte, regionSize))

		if err := p.findBlob(current, pointerSize).WriteMemory(current, EncodePointer(region, pointerSize)); err != nil {
			return 0, err
		}
		current = region + process.ProcessMemoryAddress(off)
	}
	return current, nil
}

// Kill makes the process report itself as exited.
func (p *ProcessDump) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
}

// FailReads makes every read return err until called with nil.
func (p *ProcessDump) FailReads(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

func (p *ProcessDump) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

func (p *ProcessDump) ReadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

func (p *ProcessDump) findBlob(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) *ProcessBlob {
	i := sort.Search(len(p.blobs), func(i int) bool {
		b := p.blobs[i]
		return uint64(b.baseaddress)+uint64(len(b.data)) > uint64(addr)
	})
	if i < len(p.blobs) && p.blobs[i].Contains(addr, size) {
		return p.blobs[i]
	}
	return nil
}
