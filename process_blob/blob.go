package process_blob

import (
	"encoding/binary"
	"errors"

	"polmem/process"
)

var errOutOfBounds = errors.New("address out of bounds")

// ProcessBlob is one contiguous mapped region of a simulated address space.
type ProcessBlob struct {
	baseaddress process.ProcessMemoryAddress
	data        []byte
}

func NewProcessBlob(baseAddress process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	return &ProcessBlob{
		baseaddress: baseAddress,
		data:        data,
	}
}

func (p *ProcessBlob) Base() process.ProcessMemoryAddress {
	return p.baseaddress
}

func (p *ProcessBlob) Data() []byte {
	return p.data
}

// Contains reports whether [addr, addr+size) lies inside the blob.
func (p *ProcessBlob) Contains(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) bool {
	end := uint64(p.baseaddress) + uint64(len(p.data))
	return addr >= p.baseaddress && uint64(addr)+uint64(size) <= end
}

func (p *ProcessBlob) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if !p.Contains(addr, size) {
		return nil, errOutOfBounds
	}
	offset := addr - p.baseaddress
	out := make([]byte, size)
	copy(out, p.data[offset:uint64(offset)+uint64(size)])
	return out, nil
}

func (p *ProcessBlob) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	if !p.Contains(addr, process.ProcessMemorySize(len(data))) {
		return errOutOfBounds
	}
	copy(p.data[addr-p.baseaddress:], data)
	return nil
}

// EncodePointer encodes v as a little endian pointer of the given width.
func EncodePointer(v process.ProcessMemoryAddress, pointerSize process.ProcessMemorySize) []byte {
	if pointerSize == 8 {
		return binary.LittleEndian.AppendUint64(nil, uint64(v))
	}
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}
