package process

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// ResolveChain walks a pointer chain starting at base.
// For every offset it reads a pointer-sized value at the current address and
// sets current = value + offset. The final address is returned without a
// further dereference; the caller reads its value there.
// Any failed or null read fails the whole chain. Nothing is cached: pointers
// move between reads, so callers resolve on every refresh.
func ResolveChain(proc Process, base ProcessMemoryAddress, pointerSize ProcessMemorySize, offsets ...ProcessMemorySize) (ProcessMemoryAddress, error) {
	if proc == nil {
		return 0, ErrProcessNotOpen
	}

	current := base
	for i, off := range offsets {
		ptr, err := ReadPointer(proc, current, pointerSize)
		if err != nil {
			return 0, fmt.Errorf("failed to read pointer at level %d (addr %s): %w", i, current.ToString(), err)
		}
		if ptr == 0 {
			return 0, fmt.Errorf("pointer at level %d (addr %s) is null: %w", i, current.ToString(), ErrInvalidPointer)
		}
		current = ptr + ProcessMemoryAddress(off)
	}

	return current, nil
}

// ResolveModuleChain resolves chain relative to moduleBase.
func ResolveModuleChain(proc Process, moduleBase ProcessMemoryAddress, pointerSize ProcessMemorySize, chain Chain) (ProcessMemoryAddress, error) {
	return ResolveChain(proc, moduleBase+ProcessMemoryAddress(chain.Base), pointerSize, chain.Offsets...)
}

// ReadPointer reads a 4- or 8-byte little endian pointer.
func ReadPointer(proc Process, addr ProcessMemoryAddress, pointerSize ProcessMemorySize) (ProcessMemoryAddress, error) {
	switch pointerSize {
	case 4:
		v, err := Read[uint32](proc, addr)
		return ProcessMemoryAddress(v), err
	case 8:
		v, err := Read[uint64](proc, addr)
		return ProcessMemoryAddress(v), err
	default:
		return 0, fmt.Errorf("unsupported pointer size %d", pointerSize)
	}
}

// ReadPath resolves chain relative to moduleBase and reads a T at the final address.
func ReadPath[T any](proc Process, moduleBase ProcessMemoryAddress, pointerSize ProcessMemorySize, chain Chain) (T, error) {
	addr, err := ResolveModuleChain(proc, moduleBase, pointerSize, chain)
	if err != nil {
		var zero T
		return zero, err
	}

	val, err := Read[T](proc, addr)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to read final value at %s: %w", addr.ToString(), err)
	}
	return val, nil
}

// ReadBytesPath resolves chain relative to moduleBase and reads size bytes at the final address.
func ReadBytesPath(proc Process, moduleBase ProcessMemoryAddress, pointerSize ProcessMemorySize, chain Chain, size ProcessMemorySize) ([]byte, error) {
	addr, err := ResolveModuleChain(proc, moduleBase, pointerSize, chain)
	if err != nil {
		return nil, err
	}

	data, err := proc.ReadMemory(addr, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read %d bytes at %s: %w", size, addr.ToString(), err)
	}
	return data, nil
}

// Read is a helper to read a single fixed-size value of type T from memory.
// T must be a plain value type; the target is assumed little endian.
func Read[T any](proc Process, addr ProcessMemoryAddress) (T, error) {
	var t T
	size := ProcessMemorySize(unsafe.Sizeof(t))
	if size == 0 {
		return t, nil
	}

	data, err := proc.ReadMemory(addr, size)
	if err != nil {
		return t, err
	}
	if ProcessMemorySize(len(data)) < size {
		return t, ErrPartialRead
	}

	switch p := any(&t).(type) {
	case *uint32:
		*p = binary.LittleEndian.Uint32(data)
	case *int32:
		*p = int32(binary.LittleEndian.Uint32(data))
	case *uint64:
		*p = binary.LittleEndian.Uint64(data)
	case *int64:
		*p = int64(binary.LittleEndian.Uint64(data))
	case *uint16:
		*p = binary.LittleEndian.Uint16(data)
	default:
		copyTo(&t, data)
	}
	return t, nil
}

// copyTo copies bytes to *T
func copyTo[T any](dst *T, src []byte) {
	size := int(unsafe.Sizeof(*dst))
	if len(src) < size {
		return
	}

	dstBytes := unsafe.Slice((*byte)(unsafe.Pointer(dst)), size)
	copy(dstBytes, src)
}
