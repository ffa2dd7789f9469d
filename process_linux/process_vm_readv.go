//go:build linux

package process_linux

import (
	"fmt"
	"unsafe"

	"polmem/process"

	"golang.org/x/sys/unix"
)

// processVMReadv copies size bytes at remoteAddr in pid into a fresh buffer.
// The kernel fails fast with EFAULT/ESRCH, so a dead or unmapped target never blocks.
func processVMReadv(pid process.ProcessID, remoteAddr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	buf := make([]byte, size)

	var localIov unix.Iovec
	localIov.Base = &buf[0]
	localIov.SetLen(int(size))

	remoteIov := unix.RemoteIovec{
		Base: uintptr(remoteAddr),
		Len:  int(size),
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_PROCESS_VM_READV,
		uintptr(pid),
		uintptr(unsafe.Pointer(&localIov)),
		uintptr(1),
		uintptr(unsafe.Pointer(&remoteIov)),
		uintptr(1),
		uintptr(0), // flags are reserved
	)
	if errno != 0 {
		return nil, fmt.Errorf("process_vm_readv failed: %s (errno: %d)", errno.Error(), errno)
	}

	if int(n) != int(size) {
		return buf[:n], fmt.Errorf("%d of %d bytes: %w", n, size, process.ErrPartialRead)
	}

	return buf, nil
}

// ReadMemory reads memory from the process at the specified address
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	pid := p.GetPID()
	if pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	// The low 64K is never mapped
	if addr < 0x10000 {
		return nil, process.ErrAddressNotMapped
	}

	data, err := processVMReadv(pid, addr, size)
	if err != nil {
		return nil, fmt.Errorf("process_vm_readv: failed to read process memory: %w", err)
	}

	return data, nil
}
