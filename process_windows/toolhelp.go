//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"polmem/process"

	"golang.org/x/sys/windows"
)

// ListByName returns all processes whose image name equals name (case-insensitive).
func ListByName(name string) ([]process.ProcessInfo, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var out []process.ProcessInfo
	for err = windows.Process32First(snap, &entry); err == nil; err = windows.Process32Next(snap, &entry) {
		exe := windows.UTF16ToString(entry.ExeFile[:])
		if strings.EqualFold(exe, name) {
			out = append(out, process.ProcessInfo{PID: process.ProcessID(entry.ProcessID), Name: exe})
		}
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return out, fmt.Errorf("Process32Next: %w", err)
	}
	return out, nil
}

// moduleBase finds a loaded module by name. SNAPMODULE32 is included so a
// 64-bit monitor can see the modules of a 32-bit client.
func moduleBase(pid uint32, name string) (process.ProcessMemoryAddress, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, pid)
	if err != nil {
		return 0, fmt.Errorf("CreateToolhelp32Snapshot(%d): %w", pid, err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	for err = windows.Module32First(snap, &entry); err == nil; err = windows.Module32Next(snap, &entry) {
		if strings.EqualFold(windows.UTF16ToString(entry.Module[:]), name) {
			return process.ProcessMemoryAddress(entry.ModBaseAddr), nil
		}
	}
	return 0, fmt.Errorf("%s: %w", name, process.ErrModuleNotFound)
}
