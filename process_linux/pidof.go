//go:build linux

package process_linux

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"polmem/process"
)

// ListByName returns all processes whose comm or exe basename equals name.
// Matching is case-insensitive: Wine reports "pol.exe" while users type "POL.EXE".
func ListByName(name string) ([]process.ProcessInfo, error) {
	if name == "" {
		return nil, errors.New("empty name")
	}

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("read /proc: %w", err)
	}

	selfPID := os.Getpid()
	var out []process.ProcessInfo

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 || pid == selfPID {
			continue
		}

		// comm is truncated to 15 bytes by the kernel
		comm, _ := os.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
		comm = bytesTrimNL(comm)
		if len(comm) > 0 && strings.EqualFold(string(comm), name) {
			out = append(out, process.ProcessInfo{PID: process.ProcessID(pid), Name: string(comm)})
			continue
		}

		// Resolve /proc/<pid>/exe symlink; may fail if zombie or permission
		exe, _ := os.Readlink(filepath.Join("/proc", e.Name(), "exe"))
		if exe != "" && strings.EqualFold(filepath.Base(exe), name) {
			out = append(out, process.ProcessInfo{PID: process.ProcessID(pid), Name: filepath.Base(exe)})
			continue
		}

		// Wine loaders keep the Windows image as argv[0]
		cmdline, _ := os.ReadFile(filepath.Join("/proc", e.Name(), "cmdline"))
		if argv0, _, _ := bytes.Cut(cmdline, []byte{0}); len(argv0) > 0 {
			base := filepath.Base(strings.ReplaceAll(string(argv0), `\`, "/"))
			if strings.EqualFold(base, name) {
				out = append(out, process.ProcessInfo{PID: process.ProcessID(pid), Name: base})
			}
		}
	}

	return out, nil
}

// ----- helpers -----

func procExists(pid int) bool {
	// Fast path: stat /proc/<pid>
	_, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid)))
	if err == nil {
		return true
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	// For transient errors (permission, EIO): fall back to kill 0
	return syscall.Kill(pid, 0) == nil
}

// readStartTime returns field 22 of /proc/<pid>/stat (start time in clock ticks).
func readStartTime(pid int) (uint64, error) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, err
	}
	return parseStartTime(data)
}

func parseStartTime(stat []byte) (uint64, error) {
	// comm may contain spaces and parens; fields resume after the last ')'
	idx := bytes.LastIndexByte(stat, ')')
	if idx < 0 {
		return 0, errors.New("malformed stat")
	}
	fields := strings.Fields(string(stat[idx+1:]))
	// fields[0] is state (field 3), start time is field 22
	const startTimeIdx = 22 - 3
	if len(fields) <= startTimeIdx {
		return 0, errors.New("short stat")
	}
	return strconv.ParseUint(fields[startTimeIdx], 10, 64)
}

func bytesTrimNL(b []byte) []byte {
	// Trim trailing '\n' if present (comm has a newline).
	for len(b) > 0 {
		switch b[len(b)-1] {
		case '\n', '\r', ' ', '\t':
			b = b[:len(b)-1]
		default:
			return b
		}
	}
	return b
}
