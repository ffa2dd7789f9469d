//go:build linux

package process_linux

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"polmem/process"
)

// Status is a summary of /proc/<pid>/stat and /proc/<pid>/status.
type Status struct {
	PID     process.ProcessID
	PPID    int
	State   string
	Threads int
	VmSize  int64 // KiB
	VmRSS   int64 // KiB
}

func (s Status) String() string {
	return fmt.Sprintf("%s threads=%d rss=%dMiB", s.State, s.Threads, s.VmRSS/1024)
}

// ReadStatus reads the current status of pid.
func ReadStatus(pid process.ProcessID) (Status, error) {
	dir := filepath.Join("/proc", strconv.Itoa(int(pid)))
	st := Status{PID: pid}

	stat, err := os.ReadFile(filepath.Join(dir, "stat"))
	if err != nil {
		return st, err
	}
	if err := parseStat(stat, &st); err != nil {
		return st, fmt.Errorf("parse stat: %w", err)
	}

	// status may be unreadable for foreign users; stat alone is enough
	if status, err := os.ReadFile(filepath.Join(dir, "status")); err == nil {
		parseStatus(status, &st)
	}
	return st, nil
}

func parseStat(stat []byte, st *Status) error {
	idx := bytes.LastIndexByte(stat, ')')
	if idx < 0 {
		return errors.New("malformed stat")
	}
	// fields[0] is field 3 (state)
	fields := strings.Fields(string(stat[idx+1:]))
	if len(fields) < 18 {
		return errors.New("short stat")
	}
	st.State = fields[0]
	st.PPID, _ = strconv.Atoi(fields[1])
	st.Threads, _ = strconv.Atoi(fields[20-3])
	return nil
}

func parseStatus(data []byte, st *Status) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}
		switch parts[0] {
		case "VmSize:":
			st.VmSize, _ = strconv.ParseInt(parts[1], 10, 64)
		case "VmRSS:":
			st.VmRSS, _ = strconv.ParseInt(parts[1], 10, 64)
		}
	}
}
