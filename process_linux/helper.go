//go:build linux

package process_linux

import (
	"polmem/process"
)

// LinuxProcessHelper implements the process.ProcessHelper interface
type LinuxProcessHelper struct{}

var _ process.ProcessHelper = (*LinuxProcessHelper)(nil)

// NewHelper creates a new LinuxProcessHelper
func NewHelper() *LinuxProcessHelper {
	return &LinuxProcessHelper{}
}

// NewWithPID creates a new Process instance and opens it with the given PID
func (h *LinuxProcessHelper) NewWithPID(pid process.ProcessID) (process.Process, error) {
	return NewWithPID(pid)
}

// FindProcessByName finds processes by executable name
func (h *LinuxProcessHelper) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	return ListByName(name)
}
