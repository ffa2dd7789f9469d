//go:build windows

package process_windows

import (
	"polmem/process"
)

// WindowsProcessHelper implements the process.ProcessHelper interface
type WindowsProcessHelper struct{}

var _ process.ProcessHelper = (*WindowsProcessHelper)(nil)

func NewHelper() *WindowsProcessHelper {
	return &WindowsProcessHelper{}
}

func (h *WindowsProcessHelper) NewWithPID(pid process.ProcessID) (process.Process, error) {
	return NewWithPID(pid)
}

func (h *WindowsProcessHelper) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	return ListByName(name)
}
