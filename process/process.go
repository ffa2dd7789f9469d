// Package process provides the memory-access contract used to read live
// game state out of foreign processes.
package process

import "errors"

// Types and interfaces are split across files:
// - types.go: ProcessID, ProcessInfo
// - memory_types.go: ProcessMemoryAddress, ProcessMemorySize, Chain
// - process_interface.go: Process and ProcessHelper interfaces
// - path.go: pointer chain resolution and typed reads

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	ErrInvalidPointer = errors.New("invalid pointer read")

	// ErrModuleNotFound is returned when a named module is not loaded in the target process.
	ErrModuleNotFound = errors.New("module not found")

	// ErrPartialRead is returned when the OS copied fewer bytes than requested.
	ErrPartialRead = errors.New("partial read")
)
