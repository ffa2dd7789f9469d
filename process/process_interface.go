package process

// Process is the interface that defines operations for interacting with a system process
type Process interface {
	// Open opens a process with the given PID for memory operations
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// ReadMemory reads memory from the process at the specified address.
	// A failed read is reported, never fatal: callers skip the cycle.
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// ModuleBase returns the load address of the named module (case-insensitive)
	ModuleBase(name string) (ProcessMemoryAddress, error)

	// IsRunning reports whether the process behind the handle is still alive
	IsRunning() bool
}

// ProcessHelper discovers and opens processes on the host OS
type ProcessHelper interface {
	// NewWithPID creates a new Process instance and opens it with the given PID
	NewWithPID(pid ProcessID) (Process, error)

	// FindProcessByName finds processes by their executable name (case-insensitive)
	FindProcessByName(name string) ([]ProcessInfo, error)
}
