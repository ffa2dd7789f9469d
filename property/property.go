// Package property reads semantic values out of a client and tracks changes.
//
// Every Property keeps per-process state behind its own mutex. The changed
// flag is set only by Refresh and cleared only by AcknowledgeChange, so a
// report that runs between the two always sees the transition.
package property

import (
	"context"
	"errors"

	"polmem/process"
	"polmem/registry"
)

// ErrNotAvailable marks a read that succeeded but decoded to a placeholder
// (unprintable name, zero id). The value is retried later.
var ErrNotAvailable = errors.New("value not available yet")

// Property is one semantic value read from every tracked process.
type Property interface {
	Name() string
	// Refresh re-resolves and reads the value. On error the stored value is untouched.
	Refresh(ctx context.Context, t registry.Target) error
	DisplayValue(pid process.ProcessID) string
	HasChanged(pid process.ProcessID) bool
	AcknowledgeChange(pid process.ProcessID)
	ReportChange(ctx context.Context, pid process.ProcessID) error
	// Forget drops all state for pid.
	Forget(pid process.ProcessID)
}

// Deliverer hands a payload to the collector without waiting on it.
type Deliverer interface {
	Send(path string, payload any) error
}

// Reader addresses a chain relative to the game module of a target.
type Reader struct {
	PointerSize process.ProcessMemorySize
}

func (r Reader) bytes(t registry.Target, chain process.Chain, size process.ProcessMemorySize) ([]byte, error) {
	if !t.Valid {
		return nil, process.ErrProcessNotOpen
	}
	return process.ReadBytesPath(t.Proc, t.ModuleBase, r.PointerSize, chain, size)
}

func readValue[T any](r Reader, t registry.Target, chain process.Chain) (T, error) {
	if !t.Valid {
		var zero T
		return zero, process.ErrProcessNotOpen
	}
	return process.ReadPath[T](t.Proc, t.ModuleBase, r.PointerSize, chain)
}
