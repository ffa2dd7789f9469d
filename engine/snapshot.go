package engine

import (
	"polmem/process"
)

// PropertyValue is one row of a player snapshot.
type PropertyValue struct {
	Name     string
	Value    string
	Interval string
}

// PlayerSnapshot is everything known about one tracked process.
type PlayerSnapshot struct {
	PID        process.ProcessID
	Name       string
	ID         uint32
	Properties []PropertyValue
}

// DisplayAll returns a snapshot of every tracked process, ordered by PID.
func (e *Engine) DisplayAll() []PlayerSnapshot {
	entries := e.monitor.Entries()

	var out []PlayerSnapshot
	for _, pid := range e.registry.PIDs() {
		id, _ := e.resolver.PlayerID(pid)
		snap := PlayerSnapshot{
			PID:  pid,
			Name: e.resolver.PlayerName(pid),
			ID:   id,
		}
		for _, entry := range entries {
			interval := "static"
			if entry.Interval > 0 {
				interval = entry.Interval.String()
			}
			snap.Properties = append(snap.Properties, PropertyValue{
				Name:     entry.Property.Name(),
				Value:    entry.Property.DisplayValue(pid),
				Interval: interval,
			})
		}
		out = append(out, snap)
	}
	return out
}
