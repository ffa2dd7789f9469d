//go:build linux

package main

import (
	"polmem/config"
	"polmem/engine"
	"polmem/process"
	"polmem/process_linux"
)

// newPlatform returns the /proc backed helper. Clients run under Wine, so
// there is no capture DLL to load and the capture strategy is unavailable.
func newPlatform(cfg config.Config) (engine.Platform, error) {
	return engine.Platform{Helper: process_linux.NewHelper()}, nil
}

func describe(pid process.ProcessID) string {
	st, err := process_linux.ReadStatus(pid)
	if err != nil {
		return ""
	}
	return st.String()
}
