//go:build !linux && !windows

package main

import (
	"errors"
	"runtime"

	"polmem/config"
	"polmem/engine"
	"polmem/process"
)

func newPlatform(cfg config.Config) (engine.Platform, error) {
	return engine.Platform{}, errors.New("no process access on " + runtime.GOOS)
}

func describe(pid process.ProcessID) string { return "" }
