//go:build windows

package main

import (
	"fmt"

	"polmem/config"
	"polmem/engine"
	"polmem/process"
	"polmem/process_windows"
)

func newPlatform(cfg config.Config) (engine.Platform, error) {
	p := engine.Platform{Helper: process_windows.NewHelper()}
	if cfg.Chat.Strategy != config.ChatCapture {
		return p, nil
	}

	dll, err := process_windows.LoadCaptureDLL(cfg.Chat.CaptureDLL)
	if err != nil {
		return engine.Platform{}, fmt.Errorf("load %s: %w", cfg.Chat.CaptureDLL, err)
	}
	p.Capture = dll
	return p, nil
}

func describe(pid process.ProcessID) string { return "" }
