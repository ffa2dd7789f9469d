package main

import (
	"fmt"
	"os"

	"polmem/engine"
	"polmem/table"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Attach once and print every property of every client",
		Run:   runShow,
	})
}

func runShow(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("config", err)
	}
	// one-shot: nothing is delivered or archived
	cfg.ArchivePath = ""

	platform, err := newPlatform(cfg)
	if err != nil {
		exitErr("platform", err)
	}
	e, err := engine.New(cfg, platform, engine.WithSink(discardSink{}))
	if err != nil {
		exitErr("engine", err)
	}
	defer e.Stop()

	ctx := cmd.Context()
	if _, err := e.Scan(ctx); err != nil {
		exitErr("scan", err)
	}
	if err := e.ForceRefreshIdentity(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "warning: identity:", err)
	}
	if err := e.RefreshProperty(ctx, "Tactical Points"); err != nil {
		exitErr("refresh", err)
	}

	snaps := e.DisplayAll()
	if len(snaps) == 0 {
		fmt.Println("no", cfg.Executable, "processes with", cfg.GameModule, "loaded")
		return
	}
	for _, s := range snaps {
		fmt.Printf("PID %d  %s (%d)\n", s.PID, s.Name, s.ID)
		t := table.New(table.Column{Header: "PROPERTY"}, table.Column{Header: "VALUE", MaxWidth: 60}, table.Column{Header: "INTERVAL"})
		for _, p := range s.Properties {
			t.AddRow(p.Name, p.Value, p.Interval)
		}
		t.Render(os.Stdout)
		fmt.Println()
	}
}
