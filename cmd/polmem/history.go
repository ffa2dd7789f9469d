package main

import (
	"errors"
	"os"
	"time"

	"polmem/archive"
	"polmem/table"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent collector deliveries from the archive",
		Run:   runHistory,
	}
	cmd.Flags().IntP("limit", "l", 20, "Max rows")
	rootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("config", err)
	}
	if cfg.ArchivePath == "" {
		exitErr("history", errors.New("no archive configured, set POLMEM_ARCHIVE_PATH or --archive"))
	}

	store, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		exitErr("open archive", err)
	}
	defer store.Close()

	entries, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		exitErr("history", err)
	}

	t := table.New(
		table.Column{Header: "TIME"},
		table.Column{Header: "PATH"},
		table.Column{Header: "PLAYER"},
		table.Column{Header: "STATUS"},
		table.Column{Header: "BODY", MaxWidth: 60},
		table.Column{Header: "ERROR", MaxWidth: 40},
	)
	for _, e := range entries {
		t.AddRow(e.CreatedAt.Local().Format(time.DateTime), e.Path, e.Player, e.Status, e.Body, e.Error)
	}
	t.Render(os.Stdout)
}
