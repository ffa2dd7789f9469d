package main

import (
	"os"
	"strconv"

	"polmem/table"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "ps",
		Short: "List running client processes",
		Run:   runPs,
	})
}

func runPs(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("config", err)
	}
	platform, err := newPlatform(cfg)
	if err != nil {
		exitErr("platform", err)
	}

	procs, err := platform.Helper.FindProcessByName(cfg.Executable)
	if err != nil {
		exitErr("list processes", err)
	}

	t := table.New(table.Column{Header: "PID"}, table.Column{Header: "NAME"}, table.Column{Header: "STATUS"})
	for _, p := range procs {
		t.AddRow(strconv.Itoa(int(p.PID)), p.Name, describe(p.PID))
	}
	t.Render(os.Stdout)
}
