package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"polmem/engine"
	"polmem/telemetry"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Monitor clients until interrupted",
		Run:   runRun,
	}
	cmd.Flags().Bool("chat", false, "Enable chat monitoring")
	rootCmd.AddCommand(cmd)
}

func runRun(cmd *cobra.Command, args []string) {
	withChat, _ := cmd.Flags().GetBool("chat")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("config", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, "polmem", cfg.OTelEndpoint)
	if err != nil {
		exitErr("telemetry", err)
	}
	defer shutdown(context.Background())

	platform, err := newPlatform(cfg)
	if err != nil {
		exitErr("platform", err)
	}

	e, err := engine.New(cfg, platform)
	if err != nil {
		exitErr("engine", err)
	}
	if withChat {
		e.EnableChat()
	}

	if err := e.Run(ctx); err != nil {
		exitErr("run", err)
	}
}
