package main

import (
	"fmt"
	"os"

	"polmem/config"

	"github.com/spf13/cobra"
)

var (
	executableFlag string
	moduleFlag     string
	collectorFlag  string
	archiveFlag    string
)

var rootCmd = &cobra.Command{
	Use:           "polmem",
	Short:         "Relay game client state to a collector",
	Long:          "polmem attaches to running game clients, polls player identity, tactical points and chat out of their memory and posts changes to an HTTP collector.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&executableFlag, "executable", "", "Client executable name (default: $POLMEM_EXECUTABLE or pol.exe)")
	rootCmd.PersistentFlags().StringVar(&moduleFlag, "module", "", "Game module name (default: $POLMEM_GAME_MODULE or FFXiMain.dll)")
	rootCmd.PersistentFlags().StringVar(&collectorFlag, "collector", "", "Collector base URL (default: $POLMEM_SINK_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&archiveFlag, "archive", "", "Delivery archive path (default: $POLMEM_ARCHIVE_PATH, empty disables)")
}

// loadConfig parses the environment, then applies flag overrides.
func loadConfig() (config.Config, error) {
	var cfg config.Config
	if err := config.ParseEnv(&cfg); err != nil {
		return config.Config{}, err
	}
	if executableFlag != "" {
		cfg.Executable = executableFlag
	}
	if moduleFlag != "" {
		cfg.GameModule = moduleFlag
	}
	if collectorFlag != "" {
		cfg.Sink.BaseURL = collectorFlag
	}
	if archiveFlag != "" {
		cfg.ArchivePath = archiveFlag
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
