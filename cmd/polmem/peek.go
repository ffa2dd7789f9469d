package main

import (
	"fmt"
	"os"

	"polmem/hexdump"
	"polmem/process"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "peek <pid>",
		Short: "Resolve an offset chain in one client and hexdump the target",
		Args:  cobra.ExactArgs(1),
		Run:   runPeek,
	}
	cmd.Flags().String("chain", "0x128AD4,0x10", "Offset chain relative to the game module")
	cmd.Flags().Int("size", 64, "Bytes to dump")
	rootCmd.AddCommand(cmd)
}

func runPeek(cmd *cobra.Command, args []string) {
	chainFlag, _ := cmd.Flags().GetString("chain")
	size, _ := cmd.Flags().GetInt("size")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("config", err)
	}

	var pid int
	if _, err := fmt.Sscan(args[0], &pid); err != nil {
		exitErr("pid", err)
	}
	var chain process.Chain
	if err := chain.UnmarshalText([]byte(chainFlag)); err != nil {
		exitErr("chain", err)
	}

	platform, err := newPlatform(cfg)
	if err != nil {
		exitErr("platform", err)
	}
	proc, err := platform.Helper.NewWithPID(process.ProcessID(pid))
	if err != nil {
		exitErr("open", err)
	}
	defer proc.Close()

	base, err := proc.ModuleBase(cfg.GameModule)
	if err != nil {
		exitErr("module", err)
	}
	addr, err := process.ResolveModuleChain(proc, base, cfg.PointerSize, chain)
	if err != nil {
		exitErr("resolve", err)
	}
	data, err := proc.ReadMemory(addr, process.ProcessMemorySize(size))
	if err != nil {
		exitErr("read", err)
	}

	fmt.Printf("%s+%s -> %s\n", cfg.GameModule, chain, addr.ToString())
	opts := hexdump.DefaultOptions()
	opts.StartOffset = uint64(addr)
	opts.PointerSize = int(cfg.PointerSize)
	opts.IsPointer = func(a uint64) bool {
		_, err := proc.ReadMemory(process.ProcessMemoryAddress(a), 1)
		return err == nil
	}
	hexdump.DumpToWriter(os.Stdout, data, opts)
}
