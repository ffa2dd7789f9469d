package process

import (
	"fmt"
	"strconv"
	"strings"
)

// ProcessMemoryAddress represents a memory address within a process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// Chain is a fixed offset chain relative to a module base.
// Base is added to the module base address, then every entry in Offsets is
// applied as one (dereference, add offset) step.
type Chain struct {
	Base    ProcessMemorySize
	Offsets []ProcessMemorySize
}

// NewChain builds a chain from a base offset and the per-level offsets.
func NewChain(base ProcessMemorySize, offsets ...ProcessMemorySize) Chain {
	return Chain{Base: base, Offsets: offsets}
}

// String renders the chain in the same form UnmarshalText accepts.
func (c Chain) String() string {
	parts := make([]string, 0, len(c.Offsets)+1)
	parts = append(parts, fmt.Sprintf("0x%X", uint(c.Base)))
	for _, off := range c.Offsets {
		parts = append(parts, fmt.Sprintf("0x%X", uint(off)))
	}
	return strings.Join(parts, ",")
}

// UnmarshalText parses "base,off1,off2" where each element is hex (0x prefix
// optional) or decimal when prefixed with "d:".
func (c *Chain) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		return fmt.Errorf("empty offset chain")
	}

	var values []ProcessMemorySize
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		var (
			v   uint64
			err error
		)
		if dec, ok := strings.CutPrefix(part, "d:"); ok {
			v, err = strconv.ParseUint(dec, 10, 64)
		} else {
			part = strings.TrimPrefix(strings.TrimPrefix(part, "0x"), "0X")
			v, err = strconv.ParseUint(part, 16, 64)
		}
		if err != nil {
			return fmt.Errorf("invalid chain element %q: %w", part, err)
		}
		values = append(values, ProcessMemorySize(v))
	}

	if len(values) == 0 {
		return fmt.Errorf("empty offset chain")
	}

	c.Base = values[0]
	c.Offsets = values[1:]
	return nil
}
