package memory_map

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

// MemoryMapItem represents a memory region in a process's address space
type MemoryMapItem struct {
	Address uint64 // The starting address of the memory region
	Size    uint   // The size of the memory region in bytes
	Perms   string // Permissions (e.g., "r-xp" for read, execute, private)
	Path    string // Backing file, empty for anonymous mappings
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s, Path: %s", mmItem.Address, mmItem.Size, mmItem.Perms, mmItem.Path)
}

func (mmItem MemoryMapItem) IsReadable() bool {
	return len(mmItem.Perms) > 0 && mmItem.Perms[0] == 'r'
}

// ModuleName returns the base file name of the backing file.
// Wine maps PE images with their Windows path, so both separators are handled.
func (mmItem MemoryMapItem) ModuleName() string {
	if mmItem.Path == "" {
		return ""
	}
	p := strings.ReplaceAll(mmItem.Path, `\`, "/")
	return path.Base(p)
}

// ModuleBase returns the lowest mapped address of the named module.
func ModuleBase(name string, memoryMap []MemoryMapItem) (uint64, bool) {
	var (
		base  uint64
		found bool
	)
	for _, item := range memoryMap {
		if !strings.EqualFold(item.ModuleName(), name) {
			continue
		}
		if !found || item.Address < base {
			base = item.Address
			found = true
		}
	}
	return base, found
}

// IsValidAddress checks if an address is within a mapped region.
// memoryMap must be sorted by address.
func IsValidAddress(addr uint64, memoryMap []MemoryMapItem) bool {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].Address+uint64(memoryMap[i].Size) > addr
	})
	return i < len(memoryMap) && memoryMap[i].Address <= addr
}

// Parse reads /proc/<pid>/maps formatted lines.
// Lines that cannot be parsed are skipped.
func Parse(r io.Reader) ([]MemoryMapItem, error) {
	var memoryMap []MemoryMapItem
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		// Parse address range (e.g., "00400000-0040b000")
		addrRange := strings.Split(fields[0], "-")
		if len(addrRange) != 2 {
			continue
		}

		startAddr, err := strconv.ParseUint(addrRange[0], 16, 64)
		if err != nil {
			continue
		}

		endAddr, err := strconv.ParseUint(addrRange[1], 16, 64)
		if err != nil || endAddr < startAddr {
			continue
		}

		item := MemoryMapItem{
			Address: startAddr,
			Size:    uint(endAddr - startAddr),
			Perms:   fields[1],
		}
		// address perms offset dev inode [path...]; paths may contain spaces
		if len(fields) >= 6 {
			item.Path = strings.Join(fields[5:], " ")
		}

		memoryMap = append(memoryMap, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.Slice(memoryMap, func(i, j int) bool {
		return memoryMap[i].Address < memoryMap[j].Address
	})

	return memoryMap, nil
}
