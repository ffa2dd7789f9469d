package property

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"polmem/process"
	"polmem/registry"
	"polmem/sink"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// ValidateName decodes a fixed-width name buffer. The buffer is read up to
// the first NUL; every byte before it must be printable ASCII and the trimmed
// result at least two characters long. Anything else is sink.UnknownName.
func ValidateName(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	for _, c := range raw {
		if c < 0x20 || c > 0x7E {
			return sink.UnknownName
		}
	}
	name := strings.TrimSpace(string(raw))
	if len(name) < 2 {
		return sink.UnknownName
	}
	return name
}

// PlayerName is a static property: it is read at attach time and on
// explicit forced refreshes, never on the periodic schedule.
type PlayerName struct {
	reader Reader
	chain  process.Chain
	size   process.ProcessMemorySize
	names  *tracker[string]
	log    *logger.Logger
}

var _ Property = (*PlayerName)(nil)

func NewPlayerName(reader Reader, chain process.Chain, size process.ProcessMemorySize) *PlayerName {
	return &PlayerName{
		reader: reader,
		chain:  chain,
		size:   size,
		names:  newTracker[string](),
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPink, coloransi.ColorIndigo, "player-name")),
	}
}

func (p *PlayerName) Name() string { return "Player Name" }

// Refresh stores the validated name. A buffer that fails validation stores
// sink.UnknownName and returns ErrNotAvailable.
func (p *PlayerName) Refresh(ctx context.Context, t registry.Target) error {
	raw, err := p.reader.bytes(t, p.chain, p.size)
	if err != nil {
		return fmt.Errorf("read name: %w", err)
	}

	name := ValidateName(raw)
	p.names.update(t.PID, name)
	if name == sink.UnknownName {
		return fmt.Errorf("name for %d: %w", t.PID, ErrNotAvailable)
	}
	return nil
}

// Get returns the stored name, or sink.UnknownName.
func (p *PlayerName) Get(pid process.ProcessID) string {
	name, ok := p.names.get(pid)
	if !ok || name == "" {
		return sink.UnknownName
	}
	return name
}

func (p *PlayerName) DisplayValue(pid process.ProcessID) string {
	return p.Get(pid)
}

func (p *PlayerName) HasChanged(pid process.ProcessID) bool {
	return p.names.hasChanged(pid)
}

func (p *PlayerName) AcknowledgeChange(pid process.ProcessID) {
	p.names.acknowledge(pid)
}

func (p *PlayerName) ReportChange(ctx context.Context, pid process.ProcessID) error {
	from, to, ok := p.names.transition(pid)
	if ok {
		p.log.Infoln("PID", pid, "name", strconv.Quote(from), "->", strconv.Quote(to))
	}
	return nil
}

func (p *PlayerName) Forget(pid process.ProcessID) {
	p.names.forget(pid)
}

// PlayerID is the numeric character id. Zero means the character is still
// loading and is never stored.
type PlayerID struct {
	reader Reader
	chain  process.Chain
	ids    *tracker[uint32]
	log    *logger.Logger
}

var _ Property = (*PlayerID)(nil)

func NewPlayerID(reader Reader, chain process.Chain) *PlayerID {
	return &PlayerID{
		reader: reader,
		chain:  chain,
		ids:    newTracker[uint32](),
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPink, coloransi.ColorIndigo, "player-id")),
	}
}

func (p *PlayerID) Name() string { return "Player ID" }

func (p *PlayerID) Refresh(ctx context.Context, t registry.Target) error {
	id, err := readValue[uint32](p.reader, t, p.chain)
	if err != nil {
		return fmt.Errorf("read player id: %w", err)
	}
	if id == 0 {
		return fmt.Errorf("player id for %d: %w", t.PID, ErrNotAvailable)
	}
	p.ids.update(t.PID, id)
	return nil
}

func (p *PlayerID) Get(pid process.ProcessID) (uint32, bool) {
	return p.ids.get(pid)
}

func (p *PlayerID) DisplayValue(pid process.ProcessID) string {
	id, ok := p.ids.get(pid)
	if !ok {
		return sink.UnknownName
	}
	return strconv.FormatUint(uint64(id), 10)
}

func (p *PlayerID) HasChanged(pid process.ProcessID) bool {
	return p.ids.hasChanged(pid)
}

func (p *PlayerID) AcknowledgeChange(pid process.ProcessID) {
	p.ids.acknowledge(pid)
}

func (p *PlayerID) ReportChange(ctx context.Context, pid process.ProcessID) error {
	from, to, ok := p.ids.transition(pid)
	if ok {
		p.log.Infoln("PID", pid, "player id", from, "->", to)
	}
	return nil
}

func (p *PlayerID) Forget(pid process.ProcessID) {
	p.ids.forget(pid)
}
