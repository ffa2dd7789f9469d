package property

import (
	"context"
	"fmt"
	"strconv"

	"polmem/process"
	"polmem/registry"
	"polmem/sink"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Identity resolves who is playing in a process.
type Identity interface {
	PlayerName(pid process.ProcessID) string
	PlayerID(pid process.ProcessID) (uint32, bool)
}

// TacticalPoints polls the TP counter and posts every change.
type TacticalPoints struct {
	reader   Reader
	chain    process.Chain
	identity Identity
	out      Deliverer
	path     string
	values   *tracker[int32]
	log      *logger.Logger
}

var _ Property = (*TacticalPoints)(nil)

func NewTacticalPoints(reader Reader, chain process.Chain, identity Identity, out Deliverer, path string) *TacticalPoints {
	return &TacticalPoints{
		reader:   reader,
		chain:    chain,
		identity: identity,
		out:      out,
		path:     path,
		values:   newTracker[int32](),
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorOrange, coloransi.ColorIndigo, "tp")),
	}
}

func (p *TacticalPoints) Name() string { return "Tactical Points" }

func (p *TacticalPoints) Refresh(ctx context.Context, t registry.Target) error {
	tp, err := readValue[int32](p.reader, t, p.chain)
	if err != nil {
		return fmt.Errorf("read tp: %w", err)
	}
	p.values.update(t.PID, tp)
	return nil
}

func (p *TacticalPoints) DisplayValue(pid process.ProcessID) string {
	v, ok := p.values.get(pid)
	if !ok {
		return "0"
	}
	return strconv.Itoa(int(v))
}

// Value returns the last TP read for pid.
func (p *TacticalPoints) Value(pid process.ProcessID) (int32, bool) {
	return p.values.get(pid)
}

func (p *TacticalPoints) HasChanged(pid process.ProcessID) bool {
	return p.values.hasChanged(pid)
}

func (p *TacticalPoints) AcknowledgeChange(pid process.ProcessID) {
	p.values.acknowledge(pid)
}

func (p *TacticalPoints) ReportChange(ctx context.Context, pid process.ProcessID) error {
	from, to, ok := p.values.transition(pid)
	if !ok {
		return nil
	}

	name := sink.SanitizeName(p.identity.PlayerName(pid))
	id, _ := p.identity.PlayerID(pid)
	p.log.Infoln("Player", name, "( PID", pid, ") TP changed from", from, "to", to)

	if p.out == nil {
		return nil
	}
	return p.out.Send(p.path, sink.TPUpdate{Name: name, ID: id, TP: to})
}

func (p *TacticalPoints) Forget(pid process.ProcessID) {
	p.values.forget(pid)
}
