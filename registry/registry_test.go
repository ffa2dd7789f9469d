package registry

import (
	"context"
	"sync"
	"testing"

	"polmem/process"
	"polmem/process_blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(pid process.ProcessID) *process_blob.ProcessDump {
	p := process_blob.NewProcessDump(pid, "pol.exe")
	p.SetModule("pol.exe", 0x00400000)
	p.SetModule("FFXiMain.dll", 0x10000000)
	return p
}

type recordingPurger struct {
	mu     sync.Mutex
	forgot []process.ProcessID
}

func (r *recordingPurger) Forget(pid process.ProcessID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgot = append(r.forgot, pid)
}

func TestScanAttachesValidTargets(t *testing.T) {
	table := process_blob.NewProcessTable()
	table.Add(newClient(10))
	table.Add(newClient(11))

	r := New(table, "pol.exe", "FFXiMain.dll")
	var attached []process.ProcessID
	r.OnAttach(func(t Target) { attached = append(attached, t.PID) })

	res, err := r.Scan(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []process.ProcessID{10, 11}, res.Attached)
	assert.ElementsMatch(t, []process.ProcessID{10, 11}, attached)
	assert.Equal(t, []process.ProcessID{10, 11}, r.PIDs())

	target, err := r.Get(10)
	require.NoError(t, err)
	assert.True(t, target.Valid)
	assert.Equal(t, process.ProcessMemoryAddress(0x10000000), target.ModuleBase)
	assert.Equal(t, process.ProcessMemoryAddress(0x00400000), target.ExeBase)

	// A second scan attaches nothing new
	res, err = r.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Attached)
}

func TestScanSkipsAndClosesPartialAttach(t *testing.T) {
	table := process_blob.NewProcessTable()
	noModule := process_blob.NewProcessDump(12, "pol.exe")
	noModule.SetModule("pol.exe", 0x00400000)
	table.Add(noModule)

	unopenable := newClient(13)
	table.Add(unopenable)
	table.FailOpen(13, assert.AnError)

	r := New(table, "pol.exe", "FFXiMain.dll")
	res, err := r.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Attached)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 1, noModule.CloseCount())

	_, err = r.Get(12)
	assert.ErrorIs(t, err, ErrNotTracked)

	// Once the module loads, the next scan attaches it
	noModule.SetModule("FFXiMain.dll", 0x10000000)
	table.FailOpen(13, nil)
	res, err = r.Scan(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []process.ProcessID{12, 13}, res.Attached)
}

func TestScanEvictsDeadOnceAndPurges(t *testing.T) {
	table := process_blob.NewProcessTable()
	a, b := newClient(10), newClient(11)
	table.Add(a)
	table.Add(b)

	r := New(table, "pol.exe", "FFXiMain.dll")
	purger := &recordingPurger{}
	r.AddPurger(purger)
	var evicted []process.ProcessID
	r.OnEvict(func(pid process.ProcessID) { evicted = append(evicted, pid) })

	_, err := r.Scan(context.Background())
	require.NoError(t, err)

	a.Kill()
	res, err := r.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []process.ProcessID{10}, res.Evicted)
	assert.Equal(t, []process.ProcessID{10}, purger.forgot)
	assert.Equal(t, []process.ProcessID{10}, evicted)
	assert.Equal(t, []process.ProcessID{11}, r.PIDs())

	// More scans never close the dead handle again
	for range 3 {
		_, err = r.Scan(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, a.CloseCount())
	assert.Equal(t, 0, b.CloseCount())

	r.Close()
	assert.Equal(t, 1, b.CloseCount())
	assert.Equal(t, 0, r.Len())
}

func TestSnapshotIsACopy(t *testing.T) {
	table := process_blob.NewProcessTable()
	table.Add(newClient(10))

	r := New(table, "pol.exe", "FFXiMain.dll")
	_, err := r.Scan(context.Background())
	require.NoError(t, err)

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	snap[0].Valid = false

	target, err := r.Get(10)
	require.NoError(t, err)
	assert.True(t, target.Valid)
}
