package process_blob

import (
	"testing"

	"polmem/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessTableLifecycle(t *testing.T) {
	table := NewProcessTable()
	a := NewProcessDump(10, "pol.exe")
	b := NewProcessDump(11, "POL.EXE")
	other := NewProcessDump(12, "notepad.exe")
	table.Add(a)
	table.Add(b)
	table.Add(other)

	found, err := table.FindProcessByName("pol.exe")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, process.ProcessID(10), found[0].PID)

	proc, err := table.NewWithPID(10)
	require.NoError(t, err)
	assert.True(t, proc.IsRunning())
	assert.Equal(t, process.ProcessID(10), proc.GetPID())

	a.Kill()
	assert.False(t, proc.IsRunning())
	found, _ = table.FindProcessByName("pol.exe")
	assert.Len(t, found, 1)

	require.NoError(t, proc.Close())
	assert.ErrorIs(t, proc.Close(), process.ErrProcessNotOpen)
	assert.Equal(t, 2, a.CloseCount())
}

func TestProcessTableFailOpen(t *testing.T) {
	table := NewProcessTable()
	table.Add(NewProcessDump(10, "pol.exe"))
	table.FailOpen(10, assert.AnError)

	_, err := table.NewWithPID(10)
	assert.ErrorIs(t, err, assert.AnError)

	table.FailOpen(10, nil)
	_, err = table.NewWithPID(10)
	assert.NoError(t, err)

	_, err = table.NewWithPID(99)
	assert.Error(t, err)
}

func TestReadsRequireOpenHandle(t *testing.T) {
	p := NewProcessDump(10, "pol.exe")
	p.Map(0x30000000, []byte{1, 2, 3, 4})

	_, err := p.ReadMemory(0x30000000, 4)
	assert.ErrorIs(t, err, process.ErrProcessNotOpen)

	require.NoError(t, p.Open(10))
	data, err := p.ReadMemory(0x30000000, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	_, err = p.ModuleBase("FFXiMain.dll")
	assert.ErrorIs(t, err, process.ErrModuleNotFound)
}
