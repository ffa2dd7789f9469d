//go:build linux

package process_linux

import (
	"os"
	"testing"

	"polmem/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStartTime(t *testing.T) {
	stat := []byte("4242 (pol (x).exe) S 1 4242 4242 0 -1 4194304 100 0 0 0 5 3 0 0 20 0 12 0 987654 123456 789")
	v, err := parseStartTime(stat)
	require.NoError(t, err)
	assert.Equal(t, uint64(987654), v)

	_, err = parseStartTime([]byte("garbage"))
	assert.Error(t, err)
}

func TestSelfIsRunningAndReadable(t *testing.T) {
	p := New()
	require.NoError(t, p.Open(process.ProcessID(os.Getpid())))
	assert.True(t, p.IsRunning())

	require.NoError(t, p.Close())
	assert.False(t, p.IsRunning())
}

func TestBytesTrimNL(t *testing.T) {
	assert.Equal(t, "pol.exe", string(bytesTrimNL([]byte("pol.exe\n"))))
}

func TestParseStat(t *testing.T) {
	stat := []byte("4242 (pol (x).exe) S 1 4242 4242 0 -1 4194304 100 0 0 0 5 3 0 0 20 0 12 0 987654 123456 789")
	var st Status
	require.NoError(t, parseStat(stat, &st))
	assert.Equal(t, "S", st.State)
	assert.Equal(t, 1, st.PPID)
	assert.Equal(t, 12, st.Threads)

	parseStatus([]byte("Name:\tpol.exe\nVmSize:\t  409600 kB\nVmRSS:\t  204800 kB\n"), &st)
	assert.Equal(t, int64(409600), st.VmSize)
	assert.Equal(t, "S threads=12 rss=200MiB", st.String())
}

func TestReadStatusSelf(t *testing.T) {
	st, err := ReadStatus(process.ProcessID(os.Getpid()))
	require.NoError(t, err)
	assert.Equal(t, os.Getppid(), st.PPID)
	assert.Positive(t, st.Threads)
}
