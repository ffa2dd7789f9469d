package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"polmem/process"
	"polmem/process_blob"
	"polmem/registry"
	"polmem/sink"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moduleBase process.ProcessMemoryAddress = 0x10000000

var chatChain = process.NewChain(0x128AD4, 0x10)

type fakeIdentity struct {
	name string
	id   uint32
}

func (f fakeIdentity) PlayerName(process.ProcessID) string       { return f.name }
func (f fakeIdentity) PlayerID(process.ProcessID) (uint32, bool) { return f.id, f.id != 0 }

type delivery struct {
	path  string
	batch sink.ChatBatch
	at    time.Time
}

type recordingDeliverer struct {
	mu   sync.Mutex
	sent []delivery
}

func (r *recordingDeliverer) Send(path string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, delivery{path: path, batch: payload.(sink.ChatBatch), at: time.Now()})
	return nil
}

func (r *recordingDeliverer) deliveries() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.sent...)
}

func newTestPipeline(quiet time.Duration, identity fakeIdentity, out *recordingDeliverer) *Pipeline {
	return NewPipeline(PipelineConfig{
		QuietPeriod:   quiet,
		WaiterPoll:    10 * time.Millisecond,
		QueueCapacity: 100,
		HistorySize:   100,
		Path:          "/chat",
	}, identity, out, clock.New())
}

func say(body string) Message {
	return Message{Sender: "Zeid", Body: body, Raw: "Zeid : " + body, Type: Say, Timestamp: time.Now()}
}

func TestDebounceFlushesOnceAfterQuietPeriod(t *testing.T) {
	out := &recordingDeliverer{}
	p := newTestPipeline(500*time.Millisecond, fakeIdentity{name: "Valdemar", id: 7}, out)
	p.Start()
	defer p.Stop()

	start := time.Now()
	require.True(t, p.Accept(1, say("one")))
	time.Sleep(100 * time.Millisecond)
	require.True(t, p.Accept(1, say("two")))
	time.Sleep(100 * time.Millisecond)
	require.True(t, p.Accept(1, say("three")))

	require.Eventually(t, func() bool { return len(out.deliveries()) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	sent := out.deliveries()
	require.Len(t, sent, 1)
	elapsed := sent[0].at.Sub(start)
	assert.GreaterOrEqual(t, elapsed, 650*time.Millisecond)
	assert.Less(t, elapsed, 1000*time.Millisecond)

	batch := sent[0].batch
	assert.Equal(t, "/chat", sent[0].path)
	assert.Equal(t, "Valdemar", batch.Name)
	assert.Equal(t, uint32(7), batch.ID)
	assert.Equal(t, "SAY", batch.Type)
	require.Len(t, batch.Messages, 3)
	for i, m := range batch.Messages {
		assert.Equal(t, i+1, m.Index)
	}
	assert.Equal(t, "three", batch.Messages[2].Message)
	assert.Equal(t, 0, p.Pending(1))
}

func TestFlushGroupsByTypeInFirstSeenOrder(t *testing.T) {
	out := &recordingDeliverer{}
	p := newTestPipeline(30*time.Millisecond, fakeIdentity{name: "Valdemar", id: 7}, out)
	p.Start()
	defer p.Stop()

	p.Accept(1, Message{Sender: "Bob", Body: "hi", Raw: "Bob>> hi", Type: Tell})
	p.Accept(1, say("a"))
	p.Accept(1, Message{Sender: "Bob", Body: "there", Raw: "Bob>> there", Type: Tell})

	require.Eventually(t, func() bool { return len(out.deliveries()) == 2 }, time.Second, 5*time.Millisecond)
	sent := out.deliveries()
	assert.Equal(t, "TELL", sent[0].batch.Type)
	require.Len(t, sent[0].batch.Messages, 2)
	assert.Equal(t, 2, sent[0].batch.Messages[1].Index)
	assert.Equal(t, "Bob>> there", sent[0].batch.Messages[1].Raw)
	assert.Equal(t, "SAY", sent[1].batch.Type)
	assert.Equal(t, 1, sent[1].batch.Messages[0].Index)
}

func TestQueueDropsOldest(t *testing.T) {
	out := &recordingDeliverer{}
	p := NewPipeline(PipelineConfig{
		QuietPeriod:   50 * time.Millisecond,
		WaiterPoll:    10 * time.Millisecond,
		QueueCapacity: 3,
		HistorySize:   2,
		Path:          "/chat",
	}, fakeIdentity{name: "Valdemar", id: 7}, out, nil)
	p.Start()
	defer p.Stop()

	for _, body := range []string{"1", "2", "3", "4", "5"} {
		p.Accept(1, say(body))
	}
	assert.Equal(t, 3, p.Pending(1))

	recent := p.Recent(1, 10)
	require.Len(t, recent, 2)
	assert.Equal(t, "4", recent[0].Body)
	assert.Equal(t, "5", recent[1].Body)

	require.Eventually(t, func() bool { return len(out.deliveries()) == 1 }, time.Second, 5*time.Millisecond)
	msgs := out.deliveries()[0].batch.Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "3", msgs[0].Message)
	assert.Equal(t, "5", msgs[2].Message)

	// history is independent of delivery
	assert.Len(t, p.Recent(1, 1), 1)
}

func TestUnknownMessagesAreNeverQueued(t *testing.T) {
	p := newTestPipeline(time.Second, fakeIdentity{name: "Valdemar"}, &recordingDeliverer{})
	p.Start()
	defer p.Stop()

	assert.False(t, p.Accept(1, Message{Raw: "(Piplup)", Type: Unknown}))
	assert.Equal(t, 0, p.Pending(1))
	assert.Empty(t, p.Recent(1, 5))
}

func TestUnidentifiedBatchIsSkipped(t *testing.T) {
	out := &recordingDeliverer{}
	p := newTestPipeline(20*time.Millisecond, fakeIdentity{name: " \x00"}, out)
	p.Start()
	defer p.Stop()

	p.Accept(1, say("hello"))
	require.Eventually(t, func() bool { return p.Pending(1) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, out.deliveries())
}

func TestBatchWithoutPlayerIDIsSkipped(t *testing.T) {
	out := &recordingDeliverer{}
	p := newTestPipeline(20*time.Millisecond, fakeIdentity{name: "Valdemar"}, out)
	p.Start()
	defer p.Stop()

	p.Accept(1, say("hello"))
	require.Eventually(t, func() bool { return p.Pending(1) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, out.deliveries())
}

func TestStartStopIsIdempotent(t *testing.T) {
	out := &recordingDeliverer{}
	p := newTestPipeline(30*time.Millisecond, fakeIdentity{name: "Valdemar", id: 7}, out)

	assert.False(t, p.Accept(1, say("ignored")))

	p.Start()
	p.Start()
	assert.True(t, p.Running())

	p.Accept(1, say("once"))
	require.Eventually(t, func() bool { return len(out.deliveries()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, out.deliveries(), 1)

	p.Stop()
	p.Stop()
	assert.False(t, p.Running())
}

func TestStopExitsWaitersWithoutFlushing(t *testing.T) {
	out := &recordingDeliverer{}
	p := newTestPipeline(10*time.Second, fakeIdentity{name: "Valdemar", id: 7}, out)
	p.Start()
	p.Accept(1, say("pending"))

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	assert.Empty(t, out.deliveries())
	assert.Equal(t, 1, p.Pending(1))

	// A fresh waiter picks the queue up after restart
	p.cfg.QuietPeriod = 0
	p.Start()
	defer p.Stop()
	p.Accept(1, say("next"))
	require.Eventually(t, func() bool { return len(out.deliveries()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, out.deliveries()[0].batch.Messages, 2)
}

func TestForgetCancelsPendingDelivery(t *testing.T) {
	out := &recordingDeliverer{}
	p := newTestPipeline(50*time.Millisecond, fakeIdentity{name: "Valdemar", id: 7}, out)
	p.Start()
	defer p.Stop()

	p.Accept(1, say("gone"))
	p.Forget(1)
	time.Sleep(120 * time.Millisecond)
	assert.Empty(t, out.deliveries())
	assert.Empty(t, p.Recent(1, 1))
}

type chatClient struct {
	proc   *process_blob.ProcessDump
	target registry.Target
	buf    process.ProcessMemoryAddress
}

func newChatClient(t *testing.T, pid process.ProcessID) *chatClient {
	t.Helper()
	p := process_blob.NewProcessDump(pid, "pol.exe")
	require.NoError(t, p.Open(pid))
	buf, err := p.PlantChain(moduleBase, 4, chatChain, 64)
	require.NoError(t, err)
	return &chatClient{
		proc:   p,
		target: registry.Target{PID: pid, Proc: p, ModuleBase: moduleBase, Valid: true},
		buf:    buf,
	}
}

func (c *chatClient) write(t *testing.T, text string) {
	t.Helper()
	data := make([]byte, 64)
	copy(data, text)
	require.NoError(t, c.proc.Write(c.buf, data))
}

func TestBufferSourceReportsOnlyNewContent(t *testing.T) {
	c := newChatClient(t, 5)
	s := NewBufferSource(4, chatChain, 64, Cleaner{Encoding: EncodingASCII})

	lines, err := s.Poll(c.target)
	require.NoError(t, err)
	assert.Empty(t, lines)

	c.write(t, "j[4:32:53pm] Zeid : lfg")
	lines, err = s.Poll(c.target)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zeid : lfg"}, lines)

	lines, err = s.Poll(c.target)
	require.NoError(t, err)
	assert.Empty(t, lines)

	c.write(t, "Zeid : lfg2")
	lines, err = s.Poll(c.target)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zeid : lfg2"}, lines)

	// Forget resets the baseline
	s.Forget(5)
	lines, err = s.Poll(c.target)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zeid : lfg2"}, lines)
}

func TestBufferSourceReadFailure(t *testing.T) {
	c := newChatClient(t, 5)
	s := NewBufferSource(4, chatChain, 64, Cleaner{})
	c.proc.FailReads(process.ErrPartialRead)

	_, err := s.Poll(c.target)
	assert.ErrorIs(t, err, process.ErrPartialRead)

	c.target.Valid = false
	_, err = s.Poll(c.target)
	assert.ErrorIs(t, err, process.ErrProcessNotOpen)
}

type fakeCapture struct {
	mu      sync.Mutex
	lines   []string
	count   int
	handles map[uintptr]bool
	next    uintptr
	failNew bool
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{handles: make(map[uintptr]bool), next: 1}
}

func (f *fakeCapture) CreateInstance(pid process.ProcessID) (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNew {
		return 0, nil
	}
	h := f.next
	f.next++
	f.handles[h] = true
	return h, nil
}

func (f *fakeCapture) DeleteInstance(h uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handles, h)
}

func (f *fakeCapture) LineCount(uintptr) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count != 0 {
		return f.count, nil
	}
	return len(f.lines), nil
}

func (f *fakeCapture) LineRaw(_ uintptr, i int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []byte(f.lines[i]), nil
}

func (f *fakeCapture) add(lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, lines...)
}

func (f *fakeCapture) open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handles)
}

func TestCaptureSourceSkipsHistoryAndCapsPerPoll(t *testing.T) {
	api := newFakeCapture()
	api.add("old line")
	s := NewCaptureSource(api, 10, Cleaner{})
	target := registry.Target{PID: 9, Valid: true}

	lines, err := s.Poll(target)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, 1, api.open())

	for i := 0; i < 15; i++ {
		api.add("\x1e\x01Zeid : hi")
	}

	lines, err = s.Poll(target)
	require.NoError(t, err)
	assert.Len(t, lines, 10)
	assert.Equal(t, "Zeid : hi", lines[0])

	lines, err = s.Poll(target)
	require.NoError(t, err)
	assert.Len(t, lines, 5)

	s.Forget(9)
	assert.Equal(t, 0, api.open())
}

func TestCaptureSourceRejectsAbsurdLineCount(t *testing.T) {
	api := newFakeCapture()
	api.count = 20000
	s := NewCaptureSource(api, 10, Cleaner{})

	_, err := s.Poll(registry.Target{PID: 9, Valid: true})
	assert.ErrorIs(t, err, ErrLineCount)
	assert.Equal(t, 0, api.open())
}

func TestCaptureSourceUnavailable(t *testing.T) {
	api := newFakeCapture()
	api.failNew = true
	s := NewCaptureSource(api, 10, Cleaner{})
	_, err := s.Poll(registry.Target{PID: 9, Valid: true})
	assert.ErrorIs(t, err, ErrCaptureUnavailable)

	_, err = NewCaptureSource(nil, 10, Cleaner{}).Poll(registry.Target{PID: 9, Valid: true})
	assert.ErrorIs(t, err, ErrCaptureUnavailable)
}

func TestCaptureSourceCloseDeletesInstances(t *testing.T) {
	api := newFakeCapture()
	s := NewCaptureSource(api, 10, Cleaner{})
	for pid := process.ProcessID(1); pid <= 3; pid++ {
		_, err := s.Poll(registry.Target{PID: pid, Valid: true})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, api.open())
	require.NoError(t, s.Close())
	assert.Equal(t, 0, api.open())
}

func TestLogFeedsPipeline(t *testing.T) {
	c := newChatClient(t, 5)
	out := &recordingDeliverer{}
	p := newTestPipeline(20*time.Millisecond, fakeIdentity{name: "Valdemar", id: 7}, out)
	l := NewLog(NewBufferSource(4, chatChain, 64, Cleaner{}), nil, p, nil)

	// stopped pipeline: no reads at all
	c.write(t, "(Piplup) hello")
	reads := c.proc.ReadCount()
	require.NoError(t, l.Refresh(context.Background(), c.target))
	assert.Equal(t, reads, c.proc.ReadCount())

	p.Start()
	defer p.Stop()
	require.NoError(t, l.Refresh(context.Background(), c.target))
	assert.Equal(t, "[PARTY] Piplup: hello", l.DisplayValue(5))
	assert.False(t, l.HasChanged(5))
	require.Len(t, l.Recent(5, 10), 1)

	require.Eventually(t, func() bool { return len(out.deliveries()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "PARTY", out.deliveries()[0].batch.Type)

	// empty-body lines are dropped
	c.write(t, "(Piplup)")
	require.NoError(t, l.Refresh(context.Background(), c.target))
	assert.Len(t, l.Recent(5, 10), 1)

	l.Forget(5)
	assert.Equal(t, "", l.DisplayValue(5))
	assert.Empty(t, l.Recent(5, 10))
}
