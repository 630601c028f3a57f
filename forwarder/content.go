package forwarder

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// ContentState is the lifecycle of a StreamCopyContent: Unstarted until the
// outbound client first pulls the body, Started from then on, Completed
// once the underlying copy has a terminal result.
type ContentState int32

const (
	ContentUnstarted ContentState = iota
	ContentStarted
	ContentCompleted
)

// ConsumptionTask is the one-shot future carrying a StreamCopyContent's
// terminal StreamCopyResult, named after spec's "Consumption task".
type ConsumptionTask struct {
	done   chan struct{}
	once   sync.Once
	result StreamCopyResult
}

func newConsumptionTask() *ConsumptionTask {
	return &ConsumptionTask{done: make(chan struct{})}
}

func (t *ConsumptionTask) complete(r StreamCopyResult) {
	t.once.Do(func() {
		t.result = r
		close(t.done)
	})
}

// Wait blocks until the task completes or ctx is done, whichever comes
// first. The bool reports whether completion (rather than ctx expiry) woke
// the caller.
func (t *ConsumptionTask) Wait(ctx context.Context) (StreamCopyResult, bool) {
	select {
	case <-t.done:
		return t.result, true
	case <-ctx.Done():
		return StreamCopyResult{}, false
	}
}

// TryGet returns the terminal result without blocking, if it is already
// available. Used by the request-failure and response-body-error handlers
// of ProxyEngine to check for a pre-existing root cause.
func (t *ConsumptionTask) TryGet() (StreamCopyResult, bool) {
	select {
	case <-t.done:
		return t.result, true
	default:
		return StreamCopyResult{}, false
	}
}

// StreamCopyContent adapts an inbound request body into an outbound body
// producer. It is pulled exactly once by the outbound client: the first
// Read starts a StreamCopier running from the inbound body into an
// in-process pipe, and the terminal outcome is published to ConsumptionTask
// when the copy ends. Re-pulling after the pipe is drained is a defect by
// the caller, per spec §4.2's single-consumption contract.
type StreamCopyContent struct {
	inbound   io.Reader
	autoFlush bool
	ctx       context.Context
	onStart   func()

	state ContentState // written via atomic
	once  sync.Once

	pr   *io.PipeReader
	task *ConsumptionTask
}

// NewStreamCopyContent constructs a body producer over inbound. onStart,
// if set, is called once control shows Started was reached, used by the
// engine to assert the §4.2 invariant without polling.
func NewStreamCopyContent(ctx context.Context, inbound io.Reader, autoFlush bool, onStart func()) *StreamCopyContent {
	return &StreamCopyContent{
		inbound:   inbound,
		autoFlush: autoFlush,
		ctx:       ctx,
		onStart:   onStart,
		task:      newConsumptionTask(),
	}
}

// State reports the current lifecycle state.
func (c *StreamCopyContent) State() ContentState {
	return ContentState(atomic.LoadInt32((*int32)(&c.state)))
}

// ConsumptionTask returns the one-shot future of this producer's terminal
// result. Safe to call at any time, including before the body is pulled.
func (c *StreamCopyContent) ConsumptionTask() *ConsumptionTask { return c.task }

// Read implements io.Reader, the pull side the outbound HTTP client drives.
// The auto-flush flag has no separate effect here: the pipe this method
// reads from is unbuffered by construction, so every write is already
// visible to the reader immediately. The flag is stored on the struct but
// nothing reads it.
func (c *StreamCopyContent) Read(p []byte) (int, error) {
	c.once.Do(c.start)
	return c.pr.Read(p)
}

func (c *StreamCopyContent) start() {
	pr, pw := io.Pipe()
	c.pr = pr
	atomic.StoreInt32((*int32)(&c.state), int32(ContentStarted))
	if c.onStart != nil {
		c.onStart()
	}

	copier := StreamCopier{}
	go func() {
		result := copier.Copy(c.ctx, true, c.inbound, pw)
		atomic.StoreInt32((*int32)(&c.state), int32(ContentCompleted))
		c.task.complete(result)
		_ = pw.CloseWithError(copyTerminalError(result))
	}()
}

func copyTerminalError(r StreamCopyResult) error {
	if r.Kind == CopySuccess {
		return io.EOF
	}
	return r.Err
}
