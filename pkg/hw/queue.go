package hw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.fd.io/govpp/api"

	"github.com/veesix-networks/vppom/pkg/logger"
)

var ErrUnavailable = errors.New("dataplane unavailable")

// Channel batches commands and flushes them to the dataplane.
type Channel interface {
	Enqueue(cmd Cmd)
	// Write sends every queued command and returns once each one has been
	// completed. Per-command failures are recorded on the commands; only a
	// fault of the channel itself is returned.
	Write(ctx context.Context) error
}

// Switch turns writes to the dataplane on and off. Dumps always go through.
type Switch interface {
	Enable()
	Disable()
}

// ChannelProvider is satisfied by *core.Connection.
type ChannelProvider interface {
	NewAPIChannel() (api.Channel, error)
}

type Queue struct {
	conn    ChannelProvider
	mu      sync.Mutex
	pending []Cmd
	enabled atomic.Bool
	logger  *slog.Logger

	writes  atomic.Uint64
	issued  atomic.Uint64
	failed  atomic.Uint64
	retired atomic.Uint64
	faults  atomic.Uint64
}

var (
	_ Channel = (*Queue)(nil)
	_ Switch  = (*Queue)(nil)
)

func NewQueue(conn ChannelProvider) *Queue {
	q := &Queue{
		conn:   conn,
		logger: logger.Get(logger.HW),
	}
	q.enabled.Store(true)
	return q
}

func (q *Queue) Enqueue(cmd Cmd) {
	q.mu.Lock()
	q.pending = append(q.pending, cmd)
	q.mu.Unlock()
}

func (q *Queue) Enable() {
	q.enabled.Store(true)
}

func (q *Queue) Disable() {
	q.enabled.Store(false)
}

func (q *Queue) Enabled() bool {
	return q.enabled.Load()
}

func (q *Queue) Write(ctx context.Context) error {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	q.writes.Add(1)

	enabled := q.enabled.Load()
	toIssue := make([]Cmd, 0, len(batch))
	for _, cmd := range batch {
		if !enabled && !isDump(cmd) {
			cmd.Complete(nil)
			q.retired.Add(1)
			q.logger.Debug("Retired command while writes disabled", "cmd", cmd.String())
			continue
		}
		toIssue = append(toIssue, cmd)
	}

	if len(toIssue) == 0 {
		return nil
	}

	ch, err := q.conn.NewAPIChannel()
	if err != nil {
		q.faults.Add(1)
		fault := fmt.Errorf("%w: create API channel: %v", ErrUnavailable, err)
		for _, cmd := range toIssue {
			cmd.Complete(fault)
		}
		q.logger.Error("Failed to flush commands", "commands", len(toIssue), "error", err)
		return fault
	}
	defer ch.Close()

	waits := make([]Pending, len(toIssue))
	for i, cmd := range toIssue {
		waits[i] = cmd.Issue(ch)
		q.issued.Add(1)
	}

	for i, cmd := range toIssue {
		err := waits[i]()
		cmd.Complete(err)
		if err != nil {
			q.failed.Add(1)
			q.logger.Warn("Command failed", "cmd", cmd.String(), "error", err)
			continue
		}
		q.logger.Debug("Command completed", "cmd", cmd.String())
	}

	return nil
}

func (q *Queue) Metrics() map[string]uint64 {
	q.mu.Lock()
	depth := len(q.pending)
	q.mu.Unlock()

	return map[string]uint64{
		"writes":        q.writes.Load(),
		"issued":        q.issued.Load(),
		"failed":        q.failed.Load(),
		"retired":       q.retired.Load(),
		"faults":        q.faults.Load(),
		"queue_current": uint64(depth),
	}
}
