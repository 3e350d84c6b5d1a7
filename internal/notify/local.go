package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "utrcal/internal/log"
)

// Sink delivers an alert that has come due.
type Sink interface {
	Deliver(ctx context.Context, req Request) error
}

// LogSink delivers alerts by writing them to the application log.
type LogSink struct{}

func (LogSink) Deliver(_ context.Context, req Request) error {
	appLog.Info("class starting", "id", req.ID, "title", req.Title, "body", req.Body, "sound", req.Sound)
	return nil
}

// LocalNotifier keeps pending one-shot alerts in memory and delivers the
// due ones on every dispatch tick. Delivered alerts are forgotten.
type LocalNotifier struct {
	sink Sink
	now  func() time.Time

	mu      sync.Mutex
	pending map[string]Request
}

func NewLocalNotifier(sink Sink) *LocalNotifier {
	if sink == nil {
		sink = LogSink{}
	}
	return &LocalNotifier{
		sink:    sink,
		now:     time.Now,
		pending: make(map[string]Request),
	}
}

// Schedule registers req, replacing any pending alert with the same id.
// A fire time before the current minute is rejected: a one-shot trigger
// in the past would never fire.
func (n *LocalNotifier) Schedule(_ context.Context, req Request) error {
	if req.FireAt.Before(n.now().Truncate(time.Minute)) {
		return ErrFireTimeInPast
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending[req.ID] = req
	return nil
}

// Cancel drops the pending alert for id; unknown ids are ignored.
func (n *LocalNotifier) Cancel(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.pending, id)
	return nil
}

// Pending returns the registered alerts ordered by fire time.
func (n *LocalNotifier) Pending() []Request {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Request, 0, len(n.pending))
	for _, req := range n.pending {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// Dispatch delivers every alert whose fire time has passed and returns
// how many were handed to the sink.
func (n *LocalNotifier) Dispatch(ctx context.Context) int {
	now := n.now()

	n.mu.Lock()
	due := make([]Request, 0)
	for id, req := range n.pending {
		if !req.FireAt.After(now) {
			due = append(due, req)
			delete(n.pending, id)
		}
	}
	n.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].FireAt.Before(due[j].FireAt) })

	for _, req := range due {
		if err := n.sink.Deliver(ctx, req); err != nil {
			appLog.Error("notify: delivery failed", err, "id", req.ID)
		}
	}
	return len(due)
}

// Start runs Dispatch on the given cron schedule until ctx is canceled.
func (n *LocalNotifier) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { n.Dispatch(ctx) }); err != nil {
		return err
	}
	c.Start()
	appLog.Info("notify: dispatcher started", "schedule", schedule)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("notify: dispatcher stopped")
	}()
	return nil
}
