package engine

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/roach88/cascade/internal/ir"
)

// Default thresholds for the two timing sources.
const (
	DefaultLongTaskThreshold    = 50 * time.Millisecond
	DefaultInteractionThreshold = 200 * time.Millisecond
)

// Labels used for long-task windows and unnamed interactions.
const (
	LongTaskLabel    = "Long task"
	InteractionLabel = "Interaction"
)

// SignalSource delivers completed timing intervals from the host.
// An implementation that cannot observe a signal type returns an error
// wrapping ErrUnsupported.
type SignalSource interface {
	ObserveLongTasks(fn func([]ir.LongTask)) error
	ObserveInteractions(minDuration time.Duration, fn func([]ir.InteractionReport)) error
}

// LongTaskWindows converts long tasks into windows ordered by start.
func LongTaskWindows(tasks []ir.LongTask) []ir.Window {
	windows := make([]ir.Window, 0, len(tasks))
	for _, t := range tasks {
		windows = append(windows, ir.Window{
			Start:  t.Start,
			End:    t.Start + t.Duration,
			Label:  LongTaskLabel,
			Source: ir.WindowSourceLongTask,
		})
	}
	sortWindows(windows)
	return windows
}

// InteractionWindows selects one window per logical interaction.
//
// Reports with a zero interaction id are dropped, as are reports shorter
// than minDuration. Among reports sharing an id only the longest is kept
// (the first one wins a tie). Its processing interval becomes the window
// and its name the label.
func InteractionWindows(reports []ir.InteractionReport, minDuration time.Duration) []ir.Window {
	longest := make(map[uint64]ir.InteractionReport)
	var order []uint64
	for _, r := range reports {
		if r.InteractionID == 0 || r.Duration < minDuration {
			continue
		}
		cur, ok := longest[r.InteractionID]
		if !ok {
			order = append(order, r.InteractionID)
		}
		if !ok || r.Duration > cur.Duration {
			longest[r.InteractionID] = r
		}
	}

	windows := make([]ir.Window, 0, len(order))
	for _, id := range order {
		r := longest[id]
		label := r.Name
		if label == "" {
			label = InteractionLabel
		}
		windows = append(windows, ir.Window{
			Start:  r.ProcessingStart,
			End:    r.ProcessingEnd,
			Label:  label,
			Source: ir.WindowSourceInteraction,
		})
	}
	sortWindows(windows)
	return windows
}

func sortWindows(ws []ir.Window) {
	slices.SortStableFunc(ws, func(a, b ir.Window) int {
		return cmp.Compare(a.Start, b.Start)
	})
}

// Feed is a SignalSource driven by explicit Publish calls. The harness
// and tests use it to replay timing signals; hosts can bridge their own
// instrumentation into it.
//
// Thread-safety: Feed is safe for concurrent use. Observers are called
// outside the internal lock.
type Feed struct {
	mu                      sync.Mutex
	longTaskThreshold       time.Duration
	longTasksUnsupported    bool
	interactionsUnsupported bool
	longTaskObservers       []func([]ir.LongTask)
	interactionObservers    []interactionObserver
}

type interactionObserver struct {
	min time.Duration
	fn  func([]ir.InteractionReport)
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithoutLongTasks makes the feed report long tasks as unsupported.
func WithoutLongTasks() FeedOption {
	return func(f *Feed) { f.longTasksUnsupported = true }
}

// WithoutInteractions makes the feed report interactions as unsupported.
func WithoutInteractions() FeedOption {
	return func(f *Feed) { f.interactionsUnsupported = true }
}

// WithLongTaskThreshold sets the minimum stall a long task must exceed.
func WithLongTaskThreshold(d time.Duration) FeedOption {
	return func(f *Feed) { f.longTaskThreshold = d }
}

// NewFeed creates a feed supporting both signal types.
func NewFeed(opts ...FeedOption) *Feed {
	f := &Feed{longTaskThreshold: DefaultLongTaskThreshold}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ObserveLongTasks implements SignalSource.
func (f *Feed) ObserveLongTasks(fn func([]ir.LongTask)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.longTasksUnsupported {
		return &CapabilityError{Signal: "long-task", Err: ErrUnsupported}
	}
	f.longTaskObservers = append(f.longTaskObservers, fn)
	return nil
}

// ObserveInteractions implements SignalSource.
func (f *Feed) ObserveInteractions(minDuration time.Duration, fn func([]ir.InteractionReport)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.interactionsUnsupported {
		return &CapabilityError{Signal: "interaction", Err: ErrUnsupported}
	}
	f.interactionObservers = append(f.interactionObservers, interactionObserver{min: minDuration, fn: fn})
	return nil
}

// PublishLongTasks delivers one batch of completed long tasks. Tasks that
// do not exceed the long-task threshold are not reported.
func (f *Feed) PublishLongTasks(tasks ...ir.LongTask) {
	f.mu.Lock()
	observers := slices.Clone(f.longTaskObservers)
	threshold := f.longTaskThreshold
	f.mu.Unlock()

	var batch []ir.LongTask
	for _, t := range tasks {
		if t.Duration > threshold {
			batch = append(batch, t)
		}
	}
	if len(batch) == 0 {
		return
	}
	for _, fn := range observers {
		fn(batch)
	}
}

// PublishInteractions delivers one batch of interaction reports. Each
// observer only sees reports meeting its minimum duration.
func (f *Feed) PublishInteractions(reports ...ir.InteractionReport) {
	f.mu.Lock()
	observers := slices.Clone(f.interactionObservers)
	f.mu.Unlock()

	for _, o := range observers {
		var batch []ir.InteractionReport
		for _, r := range reports {
			if r.Duration >= o.min {
				batch = append(batch, r)
			}
		}
		if len(batch) > 0 {
			o.fn(batch)
		}
	}
}
