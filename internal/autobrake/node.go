package autobrake

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/autobrake/internal/db"
	"github.com/banshee-data/autobrake/internal/monitoring"
	"github.com/banshee-data/autobrake/internal/scan"
	"github.com/banshee-data/autobrake/internal/timeutil"
	"github.com/banshee-data/autobrake/internal/vehicle"
)

const (
	defaultHeartbeat  = 10 * time.Second
	defaultEventQueue = 256
	// publish errors are logged on the first failure and then once per this
	// many failures
	publishErrorLogEvery = 300
)

// Recorder persists brake events. *db.DB implements it.
type Recorder interface {
	RecordEvent(ctx context.Context, e db.BrakeEvent) error
}

// Stats are the node's running counters.
type Stats struct {
	ScansEvaluated uint64 `json:"scans_evaluated"`
	SamplesKept    uint64 `json:"samples_kept"`
	SamplesDropped uint64 `json:"samples_dropped"`
	Restricted     uint64 `json:"restricted"`
	Publishes      uint64 `json:"publishes"`
	PublishErrors  uint64 `json:"publish_errors"`
	StateReports   uint64 `json:"state_reports"`
	Movements      uint64 `json:"movements"`
	BadPayloads    uint64 `json:"bad_payloads"`
	EventsRecorded uint64 `json:"events_recorded"`
	EventsDropped  uint64 `json:"events_dropped"`
	RecordErrors   uint64 `json:"record_errors"`
}

type counters struct {
	scans, kept, dropped, restricted    atomic.Uint64
	publishes, publishErrors            atomic.Uint64
	states, movements, badPayloads      atomic.Uint64
	recorded, eventsDropped, recordErrs atomic.Uint64
}

// Node ties the scan handler, the vehicle state handlers and the publish loop
// together. HandleScan and the publish loop share only the BoundsCell.
type Node struct {
	eval      *Evaluator
	tracker   *vehicle.Tracker
	cell      *BoundsCell
	clock     timeutil.Clock
	heartbeat time.Duration

	publishers []Publisher
	recorder   Recorder
	events     chan db.BrakeEvent

	lastMu sync.RWMutex
	last   *Evaluation

	stats counters
}

// Option configures a Node.
type Option func(*Node)

// WithClock sets the clock driving the publish loop and timestamps.
func WithClock(c timeutil.Clock) Option { return func(n *Node) { n.clock = c } }

// WithPublisher adds a publisher. Publishers are called in the order added.
func WithPublisher(p Publisher) Option {
	return func(n *Node) { n.publishers = append(n.publishers, p) }
}

// WithRecorder enables brake event recording with a queue of the given
// capacity. A capacity <= 0 uses the default.
func WithRecorder(r Recorder, capacity int) Option {
	return func(n *Node) {
		if capacity <= 0 {
			capacity = defaultEventQueue
		}
		n.recorder = r
		n.events = make(chan db.BrakeEvent, capacity)
	}
}

// WithHeartbeat sets how often the publish loop logs a summary. Zero
// disables the heartbeat.
func WithHeartbeat(d time.Duration) Option { return func(n *Node) { n.heartbeat = d } }

// NewNode returns a node that starts out publishing the unrestricted bounds.
func NewNode(s Settings, tracker *vehicle.Tracker, opts ...Option) *Node {
	n := &Node{
		eval:      NewEvaluator(s),
		tracker:   tracker,
		clock:     timeutil.RealClock{},
		heartbeat: defaultHeartbeat,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.tracker == nil {
		n.tracker = vehicle.NewTracker(n.clock)
	}
	n.cell = NewBoundsCell(s.Envelope.Limits.Unrestricted(), n.clock.Now())
	return n
}

// Tracker returns the vehicle state tracker owned by the node.
func (n *Node) Tracker() *vehicle.Tracker { return n.tracker }

// Settings returns the node's fixed parameters.
func (n *Node) Settings() Settings { return n.eval.Settings() }

// HandleScan evaluates m against the current vehicle state and stores the
// resulting bounds for the publish loop.
func (n *Node) HandleScan(m *scan.LaserScan) Evaluation {
	ev := n.eval.Evaluate(m, n.tracker.Snapshot())
	now := n.clock.Now()
	n.cell.Store(ev.Bounds(), now)

	n.stats.scans.Add(1)
	n.stats.kept.Add(uint64(ev.Kept))
	n.stats.dropped.Add(uint64(ev.Dropped))

	n.lastMu.Lock()
	n.last = &ev
	n.lastMu.Unlock()

	if n.eval.settings.Envelope.Limits.Restricted(ev.Bounds()) {
		n.stats.restricted.Add(1)
		n.enqueue(ev, now)
	}
	return ev
}

// HandleState ingests a vehicle state report.
func (n *Node) HandleState(r vehicle.Report) {
	n.tracker.Ingest(r)
	n.stats.states.Add(1)
}

// HandleMovement records a movement command. It has no effect on the bounds.
func (n *Node) HandleMovement(m vehicle.Movement) {
	n.tracker.SetTarget(m)
	n.stats.movements.Add(1)
}

// HandleLine decodes one line from the vehicle link and dispatches it.
// Malformed or unrecognised lines are counted and returned as errors.
func (n *Node) HandleLine(line string) error {
	r, m, err := vehicle.Decode([]byte(line))
	if err != nil {
		n.stats.badPayloads.Add(1)
		return err
	}
	if r != nil {
		n.HandleState(*r)
	} else {
		n.HandleMovement(*m)
	}
	return nil
}

// Bounds returns the bounds the publish loop will send next.
func (n *Node) Bounds() Latest { return n.cell.Load() }

// LastEvaluation returns the most recent scan evaluation, if any.
func (n *Node) LastEvaluation() (Evaluation, bool) {
	n.lastMu.RLock()
	defer n.lastMu.RUnlock()
	if n.last == nil {
		return Evaluation{}, false
	}
	return *n.last, true
}

// Stats returns a snapshot of the node's counters.
func (n *Node) Stats() Stats {
	return Stats{
		ScansEvaluated: n.stats.scans.Load(),
		SamplesKept:    n.stats.kept.Load(),
		SamplesDropped: n.stats.dropped.Load(),
		Restricted:     n.stats.restricted.Load(),
		Publishes:      n.stats.publishes.Load(),
		PublishErrors:  n.stats.publishErrors.Load(),
		StateReports:   n.stats.states.Load(),
		Movements:      n.stats.movements.Load(),
		BadPayloads:    n.stats.badPayloads.Load(),
		EventsRecorded: n.stats.recorded.Load(),
		EventsDropped:  n.stats.eventsDropped.Load(),
		RecordErrors:   n.stats.recordErrs.Load(),
	}
}

func (n *Node) enqueue(ev Evaluation, now time.Time) {
	if n.events == nil {
		return
	}
	e := db.BrakeEvent{
		Recorded:       now,
		Policy:         n.eval.settings.Envelope.Policy.Name(),
		SteeringAngle:  ev.State.SteeringAngle,
		Velocity:       ev.State.Velocity,
		MaxBound:       ev.Result.Bounds.Max,
		MinBound:       ev.Result.Bounds.Min,
		InPath:         ev.Result.InPath,
		KeptSamples:    ev.Kept,
		DroppedSamples: ev.Dropped,
	}
	if ev.Result.InPath > 0 {
		closest := ev.Result.Closest
		e.Closest = &closest
	}
	select {
	case n.events <- e:
	default:
		n.stats.eventsDropped.Add(1)
	}
}

// Run publishes the latest bounds every publish interval until ctx is done,
// independently of scan arrival. Queued brake events are recorded while it
// runs. Run returns ctx.Err().
func (n *Node) Run(ctx context.Context) error {
	interval := n.eval.settings.PublishInterval
	if interval <= 0 {
		interval = time.Second / 30
	}

	var wg sync.WaitGroup
	if n.recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.recordEvents(ctx)
		}()
	}
	defer wg.Wait()

	lastBeat := n.clock.Now()
	ticker := n.clock.NewTicker(interval)
	defer ticker.Stop()

	monitoring.Logf("publishing bounds every %v (policy %s)", interval, n.eval.settings.Envelope.Policy.Name())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C():
			n.PublishOnce(ctx)
			if n.heartbeat > 0 && now.Sub(lastBeat) >= n.heartbeat {
				n.logHeartbeat()
				lastBeat = now
			}
		}
	}
}

// PublishOnce sends the current bounds to every publisher.
func (n *Node) PublishOnce(ctx context.Context) {
	b := n.cell.Load().Bounds
	for _, p := range n.publishers {
		if err := p.Publish(ctx, b); err != nil {
			if c := n.stats.publishErrors.Add(1); c%publishErrorLogEvery == 1 {
				monitoring.Logf("publish failed (%d failures so far): %v", c, err)
			}
			continue
		}
		n.stats.publishes.Add(1)
	}
}

func (n *Node) recordEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-n.events:
			if err := n.recorder.RecordEvent(ctx, e); err != nil {
				n.stats.recordErrs.Add(1)
				monitoring.Logf("failed to record brake event: %v", err)
				continue
			}
			n.stats.recorded.Add(1)
		}
	}
}

func (n *Node) logHeartbeat() {
	st := n.Stats()
	latest := n.cell.Load()
	monitoring.L().Infow("heartbeat",
		"max", latest.Bounds.Max,
		"min", latest.Bounds.Min,
		"scans", st.ScansEvaluated,
		"restricted", st.Restricted,
		"publishes", st.Publishes,
		"publish_errors", st.PublishErrors,
		"events_dropped", st.EventsDropped,
	)
}
