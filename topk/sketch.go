package topk

import (
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/keilerkonzept/topk/sliding"
)

// SketchParams configures a TopKSketch.
type SketchParams struct {
	K          int
	WindowSize int // number of ticks the sliding window spans
	Width      int
	Depth      int
	TickSize   uint64 // requests per tick

	// MaxSharePercent is the share of the window an item may own before it
	// is reported.
	MaxSharePercent int
	// ActivationRPS is the request rate below which nothing is reported.
	ActivationRPS int
}

// TopKSketch counts heavy hitters over a sliding window of ticks. A tick
// closes every TickSize requests.
type TopKSketch struct {
	mu              sync.Mutex
	clock           clock.Clock
	sketch          *sliding.Sketch
	tickSize        uint64
	tickReq         uint64
	threshold       uint32
	maxSharePercent int
	activationRPS   int
	lastTick        time.Time
}

// New creates a sketch. A nil clock means the wall clock.
func New(params SketchParams, clk clock.Clock) *TopKSketch {
	if clk == nil {
		clk = clock.WallClock
	}
	if params.TickSize == 0 {
		params.TickSize = 100
	}

	windowCapacity := uint64(params.WindowSize) * params.TickSize

	return &TopKSketch{
		clock:           clk,
		sketch:          sliding.New(params.K, params.WindowSize, sliding.WithWidth(params.Width), sliding.WithDepth(params.Depth)),
		tickSize:        params.TickSize,
		threshold:       uint32(windowCapacity * uint64(params.MaxSharePercent) / 100),
		maxSharePercent: params.MaxSharePercent,
		activationRPS:   params.ActivationRPS,
		lastTick:        clk.Now(),
	}
}

// ProcessTick counts one request for item. When the request closes a tick
// and the rate of that tick reached ActivationRPS, it returns the items whose
// windowed count exceeds the share threshold.
func (cs *TopKSketch) ProcessTick(item string) []string {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.sketch.Incr(item)
	cs.tickReq++
	if cs.tickReq < cs.tickSize {
		return nil
	}

	now := cs.clock.Now()
	elapsed := now.Sub(cs.lastTick)
	cs.lastTick = now
	cs.tickReq = 0

	var offenders []string
	if cs.active(elapsed) {
		for _, it := range cs.sketch.SortedSlice() {
			if it.Count <= cs.threshold {
				break // sorted
			}
			offenders = append(offenders, it.Item)
		}
	}

	cs.sketch.Tick()
	return offenders
}

// A zero elapsed time counts as an unbounded rate.
func (cs *TopKSketch) active(elapsed time.Duration) bool {
	if elapsed <= 0 {
		return true
	}
	rps := float64(cs.tickSize) / elapsed.Seconds()
	return rps >= float64(cs.activationRPS)
}
