package timectrl

import (
	"context"
	"sync"
	"time"
)

// Mode describes how the FrameController paces frames.
type Mode int

const (
	// RealTime paces frames with a wall-clock ticker at the configured
	// interval. Listeners receive the measured delta between fires, which is
	// not guaranteed to equal the interval.
	RealTime Mode = iota
	// Accelerated fires frames as fast as the loop can run, advancing a
	// synthetic clock by exactly one interval per frame. Useful for headless
	// playback and tests.
	Accelerated
)

// FrameController drives the render-frame cadence and fans each frame out to
// registered listeners. It is the single goroutine from which the engine's
// Frame method is called.
type FrameController struct {
	mu       sync.RWMutex
	Interval time.Duration
	Mode     Mode

	current   time.Time
	listeners []func(now time.Time, dt time.Duration)
}

// NewFrameController constructs a controller firing at the given interval.
func NewFrameController(interval time.Duration, mode Mode) *FrameController {
	if interval <= 0 {
		interval = time.Second / 30
	}
	return &FrameController{Interval: interval, Mode: mode}
}

// Now returns the time of the most recent frame.
func (fc *FrameController) Now() time.Time {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.current
}

// AddListener registers a callback invoked on every frame with the frame
// instant and the measured delta since the previous frame.
func (fc *FrameController) AddListener(fn func(now time.Time, dt time.Duration)) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.listeners = append(fc.listeners, fn)
}

// Run drives frames until ctx is cancelled. In RealTime mode it blocks on a
// ticker; in Accelerated mode it spins, stepping the synthetic clock by one
// interval per frame.
func (fc *FrameController) Run(ctx context.Context) {
	switch fc.Mode {
	case Accelerated:
		fc.runAccelerated(ctx)
	default:
		fc.runRealTime(ctx)
	}
}

// Start runs the controller in a separate goroutine and returns a channel
// that is closed when it finishes.
func (fc *FrameController) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fc.Run(ctx)
	}()
	return done
}

func (fc *FrameController) runRealTime(ctx context.Context) {
	ticker := time.NewTicker(fc.Interval)
	defer ticker.Stop()

	prev := time.Now()
	fc.setCurrent(prev)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(prev)
			if dt < 0 {
				dt = 0
			}
			prev = now
			fc.fire(now, dt)
		}
	}
}

func (fc *FrameController) runAccelerated(ctx context.Context) {
	now := time.Now()
	fc.setCurrent(now)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		now = now.Add(fc.Interval)
		fc.fire(now, fc.Interval)
	}
}

func (fc *FrameController) fire(now time.Time, dt time.Duration) {
	fc.mu.Lock()
	fc.current = now
	listeners := make([]func(time.Time, time.Duration), len(fc.listeners))
	copy(listeners, fc.listeners)
	fc.mu.Unlock()

	for _, fn := range listeners {
		fn(now, dt)
	}
}

func (fc *FrameController) setCurrent(t time.Time) {
	fc.mu.Lock()
	fc.current = t
	fc.mu.Unlock()
}
