package core

import (
	"math"

	"github.com/aexis-io/aexis/model"
)

// MotionConfig tunes the dead-reckoning reconciliation. The thresholds are
// tunables, not calibrated laws; the defaults match the upstream system.
type MotionConfig struct {
	// Deadband is the error magnitude below which the visual distance snaps
	// to the authoritative distance exactly, eliminating residual drift.
	Deadband float64
	// CorrectionGain is the fraction of the remaining error blended into the
	// visual distance each frame when outside the deadband.
	CorrectionGain float64
	// SnapJump is the discrepancy above which correction is bypassed and the
	// visual distance is forced to the authoritative distance immediately.
	// It subsumes teleports and missed intermediate updates.
	SnapJump float64
}

// DefaultMotionConfig returns the standard tuning.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		Deadband:       0.1,
		CorrectionGain: 0.15,
		SnapJump:       100,
	}
}

func (c MotionConfig) withDefaults() MotionConfig {
	d := DefaultMotionConfig()
	if c.Deadband <= 0 {
		c.Deadband = d.Deadband
	}
	if c.CorrectionGain <= 0 || c.CorrectionGain >= 1 {
		c.CorrectionGain = d.CorrectionGain
	}
	if c.SnapJump <= 0 {
		c.SnapJump = d.SnapJump
	}
	return c
}

// Reconciler advances agents' visual distances once per frame: extrapolation
// from the last known velocity, exponential correction toward the
// authoritative distance, and an unconditional clamp to the spine's length.
// It is the sole owner of Agent.VisualDistance.
type Reconciler struct {
	cfg MotionConfig
}

// NewReconciler constructs a reconciler with the given tuning; zero values
// fall back to the defaults.
func NewReconciler(cfg MotionConfig) *Reconciler {
	return &Reconciler{cfg: cfg.withDefaults()}
}

// Config returns the effective tuning.
func (rc *Reconciler) Config() MotionConfig { return rc.cfg }

// Step advances one agent by dt seconds against the given graph and returns
// the agent's render sample. The second return is false when the agent must
// be skipped this frame: its spine ID does not resolve against the current
// graph (a transient reload/update race, retried next frame). A skip never
// affects other agents.
func (rc *Reconciler) Step(g *Graph, a *model.Agent, dt float64) (SamplePoint, bool) {
	if a.Residency.Type == model.ResidencyAtNode {
		// Pinned directly to the node coordinate; no extrapolation.
		return SamplePoint{Position: a.Pinned, Tangent: defaultTangent}, true
	}

	spine, ok := g.Spine(a.Residency.SpineID)
	if !ok {
		return SamplePoint{}, false
	}

	if a.Velocity > 0 && dt > 0 {
		a.VisualDistance += a.Velocity * dt
	}

	err := a.AuthoritativeDistance - a.VisualDistance
	switch {
	case math.Abs(err) > rc.cfg.SnapJump:
		a.VisualDistance = a.AuthoritativeDistance
	case math.Abs(err) > rc.cfg.Deadband:
		a.VisualDistance += rc.cfg.CorrectionGain * err
	default:
		a.VisualDistance = a.AuthoritativeDistance
	}

	// Invariant guard: the sampler must never see an out-of-range distance.
	if a.VisualDistance < 0 {
		a.VisualDistance = 0
	} else if a.VisualDistance > spine.TotalLength {
		a.VisualDistance = spine.TotalLength
	}

	return spine.Sample(a.VisualDistance), true
}
