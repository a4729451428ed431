// Package detection classifies sensor samples into combat events.
package detection

import (
	"math"

	"github.com/srg/beathard/internal/frame"
)

// Detector is the per-limb classifier for one session. It is not safe for
// concurrent use; each session feeds its detector from a single goroutine.
type Detector struct {
	cfg        Config
	limb       Limb
	competitor *Competitor

	lastEvent int64
	fired     bool
}

// NewDetector binds a detector to a limb and, optionally, a competitor.
// Without a competitor no events are produced.
func NewDetector(limb Limb, competitor *Competitor, cfg Config) *Detector {
	return &Detector{cfg: cfg, limb: limb, competitor: competitor}
}

func (d *Detector) Limb() Limb { return d.limb }

func (d *Detector) Competitor() *Competitor { return d.competitor }

// Detect classifies a sample. The second result is false when no event fired.
func (d *Detector) Detect(s frame.Sample) (Event, bool) {
	if d.competitor == nil {
		return Event{}, false
	}
	if d.fired && s.Timestamp-d.lastEvent < d.cfg.Cooldown.Milliseconds() {
		return Event{}, false
	}

	accX := float64(s.AccX) / d.cfg.AccScale
	accY := float64(s.AccY) / d.cfg.AccScale
	accZ := float64(s.AccZ) / d.cfg.AccScale
	gyroX := float64(s.GyroX) / d.cfg.GyroScale
	gyroY := float64(s.GyroY) / d.cfg.GyroScale
	gyroZ := float64(s.GyroZ) / d.cfg.GyroScale

	accMag := math.Sqrt(accX*accX + accY*accY + accZ*accZ)
	gyroMag := math.Sqrt(gyroX*gyroX + gyroY*gyroY + gyroZ*gyroZ)

	var (
		eventType  EventType
		confidence float64
	)
	switch {
	case d.limb.IsHand():
		if accMag < d.cfg.SlapMinAcc || gyroMag < d.cfg.SlapMinGyro {
			return Event{}, false
		}
		eventType = Slap
		confidence = (accMag-d.cfg.SlapMinAcc)/d.cfg.SlapAccDivisor +
			(gyroMag-d.cfg.SlapMinGyro)/d.cfg.SlapGyroDivisor
	case d.limb.IsFoot():
		// The gyro bound is a ceiling: fast rotation means a medium or high kick.
		if accMag < d.cfg.KickMinAcc || accZ > d.cfg.KickMaxAccZ || gyroMag > d.cfg.KickMaxGyro {
			return Event{}, false
		}
		eventType = LowKick
		confidence = (accMag - d.cfg.KickMinAcc) / d.cfg.KickAccDivisor
	default:
		return Event{}, false
	}

	velocity, acceleration, force := d.physics(accMag)

	d.lastEvent = s.Timestamp
	d.fired = true

	return Event{
		EventType:      eventType,
		LimbName:       d.limb.DisplayName(),
		FighterID:      d.competitor.FighterID(),
		CompetitorName: d.competitor.Name,
		Velocity:       velocity,
		Acceleration:   acceleration,
		Force:          force,
		Timestamp:      s.Timestamp,
		Confidence:     clamp01(confidence),
	}, true
}

func (d *Detector) physics(accMag float64) (velocity, acceleration, force float64) {
	massFraction, baseVelocity := d.cfg.HandMassFraction, d.cfg.HandBaseVelocity
	if d.limb.IsFoot() {
		massFraction, baseVelocity = d.cfg.FootMassFraction, d.cfg.FootBaseVelocity
	}

	limbMass := d.competitor.Weight * massFraction
	intensity := math.Min(d.cfg.MaxIntensity, accMag/d.cfg.IntensityDivisor)

	velocity = baseVelocity * intensity
	acceleration = accMag * d.cfg.Gravity
	force = limbMass * acceleration * d.cfg.JointStiffness
	return velocity, acceleration, force
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
