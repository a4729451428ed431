package detection

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcuadros/go-defaults"
)

// Config holds every threshold, scale and physical constant the detector uses.
type Config struct {
	Cooldown time.Duration `yaml:"cooldown" json:"cooldown" default:"500ms"`

	AccScale  float64 `yaml:"acc_scale" json:"acc_scale" default:"1000"`
	GyroScale float64 `yaml:"gyro_scale" json:"gyro_scale" default:"250"`

	SlapMinAcc       float64 `yaml:"slap_min_acc" json:"slap_min_acc" default:"0.8"`
	SlapMinGyro      float64 `yaml:"slap_min_gyro" json:"slap_min_gyro" default:"3.0"`
	SlapAccDivisor   float64 `yaml:"slap_acc_divisor" json:"slap_acc_divisor" default:"2.0"`
	SlapGyroDivisor  float64 `yaml:"slap_gyro_divisor" json:"slap_gyro_divisor" default:"50.0"`
	KickMinAcc       float64 `yaml:"kick_min_acc" json:"kick_min_acc" default:"0.8"`
	KickMaxAccZ      float64 `yaml:"kick_max_acc_z" json:"kick_max_acc_z" default:"0.2"`
	KickMaxGyro      float64 `yaml:"kick_max_gyro" json:"kick_max_gyro" default:"10.0"`
	KickAccDivisor   float64 `yaml:"kick_acc_divisor" json:"kick_acc_divisor" default:"3.0"`
	HandMassFraction float64 `yaml:"hand_mass_fraction" json:"hand_mass_fraction" default:"0.027"`
	FootMassFraction float64 `yaml:"foot_mass_fraction" json:"foot_mass_fraction" default:"0.062"`
	HandBaseVelocity float64 `yaml:"hand_base_velocity" json:"hand_base_velocity" default:"10.0"`
	FootBaseVelocity float64 `yaml:"foot_base_velocity" json:"foot_base_velocity" default:"15.0"`
	MaxIntensity     float64 `yaml:"max_intensity" json:"max_intensity" default:"2.0"`
	IntensityDivisor float64 `yaml:"intensity_divisor" json:"intensity_divisor" default:"2.0"`
	Gravity          float64 `yaml:"gravity" json:"gravity" default:"9.81"`
	JointStiffness   float64 `yaml:"joint_stiffness" json:"joint_stiffness" default:"1.8"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	var cfg Config
	defaults.SetDefaults(&cfg)
	return cfg
}

// Validate rejects values that would make the arithmetic meaningless.
func (c Config) Validate() error {
	var errs []error
	if c.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown must not be negative, got %s", c.Cooldown))
	}

	positive := []struct {
		name  string
		value float64
	}{
		{"acc_scale", c.AccScale},
		{"gyro_scale", c.GyroScale},
		{"slap_acc_divisor", c.SlapAccDivisor},
		{"slap_gyro_divisor", c.SlapGyroDivisor},
		{"kick_acc_divisor", c.KickAccDivisor},
		{"intensity_divisor", c.IntensityDivisor},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %g", p.name, p.value))
		}
	}
	return errors.Join(errs...)
}
