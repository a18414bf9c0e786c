package tts

import (
	"fmt"
	"math"
)

// Speed bounds accepted by the synthesizer, and the preset spacing used by
// the player's speed keys.
const (
	DefaultSpeed = 1.0
	MinSpeed     = 0.8
	MaxSpeed     = 1.2
	SpeedStep    = 0.1
)

// SpeedPresets returns the speeds from MinSpeed to MaxSpeed in SpeedStep
// increments.
func SpeedPresets() []float64 {
	n := int(math.Round((MaxSpeed-MinSpeed)/SpeedStep)) + 1
	presets := make([]float64, n)
	for i := range presets {
		// rounded so presets compare equal to literals like 1.1
		presets[i] = math.Round((MinSpeed+float64(i)*SpeedStep)*100) / 100
	}
	return presets
}

// SpeedController walks the speed presets for the next generation run. It
// is owned by one goroutine.
type SpeedController struct {
	presets []float64
	index   int
}

// NewSpeedController starts at the preset nearest to speed. A speed outside
// the synthesizer bounds starts at DefaultSpeed.
func NewSpeedController(speed float64) *SpeedController {
	sc := &SpeedController{presets: SpeedPresets()}
	if err := sc.SetSpeed(speed); err != nil {
		_ = sc.SetSpeed(DefaultSpeed)
	}
	return sc
}

// Speed returns the selected preset.
func (sc *SpeedController) Speed() float64 {
	return sc.presets[sc.index]
}

// SetSpeed selects the preset nearest to speed.
func (sc *SpeedController) SetSpeed(speed float64) error {
	if err := ValidateSpeed(speed); err != nil {
		return err
	}
	best := math.MaxFloat64
	for i, p := range sc.presets {
		if d := math.Abs(p - speed); d < best {
			best, sc.index = d, i
		}
	}
	return nil
}

// Faster moves one preset up. At the top it returns an error and keeps the
// current speed.
func (sc *SpeedController) Faster() (float64, error) {
	if sc.index == len(sc.presets)-1 {
		return sc.Speed(), fmt.Errorf("already at maximum speed %s", sc)
	}
	sc.index++
	return sc.Speed(), nil
}

// Slower moves one preset down.
func (sc *SpeedController) Slower() (float64, error) {
	if sc.index == 0 {
		return sc.Speed(), fmt.Errorf("already at minimum speed %s", sc)
	}
	sc.index--
	return sc.Speed(), nil
}

func (sc *SpeedController) String() string {
	return fmt.Sprintf("%.1fx", sc.Speed())
}

// ValidateSpeed checks a speed multiplier against the synthesizer bounds.
func ValidateSpeed(speed float64) error {
	if speed < MinSpeed-1e-9 || speed > MaxSpeed+1e-9 || math.IsNaN(speed) {
		return fmt.Errorf("%w: speed must be between %.1f and %.1f, got %.2f", ErrInvalidSpeed, MinSpeed, MaxSpeed, speed)
	}
	return nil
}

// ValidateQuality checks a refinement step count against the synthesizer bounds.
func ValidateQuality(quality int) error {
	if quality < MinQuality || quality > MaxQuality {
		return fmt.Errorf("%w: quality must be between %d and %d, got %d", ErrInvalidQuality, MinQuality, MaxQuality, quality)
	}
	return nil
}
