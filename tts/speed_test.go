package tts

import (
	"errors"
	"math"
	"testing"
)

func TestSpeedPresets(t *testing.T) {
	want := []float64{0.8, 0.9, 1.0, 1.1, 1.2}
	got := SpeedPresets()
	if len(got) != len(want) {
		t.Fatalf("SpeedPresets() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("preset %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNewSpeedController(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		want  float64
	}{
		{"default", 1.0, 1.0},
		{"snaps to nearest", 1.14, 1.1},
		{"out of range", 3.0, DefaultSpeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSpeedController(tt.speed).Speed(); got != tt.want {
				t.Errorf("Speed() = %v, want %v", got, tt.want)
			}
		})
	}

	if s := NewSpeedController(0.9).String(); s != "0.9x" {
		t.Errorf("String() = %q, want 0.9x", s)
	}
}

func TestSpeedControllerSetSpeed(t *testing.T) {
	sc := NewSpeedController(DefaultSpeed)

	tests := []struct {
		name      string
		speed     float64
		expected  float64
		wantError bool
	}{
		{"exact match 0.8", 0.8, 0.8, false},
		{"exact match 1.2", 1.2, 1.2, false},
		{"nearest to 0.93", 0.93, 0.9, false},
		{"out of range low", 0.5, 0.9, true},
		{"out of range high", 2.0, 0.9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sc.SetSpeed(tt.speed)
			if (err != nil) != tt.wantError {
				t.Errorf("SetSpeed() error = %v, wantError %v", err, tt.wantError)
			}
			if tt.wantError && !errors.Is(err, ErrInvalidSpeed) {
				t.Errorf("SetSpeed() error = %v, want ErrInvalidSpeed", err)
			}
			if math.Abs(sc.Speed()-tt.expected) > 0.001 {
				t.Errorf("Speed() = %.2f, want %.2f", sc.Speed(), tt.expected)
			}
		})
	}
}

func TestSpeedControllerSteps(t *testing.T) {
	sc := NewSpeedController(DefaultSpeed)

	for _, want := range []float64{1.1, 1.2} {
		got, err := sc.Faster()
		if err != nil {
			t.Fatalf("Faster() error = %v", err)
		}
		if got != want {
			t.Errorf("Faster() = %v, want %v", got, want)
		}
	}
	if got, err := sc.Faster(); err == nil || got != MaxSpeed {
		t.Errorf("Faster() at the top = %v, %v", got, err)
	}

	for range 4 {
		if _, err := sc.Slower(); err != nil {
			t.Fatalf("Slower() error = %v", err)
		}
	}
	if sc.Speed() != MinSpeed {
		t.Errorf("Speed() = %v, want %v", sc.Speed(), MinSpeed)
	}
	if _, err := sc.Slower(); err == nil {
		t.Error("Slower() at the bottom succeeded")
	}
}

func TestValidateQuality(t *testing.T) {
	tests := []struct {
		quality int
		valid   bool
	}{
		{0, false},
		{1, true},
		{5, true},
		{50, true},
		{51, false},
	}

	for _, tt := range tests {
		err := ValidateQuality(tt.quality)
		if (err == nil) != tt.valid {
			t.Errorf("ValidateQuality(%d) error = %v, valid %v", tt.quality, err, tt.valid)
		}
		if err != nil && !errors.Is(err, ErrInvalidQuality) {
			t.Errorf("ValidateQuality(%d) error should wrap ErrInvalidQuality", tt.quality)
		}
	}
}

func TestGapSamples(t *testing.T) {
	tests := []struct {
		rate int
		want int
	}{
		{44100, 22050},
		{24000, 12000},
		{22050, 11025},
		{16001, 8001},
	}

	for _, tt := range tests {
		if got := GapSamples(tt.rate); got != tt.want {
			t.Errorf("GapSamples(%d) = %d, want %d", tt.rate, got, tt.want)
		}
	}
}
