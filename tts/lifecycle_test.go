package tts

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func recorder(order *[]string, name string) LifecycleComponent {
	return FuncComponent{
		Label: name,
		Stop: func(context.Context) error {
			*order = append(*order, name)
			return nil
		},
	}
}

// TestLifecycleStageOrder tests that stages stop in order regardless of
// registration order, and reverse registration order within a stage.
func TestLifecycleStageOrder(t *testing.T) {
	lm := NewLifecycleManager()

	var order []string
	lm.Register(StageStorage, recorder(&order, "memory cache"))
	lm.Register(StageStorage, recorder(&order, "disk cache"))
	lm.Register(StageDevice, recorder(&order, "device"))
	lm.Register(StageTelemetry, recorder(&order, "telemetry"))
	lm.Register(StagePlayback, recorder(&order, "session"))

	if err := lm.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	want := "session,telemetry,device,disk cache,memory cache"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("shutdown order = %s, want %s", got, want)
	}

	// Second shutdown is a no-op.
	if err := lm.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
	if len(order) != 5 {
		t.Errorf("components stopped %d times, want 5", len(order))
	}
}

// TestLifecyclePollingStopsBeforeDevice tests that a canceled polling
// context is observed before the device is released.
func TestLifecyclePollingStopsBeforeDevice(t *testing.T) {
	lm := NewLifecycleManager()
	ctx, cancel := context.WithCancel(context.Background())

	pollingStopped := false
	lm.Register(StageDevice, CloseFunc("device", func() error {
		pollingStopped = ctx.Err() != nil
		return nil
	}))
	lm.Register(StagePlayback, FuncComponent{
		Label: "poller",
		Stop: func(context.Context) error {
			cancel()
			return nil
		},
	})

	if err := lm.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !pollingStopped {
		t.Error("device released while polling was still running")
	}
}

// TestLifecycleForceStop tests the fallback to ForceStop.
func TestLifecycleForceStop(t *testing.T) {
	tests := []struct {
		name     string
		forceErr error
		wantErr  bool
	}{
		{"force succeeds", nil, false},
		{"force fails", errors.New("still busy"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lm := NewLifecycleManager()

			forced := false
			lm.Register(StageDevice, FuncComponent{
				Label: "stubborn",
				Stop:  func(context.Context) error { return errors.New("busy") },
				Force: func() error {
					forced = true
					return tt.forceErr
				},
			})

			err := lm.Shutdown()
			if !forced {
				t.Error("ForceStop should be called when Shutdown fails")
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("Shutdown() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !strings.Contains(err.Error(), "stubborn") {
					t.Errorf("error %q should name the component", err)
				}
				if !errors.Is(err, tt.forceErr) {
					t.Errorf("error %v should wrap %v", err, tt.forceErr)
				}
				if again := lm.Shutdown(); !errors.Is(again, tt.forceErr) {
					t.Errorf("second Shutdown() = %v, want first result", again)
				}
			}
		})
	}
}

// TestLifecycleLateRegister tests that components registered after
// shutdown are released at once.
func TestLifecycleLateRegister(t *testing.T) {
	lm := NewLifecycleManager()
	if err := lm.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	var order []string
	lm.Register(StageStorage, recorder(&order, "late cache"))
	if len(order) != 1 {
		t.Errorf("late component released %d times, want 1", len(order))
	}
}

// TestLifecycleWatch tests that canceling the watched context detaches it.
func TestLifecycleWatch(t *testing.T) {
	lm := NewLifecycleManager()
	ctx, cancel := lm.Watch(context.Background())
	cancel()
	<-ctx.Done()
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Errorf("ctx.Err() = %v, want context.Canceled", ctx.Err())
	}
}

func TestStageString(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StagePlayback, "playback"},
		{StageTelemetry, "telemetry"},
		{StageDevice, "device"},
		{StageStorage, "storage"},
		{Stage(9), "stage(9)"},
	}
	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Errorf("Stage(%d).String() = %q, want %q", int(tt.stage), got, tt.want)
		}
	}
}
