package config

import (
	"context"
	"errors"
	"testing"
)

func TestFrameSizeApplier(t *testing.T) {
	var calls []int
	fail := false
	a := NewFrameSizeApplier(1, func(_ context.Context, index int) error {
		calls = append(calls, index)
		if fail {
			return errors.New("device busy")
		}
		return nil
	})

	steps := []struct {
		name       string
		index      int
		fail       bool
		wantCalled bool
		wantErr    bool
	}{
		{"same as startup", 1, false, false, false},
		{"unset", -1, false, false, false},
		{"changed", 2, false, true, false},
		{"unchanged after change", 2, false, false, false},
		{"failed resize", 0, true, true, true},
		{"retried after failure", 0, false, true, false},
		{"unchanged after retry", 0, false, false, false},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			fail = step.fail
			called, err := a.Apply(context.Background(), step.index)
			if called != step.wantCalled {
				t.Errorf("Apply(%d) called = %v, want %v", step.index, called, step.wantCalled)
			}
			if (err != nil) != step.wantErr {
				t.Errorf("Apply(%d) error = %v, wantErr %v", step.index, err, step.wantErr)
			}
		})
	}

	want := []int{2, 0, 0}
	if len(calls) != len(want) {
		t.Fatalf("resize calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("resize calls = %v, want %v", calls, want)
			break
		}
	}
}
