package shmvars

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCaptureKeepsTaxonomy(t *testing.T) {
	tracker := NewFaultTracker()
	cause := Errorf(SegmentNotFound, "seg1", "no such segment")

	r := tracker.Capture(cause, "seg1", Mask{})
	if r.State != Failed {
		t.Fatalf("got state %v, want Failed", r.State)
	}
	if r.Code != SegmentNotFound {
		t.Errorf("got code %v, want SegmentNotFound", r.Code)
	}

	f, ok := r.Data.(*Fault)
	if !ok {
		t.Fatalf("Data is %T, want *Fault", r.Data)
	}
	if f.ID.IsNil() {
		t.Error("fault id not assigned")
	}
	if f.Input != "seg1" {
		t.Errorf("input context %v, want seg1", f.Input)
	}
	if !strings.Contains(f.Location, "fault_test.go") {
		t.Errorf("location %q does not point at the caller", f.Location)
	}
	if f.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestCaptureMasking(t *testing.T) {
	tracker := NewFaultTracker()
	r := tracker.Capture(errors.New("boom"), "secret-input", MaskAll)

	f := r.Data.(*Fault)
	for name, field := range map[string]any{"input": f.Input, "stack": f.Stack, "host": f.Host} {
		if field != "<masked>" {
			t.Errorf("%s not masked: %v", name, field)
		}
	}
}

func TestCaptureCancellation(t *testing.T) {
	tracker := NewFaultTracker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := tracker.Capture(ctx.Err(), nil, Mask{})
	if r.State != Canceled {
		t.Errorf("got state %v, want Canceled", r.State)
	}
}

func TestHostInfoPopulated(t *testing.T) {
	tracker := NewFaultTracker()
	info := tracker.Host()
	if info.OS == "" || info.Arch == "" || info.GoVersion == "" {
		t.Errorf("host info incomplete: %+v", info)
	}
}
