package shmvars

import (
	"errors"
	"strings"
	"testing"
)

func TestResultOK(t *testing.T) {
	r := OK(42)
	if !r.Success() {
		t.Fatal("expected success")
	}
	if r.Data != 42 {
		t.Errorf("got data %v, want 42", r.Data)
	}
	if r.Err() != nil {
		t.Errorf("expected nil Err, got %v", r.Err())
	}
	if got := r.Must(); got != 42 {
		t.Errorf("Must returned %v, want 42", got)
	}
}

func TestResultFailKeepsCode(t *testing.T) {
	cause := Errorf(KeyNotFound, "foo", "variable %q does not exist", "foo")
	r := Fail(cause, "ctx", nil)
	if r.Success() {
		t.Fatal("expected failure")
	}
	if r.Code != KeyNotFound {
		t.Errorf("got code %v, want KeyNotFound", r.Code)
	}

	err := r.Err()
	if err == nil {
		t.Fatal("expected non-nil Err")
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("Err is %T, want *Error", err)
	}
	if e.Code != KeyNotFound {
		t.Errorf("unwrapped code %v, want KeyNotFound", e.Code)
	}
}

func TestResultErrPrintsCodeOnce(t *testing.T) {
	cause := Errorf(KeyExists, "k", "variable %q already exists", "k")
	r := Fail(cause, "ctx", nil)

	msg := r.Err().Error()
	if got := strings.Count(msg, "KeyExists"); got != 1 {
		t.Errorf("code appears %d times in %q, want once", got, msg)
	}
}

func TestResultMustPanicsOnFailure(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Must to panic on a failed result")
		}
	}()
	Fail(errors.New("boom"), "", nil).Must()
}

func TestClassify(t *testing.T) {
	if got := Classify(errors.New("plain")); got != Unknown {
		t.Errorf("plain error classified as %v, want Unknown", got)
	}
	wrapped := Errorf(CapacityExceeded, "seg", "too big")
	if got := Classify(wrapped); got != CapacityExceeded {
		t.Errorf("got %v, want CapacityExceeded", got)
	}
}
