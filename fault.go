package shmvars

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

const masked = "<masked>"

// HostInfo is the machine metadata attached to captured faults. It is
// gathered once per tracker since none of it changes over a process lifetime.
type HostInfo struct {
	OS              string
	Platform        string
	PlatformVersion string
	KernelVersion   string
	Arch            string
	Hostname        string
	GoVersion       string
	WorkingDir      string
}

// Mask selects which parts of a captured fault are replaced by "<masked>"
// before the fault leaves the process, e.g. when failures are shipped to a
// log sink that must not see inputs or machine identity.
type Mask struct {
	Input bool
	Stack bool
	Host  bool
}

// MaskAll hides input, stack and host metadata.
var MaskAll = Mask{Input: true, Stack: true, Host: true}

// Fault is the structured failure detail carried in a failed Result's Data.
type Fault struct {
	ID        UUID
	Code      ErrorCode
	Message   string
	Location  string
	Timestamp time.Time
	Input     any
	Stack     any
	Host      any
}

// FaultTracker converts raised errors into the uniform outcome contract.
// Every public operation of the store funnels unexpected faults through a
// tracker so that no error crosses the API boundary as a raw failure.
type FaultTracker struct {
	host HostInfo
}

// NewFaultTracker builds a tracker, snapshotting host metadata up front.
func NewFaultTracker() *FaultTracker {
	info := HostInfo{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		GoVersion: runtime.Version(),
	}
	if hi, err := host.Info(); err == nil {
		info.Hostname = hi.Hostname
		info.Platform = hi.Platform
		info.PlatformVersion = hi.PlatformVersion
		info.KernelVersion = hi.KernelVersion
	}
	if wd, err := os.Getwd(); err == nil {
		info.WorkingDir = wd
	} else {
		info.WorkingDir = "<unavailable>"
	}
	return &FaultTracker{host: info}
}

// Host returns the tracker's host metadata snapshot.
func (t *FaultTracker) Host() HostInfo {
	return t.host
}

// Location reports the source location of the caller skip frames up, in the
// form "'file', line N, in function".
func Location(skip int) string {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "<unknown>"
	}
	fn := "<unknown>"
	if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
	}
	return fmt.Sprintf("'%s', line %d, in %s", file, line, fn)
}

// Capture converts err into a failed Result. The error's code is preserved
// when it is an *Error; anything else is classified Unknown. input is the
// caller-supplied operation context (offending key, segment name, ...).
// A context cancellation or deadline yields a Canceled result instead.
func (t *FaultTracker) Capture(err error, input any, mask Mask) Result {
	return t.CaptureSkip(err, input, mask, 1)
}

// CaptureSkip is Capture with extra stack frames skipped, for wrappers that
// funnel their failures through a shared helper and want the location to
// point at the operation rather than the helper.
func (t *FaultTracker) CaptureSkip(err error, input any, mask Mask, skip int) Result {
	location := Location(skip + 1)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancel(err, location)
	}

	f := &Fault{
		ID:        NewUUID(),
		Code:      Classify(err),
		Message:   err.Error(),
		Location:  location,
		Timestamp: time.Now(),
		Input:     input,
		Stack:     string(debug.Stack()),
		Host:      t.host,
	}
	if mask.Input {
		f.Input = masked
	}
	if mask.Stack {
		f.Stack = masked
	}
	if mask.Host {
		f.Host = masked
	}

	return Fail(err, location, f)
}
