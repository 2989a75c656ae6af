package camera

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
)

// fakeDeviceChecker lets tests control which device paths "exist" without
// touching the real filesystem.
type fakeDeviceChecker struct {
	present map[string]bool
}

func (f *fakeDeviceChecker) Exists(path string) bool { return f.present[path] }

// fakeProcess is a no-op Process double.
type fakeProcess struct {
	pid      int
	waitErr  error
	signaled []os.Signal
	mu       sync.Mutex
}

func (p *fakeProcess) Pid() int { return p.pid }
func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signaled = append(p.signaled, sig)
	return nil
}
func (p *fakeProcess) Wait() error { return p.waitErr }

// fakeRunner records every Start/StartWithStdout call and either succeeds
// with a fakeProcess or returns a configured failure.
type fakeRunner struct {
	mu       sync.Mutex
	calls    []string
	failNext bool
	failErr  error
}

func (r *fakeRunner) Start(_ context.Context, name string, args []string) (Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	if r.failNext {
		r.failNext = false
		return nil, r.failErr
	}
	return &fakeProcess{pid: 1234}, nil
}

func (r *fakeRunner) StartWithStdout(_ context.Context, name string, args []string) (Process, io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	if r.failNext {
		r.failNext = false
		return nil, nil, r.failErr
	}
	pr, pw := io.Pipe()
	pw.Close()
	return &fakeProcess{pid: 5678}, pr, nil
}

func (r *fakeRunner) StartWithStdin(_ context.Context, name string, args []string) (Process, io.WriteCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	if r.failNext {
		r.failNext = false
		return nil, nil, r.failErr
	}
	pr, pw := io.Pipe()
	go io.Copy(io.Discard, pr)
	return &fakeProcess{pid: 9012}, pw, nil
}

var errFakeStart = errors.New("fake start failure")
