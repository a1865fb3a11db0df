package payout

import (
	"context"
	"sync"
)

// Recorder is an in-memory dispatcher used by tests. It records every
// request it sees and answers from a configurable script.
type Recorder struct {
	mu       sync.Mutex
	requests []Request
	results  []Result
	// Default is returned once the scripted results run out.
	Default Result
	// Err, when set, is returned instead of any result.
	Err error
}

func NewRecorder() *Recorder {
	return &Recorder{Default: Result{Success: true, Ref: "recorded"}}
}

func (r *Recorder) Script(results ...Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, results...)
}

func (r *Recorder) Execute(_ context.Context, req Request) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.Err != nil {
		return Result{}, r.Err
	}
	if len(r.results) > 0 {
		res := r.results[0]
		r.results = r.results[1:]
		return res, nil
	}
	return r.Default, nil
}

func (r *Recorder) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Request, len(r.requests))
	copy(out, r.requests)
	return out
}

func (r *Recorder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}
