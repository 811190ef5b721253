package pipeline

import (
	"strings"
	"sync/atomic"
)

// Status is the externally visible lifecycle state of the service. It
// moves forward only: NotInitialized, then Initializing, then exactly one
// terminal state. Failure states carry the stage detail after the
// constant, e.g. "failed_ollama: connection refused".
type Status string

const (
	StatusNotInitialized Status = "not_initialized"
	StatusInitializing   Status = "initializing"
	StatusSuccess        Status = "success"
	StatusFailedOllama   Status = "failed_ollama"
	StatusFailedLLM      Status = "failed_llm"
	StatusFailedIndex    Status = "failed_index"
	StatusFailedGeneral  Status = "failed_general"
)

// withDetail appends what actually broke so health and stats surface it.
func (s Status) withDetail(detail string) Status {
	return Status(string(s) + ": " + detail)
}

// Stage strips any failure detail, returning the bare lifecycle constant.
func (s Status) Stage() Status {
	v := string(s)
	if i := strings.IndexByte(v, ':'); i >= 0 {
		return Status(v[:i])
	}
	return s
}

// Ready reports whether queries can be served in this state.
func (s Status) Ready() bool {
	return s == StatusSuccess
}

// Terminal reports whether initialization has finished, in success or
// failure.
func (s Status) Terminal() bool {
	switch s.Stage() {
	case StatusNotInitialized, StatusInitializing:
		return false
	}
	return true
}

// statusCell is an atomically readable status holder. Only the
// initializer writes it; any goroutine may read it.
type statusCell struct {
	v atomic.Value
}

func newStatusCell() *statusCell {
	c := &statusCell{}
	c.v.Store(StatusNotInitialized)
	return c
}

func (c *statusCell) get() Status {
	return c.v.Load().(Status)
}

func (c *statusCell) set(s Status) {
	c.v.Store(s)
}

// transition atomically moves from one state to another and reports
// whether it won the race.
func (c *statusCell) transition(from, to Status) bool {
	return c.v.CompareAndSwap(from, to)
}
