package workflow

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Estimated upload progress parameters.
const (
	estimateInterval = 200 * time.Millisecond
	estimateCeiling  = 90.0
	estimateMaxStep  = 10.0
)

// EstimatedProgress is a cosmetic percentage that creeps toward a ceiling
// while an upload is running. It says nothing about bytes transferred; use
// gateway.ProgressFunc for that.
type EstimatedProgress struct {
	mu    sync.Mutex
	value float64
	rnd   func() float64
}

// NewEstimatedProgress creates an estimate starting at 0.
func NewEstimatedProgress() *EstimatedProgress {
	return &EstimatedProgress{rnd: rand.Float64}
}

// Step advances the estimate by a random amount, capped at the ceiling.
func (e *EstimatedProgress) Step() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.value >= estimateCeiling {
		return e.value
	}
	e.value = min(e.value+e.rnd()*estimateMaxStep, estimateCeiling)
	return e.value
}

// Finish jumps to 100.
func (e *EstimatedProgress) Finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = 100
}

// Value returns the current estimate.
func (e *EstimatedProgress) Value() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Run calls fn with a new estimate on every tick until ctx is done.
func (e *EstimatedProgress) Run(ctx context.Context, fn func(float64)) {
	ticker := time.NewTicker(estimateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(e.Step())
		}
	}
}
