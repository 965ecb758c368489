package api

import (
	"fmt"
	"sync"
)

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Cost estimates the cost in USD at Sonnet list prices
// ($3/1M input, $15/1M output).
func (t *TokenTracker) Cost() float64 {
	in, out := t.Total()
	return float64(in)/1_000_000*3.0 + float64(out)/1_000_000*15.0
}

// String summarizes usage for log lines.
func (t *TokenTracker) String() string {
	in, out := t.Total()
	return fmt.Sprintf("%d call(s), %d in / %d out tokens, ~$%.4f", t.Calls(), in, out, t.Cost())
}
