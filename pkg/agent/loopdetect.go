package agent

import (
	"crypto/sha256"
	"encoding/json"
)

const defaultSteeringThreshold = 3

// callKey is a fingerprint of a tool call.
type callKey struct {
	toolName  string
	inputHash [sha256.Size]byte
}

// LoopDetector tracks tool call history and detects repeated identical calls.
type LoopDetector struct {
	counts    map[callKey]int
	threshold int
}

// NewLoopDetector creates a LoopDetector with the given repeat threshold.
// A threshold <= 0 uses the default (3).
func NewLoopDetector(threshold int) *LoopDetector {
	if threshold <= 0 {
		threshold = defaultSteeringThreshold
	}
	return &LoopDetector{counts: make(map[callKey]int), threshold: threshold}
}

// Record records a tool call and returns true if the loop threshold is reached.
// Inputs that differ only in key order or whitespace count as the same call.
func (d *LoopDetector) Record(toolName string, input json.RawMessage) bool {
	key := callKey{toolName: toolName, inputHash: sha256.Sum256(canonical(input))}
	d.counts[key]++
	return d.counts[key] >= d.threshold
}

// canonical re-encodes input so object keys are sorted. Invalid JSON is
// hashed as is.
func canonical(input json.RawMessage) []byte {
	var v any
	if err := json.Unmarshal(input, &v); err != nil {
		return input
	}
	out, err := json.Marshal(v)
	if err != nil {
		return input
	}
	return out
}

// SteeringMessage returns the message injected when a loop is detected.
func SteeringMessage() string {
	return "You keep making the same graph edit. Call list_cells to see the current state and try a different edit."
}
