package llmstream

import "strings"

// FinishReason is the canonical classification of why a stream ended.
// Unrecognized upstream reasons are preserved via FinishOther and are
// never dropped silently.
type FinishReason string

// Canonical finish-reason vocabulary
const (
	// FinishStop is natural completion
	FinishStop FinishReason = "stop"

	// FinishLength means the maximum token budget was reached
	FinishLength FinishReason = "length"

	// FinishToolCalls means the model requested one or more tool calls
	FinishToolCalls FinishReason = "tool_calls"

	// FinishContentFilter means content was filtered by the provider
	FinishContentFilter FinishReason = "content_filter"

	// FinishStopSequence means a configured stop sequence was hit
	FinishStopSequence FinishReason = "stop_sequence"

	// FinishError means the stream ended because of an error
	FinishError FinishReason = "error"
)

const otherPrefix = "other:"

// FinishOther wraps an upstream finish reason that falls outside the
// canonical vocabulary, preserving the raw value for diagnosis.
func FinishOther(raw string) FinishReason {
	return FinishReason(otherPrefix + raw)
}

// IsOther returns true if this reason wraps an unrecognized upstream value.
func (r FinishReason) IsOther() bool {
	return strings.HasPrefix(string(r), otherPrefix)
}

// Raw returns the original upstream value for an "other" reason, and the
// canonical string otherwise.
func (r FinishReason) Raw() string {
	return strings.TrimPrefix(string(r), otherPrefix)
}

// IsValid returns true if the reason is one of the canonical values or a
// wrapped "other" value.
func (r FinishReason) IsValid() bool {
	switch r {
	case FinishStop, FinishLength, FinishToolCalls, FinishContentFilter, FinishStopSequence, FinishError:
		return true
	default:
		return r.IsOther()
	}
}

// MapFinishReason looks up an upstream reason in a per-provider table.
// A reason missing from the table maps to FinishOther, never dropped.
// Tables are immutable per-converter data, built once at package init.
func MapFinishReason(table map[string]FinishReason, upstream string) FinishReason {
	if mapped, ok := table[upstream]; ok {
		return mapped
	}
	return FinishOther(upstream)
}
