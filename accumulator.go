package llmstream

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// StreamState is the accumulator's position in its lifecycle.
type StreamState int

const (
	// StateIdle means no event has arrived yet
	StateIdle StreamState = iota

	// StateStreaming means events are being folded into running state
	StateStreaming

	// StateTerminated means the terminal event arrived; no further events are valid
	StateTerminated

	// StateClosed means the final summary has been frozen
	StateClosed
)

// String returns a human-readable state name.
func (s StreamState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateTerminated:
		return "terminated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ToolCall is one fully assembled tool/function call in a frozen summary.
type ToolCall struct {
	// ID is the call identifier
	ID string

	// Name is the function name
	Name string

	// Arguments is the raw JSON-encoded arguments string, exactly as the
	// provider streamed it (always kept, even when unparseable)
	Arguments string

	// Input is the parsed arguments object. When the streamed JSON is
	// truncated or damaged it is repaired before parsing; nil if no
	// parseable object could be recovered.
	Input map[string]interface{}
}

// Response is the frozen final summary of one stream, structurally
// equivalent to a non-streaming response so callers can unify streaming
// and non-streaming code paths.
type Response struct {
	// ID is the provider's response identifier (empty if never reported)
	ID string

	// Model is the model that served the stream
	Model string

	// Content is the full assistant text, every ContentDelta concatenated
	Content string

	// ContentByIndex holds per-block text for providers that multiplex
	// concurrent content blocks; nil if no delta carried an index
	ContentByIndex map[int]string

	// Thinking is the full reasoning text, every ThinkingDelta concatenated
	Thinking string

	// ToolCalls are the assembled tool calls in first-seen order
	ToolCalls []ToolCall

	// Usage is the final token accounting snapshot (nil if never reported)
	Usage *Usage

	// FinishReason is why the stream ended
	FinishReason FinishReason
}

// Accumulator folds an ordered canonical-event sequence into running
// state, surfacing deltas as they arrive and freezing into a Response at
// termination. One accumulator serves exactly one stream and must not be
// shared across goroutines.
type Accumulator struct {
	state  StreamState
	policy UsagePolicy

	id       string
	model    string
	content  strings.Builder
	byIndex  map[int]*strings.Builder
	thinking strings.Builder

	toolOrder []string
	toolCalls map[string]*toolCallBuilder

	usage  *Usage
	reason FinishReason
	err    *StreamError
}

type toolCallBuilder struct {
	name string
	args strings.Builder
}

// NewAccumulator creates an accumulator using the given usage policy.
// The policy comes from the converter driving the stream; it is fixed by
// the provider's documented semantics.
func NewAccumulator(policy UsagePolicy) *Accumulator {
	return &Accumulator{
		state:     StateIdle,
		policy:    policy,
		toolCalls: make(map[string]*toolCallBuilder),
	}
}

// State returns the accumulator's lifecycle position.
func (a *Accumulator) State() StreamState {
	return a.state
}

// Apply folds one event into running state, in arrival order. An event
// arriving after the terminal one is a protocol violation: it is reported
// and not applied. Empty events are no-ops.
func (a *Accumulator) Apply(ev StreamEvent) error {
	switch a.state {
	case StateClosed:
		return &ProtocolViolationError{
			Reason: "event applied after final summary was frozen",
			Err:    ErrStreamClosed,
		}
	case StateTerminated:
		return &ProtocolViolationError{
			Reason: "event applied after terminal event",
			Err:    ErrStreamTerminated,
		}
	}

	if ev.IsEmpty() {
		return nil
	}
	if a.state == StateIdle {
		a.state = StateStreaming
	}

	switch {
	case ev.Start != nil:
		if ev.Start.ID != "" {
			a.id = ev.Start.ID
		}
		if ev.Start.Model != "" {
			a.model = ev.Start.Model
		}

	case ev.Content != nil:
		a.content.WriteString(ev.Content.Text)
		if ev.Content.Index != nil {
			if a.byIndex == nil {
				a.byIndex = make(map[int]*strings.Builder)
			}
			b := a.byIndex[*ev.Content.Index]
			if b == nil {
				b = &strings.Builder{}
				a.byIndex[*ev.Content.Index] = b
			}
			b.WriteString(ev.Content.Text)
		}

	case ev.Thinking != nil:
		a.thinking.WriteString(ev.Thinking.Text)

	case ev.ToolCall != nil:
		return a.applyToolCall(ev.ToolCall)

	case ev.Usage != nil:
		if a.usage == nil {
			a.usage = &Usage{}
		}
		a.usage.Merge(ev.Usage, a.policy)

	case ev.End != nil:
		a.reason = ev.End.Reason
		if ev.End.Model != "" {
			a.model = ev.End.Model
		}
		a.state = StateTerminated

	case ev.Err != nil:
		a.err = ev.Err
		a.reason = FinishError
		a.state = StateTerminated
	}

	return nil
}

func (a *Accumulator) applyToolCall(delta *ToolCallDelta) error {
	if delta.ID == "" {
		return &ProtocolViolationError{
			Reason: "tool-call delta without a call id",
		}
	}

	builder, seen := a.toolCalls[delta.ID]
	if !seen {
		builder = &toolCallBuilder{}
		a.toolCalls[delta.ID] = builder
		a.toolOrder = append(a.toolOrder, delta.ID)
	}

	if delta.Name != nil {
		if builder.name != "" && builder.name != *delta.Name {
			return &ProtocolViolationError{
				Reason: "tool call '" + delta.ID + "' renamed mid-stream from '" + builder.name + "' to '" + *delta.Name + "'",
			}
		}
		builder.name = *delta.Name
	}
	if delta.ArgsDelta != nil {
		builder.args.WriteString(*delta.ArgsDelta)
	}
	return nil
}

// Content returns the running content text accumulated so far.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// Thinking returns the running thinking text accumulated so far.
func (a *Accumulator) Thinking() string {
	return a.thinking.String()
}

// Err returns the terminal stream error, if the stream failed.
func (a *Accumulator) Err() *StreamError {
	return a.err
}

// Final freezes the accumulator into its final summary and moves it to
// Closed. It fails with ErrNotTerminated before the terminal event. If
// the stream terminated with an error, the partial summary is returned
// alongside that error so callers can salvage what streamed before the
// failure.
func (a *Accumulator) Final() (*Response, error) {
	switch a.state {
	case StateIdle, StateStreaming:
		return nil, ErrNotTerminated
	case StateClosed:
		return nil, ErrStreamClosed
	}
	a.state = StateClosed

	resp := &Response{
		ID:           a.id,
		Model:        a.model,
		Content:      a.content.String(),
		Thinking:     a.thinking.String(),
		Usage:        a.usage.Clone(),
		FinishReason: a.reason,
	}

	if a.byIndex != nil {
		resp.ContentByIndex = make(map[int]string, len(a.byIndex))
		for idx, b := range a.byIndex {
			resp.ContentByIndex[idx] = b.String()
		}
	}

	for _, id := range a.toolOrder {
		builder := a.toolCalls[id]
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        id,
			Name:      builder.name,
			Arguments: builder.args.String(),
			Input:     parseToolInput(builder.args.String()),
		})
	}

	if a.err != nil {
		return resp, a.err
	}
	return resp, nil
}

// parseToolInput parses a streamed arguments string into an object,
// repairing truncated or damaged JSON first. Models under a token limit
// routinely cut arguments mid-object; repair recovers the valid prefix.
func parseToolInput(args string) map[string]interface{} {
	if strings.TrimSpace(args) == "" {
		return nil
	}

	var input map[string]interface{}
	if err := json.Unmarshal([]byte(args), &input); err == nil {
		return input
	}

	repaired, err := jsonrepair.JSONRepair(args)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(repaired), &input); err != nil {
		return nil
	}
	return input
}
