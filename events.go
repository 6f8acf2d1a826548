package llmstream

// StreamEvent represents a single canonical event in a streaming response.
// Exactly one of the variant pointers is non-nil; consumers switch on
// whichever field is set, independent of which upstream service produced it.
type StreamEvent struct {
	// Content contains incremental assistant text (nil otherwise)
	Content *ContentDelta

	// Thinking contains incremental reasoning text, kept in a channel
	// distinct from Content even when the upstream interleaves both
	Thinking *ThinkingDelta

	// ToolCall contains one fragment of a tool/function call under construction
	ToolCall *ToolCallDelta

	// Usage contains a token accounting update
	Usage *Usage

	// Start contains stream metadata, emitted once before any delta
	Start *StreamStart

	// End contains the finish reason when the stream completes normally.
	// No further events are valid after End.
	End *StreamEnd

	// Err contains a terminal stream error (nil if successful).
	// No further events are valid after Err.
	Err *StreamError
}

// IsTerminal returns true if no further events are valid after this one.
func (e StreamEvent) IsTerminal() bool {
	return e.End != nil || e.Err != nil
}

// IsEmpty returns true if the event carries no variant.
// Empty events are produced for frames that are documented no-ops
// (keep-alives, pings) and are skipped by consumers.
func (e StreamEvent) IsEmpty() bool {
	return e.Content == nil && e.Thinking == nil && e.ToolCall == nil &&
		e.Usage == nil && e.Start == nil && e.End == nil && e.Err == nil
}

// ContentDelta is one fragment of assistant-visible text.
type ContentDelta struct {
	// Text is the incremental text content
	Text string

	// Index identifies the content block for providers that multiplex
	// concurrent blocks (nil when the provider streams a single block)
	Index *int
}

// ThinkingDelta is one fragment of hidden reasoning text.
type ThinkingDelta struct {
	// Text is the incremental thinking content, with any open/close
	// markers already stripped by the converter
	Text string
}

// ToolCallDelta is one fragment of a tool/function call under construction.
// Fragment concatenation is the accumulator's job, not the converter's.
type ToolCallDelta struct {
	// ID identifies the call; fragments with the same ID concatenate
	ID string

	// Name is the function name, present once on the call's first delta
	Name *string

	// ArgsDelta is one fragment of the JSON-encoded arguments string
	ArgsDelta *string

	// Index is the provider's block/choice index for this call (optional)
	Index *int
}

// StreamStart carries stream-level metadata, emitted once per stream
// before any delta.
type StreamStart struct {
	// ID is the provider's response identifier (empty if not supplied)
	ID string

	// Model is the model actually serving the stream (may differ from
	// the requested model if aliased)
	Model string

	// Provider identifies which converter produced this stream
	Provider ProviderID
}

// StreamEnd marks normal stream completion.
type StreamEnd struct {
	// Reason is the canonical classification of why the stream ended
	Reason FinishReason

	// Model is the model that served the stream (empty if never reported)
	Model string
}

// StreamError is the terminal item of a failed stream. It carries enough
// context to diagnose the failure without reproducing network conditions.
type StreamError struct {
	// Provider identifies the converter that was processing the stream
	Provider ProviderID

	// Frame holds the offending frame payload, if the error is tied to one
	Frame string

	// Err is the underlying error
	Err error
}

func (e *StreamError) Error() string {
	if e.Frame != "" {
		return "stream error from '" + string(e.Provider) + "': " + e.Err.Error() + " (frame: " + truncateFrame(e.Frame) + ")"
	}
	return "stream error from '" + string(e.Provider) + "': " + e.Err.Error()
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// truncateFrame bounds diagnostic output for very large frames.
func truncateFrame(frame string) string {
	const max = 256
	if len(frame) <= max {
		return frame
	}
	// Back off to a rune boundary so diagnostics stay valid UTF-8.
	cut := max
	for cut > 0 && frame[cut]&0xC0 == 0x80 {
		cut--
	}
	return frame[:cut] + "..."
}

// Convenience constructors used by converters.

// ContentEvent wraps text into a content-delta event.
func ContentEvent(text string) StreamEvent {
	return StreamEvent{Content: &ContentDelta{Text: text}}
}

// ContentEventAt wraps text into an indexed content-delta event.
func ContentEventAt(text string, index int) StreamEvent {
	return StreamEvent{Content: &ContentDelta{Text: text, Index: &index}}
}

// ThinkingEvent wraps text into a thinking-delta event.
func ThinkingEvent(text string) StreamEvent {
	return StreamEvent{Thinking: &ThinkingDelta{Text: text}}
}

// EndEvent builds a terminal stream-end event.
func EndEvent(reason FinishReason, model string) StreamEvent {
	return StreamEvent{End: &StreamEnd{Reason: reason, Model: model}}
}

// ErrorEvent builds a terminal stream-error event.
func ErrorEvent(provider ProviderID, frame string, err error) StreamEvent {
	return StreamEvent{Err: &StreamError{Provider: provider, Frame: frame, Err: err}}
}
