package llmstream

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrStreamTerminated indicates an operation on a stream that already
	// received its terminal event (StreamEnd or Error).
	ErrStreamTerminated = errors.New("llmstream: stream already terminated")

	// ErrStreamClosed indicates an operation on a stream whose final
	// summary has already been frozen.
	ErrStreamClosed = errors.New("llmstream: stream closed")

	// ErrMalformedFrame indicates a complete frame failed to parse into
	// the expected shape for its provider.
	ErrMalformedFrame = errors.New("llmstream: malformed frame")

	// ErrNotTerminated indicates the final summary was requested before
	// the stream reached a terminal event.
	ErrNotTerminated = errors.New("llmstream: stream not yet terminated")
)

// FrameParseError represents a complete frame that failed to parse into
// the expected provider shape. Partial frames are never retried: the
// stream terminates after this error surfaces.
type FrameParseError struct {
	Provider ProviderID // The converter that rejected the frame
	Frame    string     // The offending frame payload
	Reason   string     // Human-readable explanation
	Err      error      // Wrapped error (usually a json error)
}

func (e *FrameParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frame parse failed for provider '%s': %s (%v)", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("frame parse failed for provider '%s': %s", e.Provider, e.Reason)
}

func (e *FrameParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformedFrame
}

// ProtocolViolationError represents a caller-side logic error in the
// event sequence: an event arriving after termination, or a tool-call
// delta referencing an id with inconsistent metadata. Violations are
// reported, never silently patched.
type ProtocolViolationError struct {
	Reason string // Human-readable explanation
	Err    error  // Wrapped sentinel (usually ErrStreamTerminated)
}

func (e *ProtocolViolationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol violation: %s (%v)", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol violation: %s", e.Reason)
}

func (e *ProtocolViolationError) Unwrap() error {
	return e.Err
}

// UpstreamError represents an error payload received from the provider
// inside the stream body, as opposed to a frame we could not parse.
type UpstreamError struct {
	Provider ProviderID // The provider that reported the error
	Code     string     // Provider error code, if any
	Message  string     // Error message from the provider
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider '%s' reported error %s: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("provider '%s' reported error: %s", e.Provider, e.Message)
}

// IsFrameParseError checks if an error came from frame parsing.
func IsFrameParseError(err error) bool {
	var parseErr *FrameParseError
	return errors.As(err, &parseErr)
}

// IsProtocolViolation checks if an error is a caller-side sequencing error.
func IsProtocolViolation(err error) bool {
	var violation *ProtocolViolationError
	return errors.As(err, &violation)
}

// IsUpstreamError checks if an error was reported by the provider itself.
func IsUpstreamError(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}
