package llmstream

// ProviderID represents a unique provider identifier.
// Using a typed constant prevents typos and provides compile-time safety.
type ProviderID string

// Known provider identifiers
const (
	// ProviderAnthropic is Anthropic's typed SSE event stream
	ProviderAnthropic ProviderID = "anthropic"

	// ProviderOpenAI is the OpenAI-compatible chat.completion.chunk SSE stream
	ProviderOpenAI ProviderID = "openai"

	// ProviderOllama is Ollama's newline-delimited JSON stream
	ProviderOllama ProviderID = "ollama"

	// ProviderXAI is xAI's OpenAI-shaped SSE stream with reasoning content
	ProviderXAI ProviderID = "xai"

	// ProviderLorem is the synthetic lorem-ipsum upstream for testing
	ProviderLorem ProviderID = "lorem"
)

// String returns the string representation of the provider ID
func (p ProviderID) String() string {
	return string(p)
}

// IsValid returns true if the provider ID is a known provider
func (p ProviderID) IsValid() bool {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderXAI, ProviderLorem:
		return true
	default:
		return false
	}
}

// EventConverter translates complete wire frames from one upstream service
// into canonical stream events. One implementation exists per upstream
// wire/JSON shape; the pipeline is agnostic to which one it drives.
//
// A converter is a pure function of one frame plus converter-local static
// configuration. The only cross-frame state permitted is what the wire
// format itself requires: sentinel/finish tracking, think-marker state,
// block-index to tool-call-id bookkeeping, and stream-start dedup.
//
// Types used by this interface:
//   - Frame: defined in framing.go
//   - StreamEvent: defined in events.go
type EventConverter interface {
	// ConvertFrame turns one complete frame into zero or more canonical
	// events. Every frame produces exactly one outcome: events, an empty
	// slice (a documented no-op such as a keep-alive), or an error.
	// Errors are *FrameParseError; a frame error terminates the stream.
	ConvertFrame(frame Frame) ([]StreamEvent, error)

	// Finish is called once when the transport signals end-of-stream.
	// It releases any held marker state and, for providers whose
	// termination sentinel may be absent on truncated transports, emits
	// the terminal StreamEnd. Returns nil if the converter already
	// emitted its terminal event.
	Finish() []StreamEvent

	// Provider returns the provider identifier for this converter.
	Provider() ProviderID

	// UsagePolicy reports how this provider's usage updates combine
	// (snapshot vs. increment), fixed from documented provider semantics.
	UsagePolicy() UsagePolicy
}
