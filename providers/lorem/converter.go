package lorem

import (
	"encoding/json"

	"github.com/google/uuid"

	llmstream "github.com/haowjy/meridian-stream-go"
)

// doneReasons maps synthetic done_reason values to the canonical
// vocabulary.
var doneReasons = map[string]llmstream.FinishReason{
	"stop":   llmstream.FinishStop,
	"length": llmstream.FinishLength,
}

// Converter parses the synthetic NDJSON wire format produced by Source.
// Create one per stream with NewConverter.
type Converter struct {
	opts llmstream.Options

	started bool
	done    bool
	model   string
	tools   int
}

// NewConverter creates a lorem converter using the registered provider
// options.
func NewConverter() *Converter {
	return NewConverterWithOptions(llmstream.OptionsFor(llmstream.ProviderLorem))
}

// NewConverterWithOptions creates a converter with explicit options.
func NewConverterWithOptions(opts llmstream.Options) *Converter {
	return &Converter{opts: opts}
}

// Provider returns the provider identifier.
func (c *Converter) Provider() llmstream.ProviderID {
	return llmstream.ProviderLorem
}

// UsagePolicy reports snapshot semantics: the final line carries the
// complete synthetic counts.
func (c *Converter) UsagePolicy() llmstream.UsagePolicy {
	return llmstream.UsageReplace
}

// ConvertFrame turns one NDJSON line into canonical events.
func (c *Converter) ConvertFrame(frame llmstream.Frame) ([]llmstream.StreamEvent, error) {
	var line wireLine
	if err := json.Unmarshal([]byte(frame.Data), &line); err != nil {
		return nil, &llmstream.FrameParseError{
			Provider: c.Provider(),
			Frame:    frame.Data,
			Reason:   "not a lorem wire line",
			Err:      err,
		}
	}

	var events []llmstream.StreamEvent

	if !c.started {
		c.started = true
		c.model = line.Model
		events = append(events, llmstream.StreamEvent{Start: &llmstream.StreamStart{
			ID:       uuid.NewString(),
			Model:    c.modelOrDefault(line.Model),
			Provider: c.Provider(),
		}})
	}

	if line.Delta != nil {
		events = append(events, c.convertDelta(line.Delta)...)
	}

	if line.Done {
		c.done = true
		if line.InputTokens != nil || line.OutputTokens != nil {
			events = append(events, llmstream.StreamEvent{Usage: convertUsage(line)})
		}
		reason := llmstream.FinishStop
		if line.DoneReason != "" {
			reason = llmstream.MapFinishReason(doneReasons, line.DoneReason)
		}
		events = append(events, llmstream.EndEvent(reason, c.modelOrDefault(line.Model)))
	}

	return events, nil
}

// Finish closes out a stream that ended without a done line.
func (c *Converter) Finish() []llmstream.StreamEvent {
	if c.done {
		return nil
	}
	c.done = true
	return []llmstream.StreamEvent{llmstream.EndEvent(llmstream.FinishStop, c.modelOrDefault(""))}
}

func (c *Converter) convertDelta(delta *wireDelta) []llmstream.StreamEvent {
	var events []llmstream.StreamEvent

	if delta.Thinking != "" {
		events = append(events, llmstream.ThinkingEvent(delta.Thinking))
	}
	if delta.Text != "" {
		events = append(events, llmstream.ContentEvent(delta.Text))
	}
	if delta.Tool != nil {
		args := "{}"
		if encoded, err := json.Marshal(delta.Tool.Arguments); err == nil {
			args = string(encoded)
		}
		name := delta.Tool.Name
		idx := c.tools
		c.tools++
		events = append(events, llmstream.StreamEvent{ToolCall: &llmstream.ToolCallDelta{
			ID:        "call_" + uuid.NewString(),
			Name:      &name,
			ArgsDelta: &args,
			Index:     &idx,
		}})
	}

	return events
}

func convertUsage(line wireLine) *llmstream.Usage {
	usage := &llmstream.Usage{
		Prompt:     line.InputTokens,
		Completion: line.OutputTokens,
	}
	if line.InputTokens != nil && line.OutputTokens != nil {
		total := *line.InputTokens + *line.OutputTokens
		usage.Total = &total
	}
	return usage
}

func (c *Converter) modelOrDefault(model string) string {
	if model != "" {
		return model
	}
	if c.model != "" {
		return c.model
	}
	return c.opts.DefaultModel
}
