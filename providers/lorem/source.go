// Package lorem is a synthetic provider for testing and development
// without API keys. Source renders generated lorem ipsum text as an
// NDJSON wire stream, and Converter parses that stream back into
// canonical events, so the full ingestion path can run offline.
package lorem

import (
	"encoding/json"
	"io"
	"strings"

	loremgen "github.com/bozaro/golorem"
)

// wireLine is one NDJSON line on the synthetic wire.
type wireLine struct {
	Model string     `json:"model"`
	Delta *wireDelta `json:"delta,omitempty"`

	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`

	InputTokens  *int `json:"input_tokens,omitempty"`
	OutputTokens *int `json:"output_tokens,omitempty"`
}

// wireDelta carries exactly one of text, thinking, or a tool call.
type wireDelta struct {
	Text     string        `json:"text,omitempty"`
	Thinking string        `json:"thinking,omitempty"`
	Tool     *wireToolCall `json:"tool,omitempty"`
}

// wireToolCall is a complete synthetic call with pre-built arguments.
type wireToolCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// SupportsModel reports whether a model name belongs to this provider.
// Example models: "lorem-fast", "lorem-thinking", "lorem-cutoff".
func SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem-")
}

// Source is an io.Reader serving a synthetic NDJSON stream, one word
// per line. Model name variants change the shape of the stream:
//   - "thinking" in the name interleaves a thinking block before the text
//   - "tools" in the name appends a tool call before the final line
//   - "cutoff" in the name ends with done_reason "length"
type Source struct {
	generator *loremgen.Lorem
	model     string

	words     []string
	thinking  []string
	withTool  bool
	cutoff    bool
	toolDone  bool
	doneSent  bool
	wordsSent int

	pending []byte
}

// NewSource creates a synthetic stream for the given model producing
// roughly targetWords words of content.
func NewSource(model string, targetWords int) *Source {
	gen := loremgen.New()

	s := &Source{
		generator: gen,
		model:     model,
		withTool:  strings.Contains(model, "tools"),
		cutoff:    strings.Contains(model, "cutoff"),
	}
	s.words = generateWords(gen, targetWords)
	if strings.Contains(model, "thinking") {
		s.thinking = generateWords(gen, targetWords/2)
	}
	return s
}

// Read serves the next chunk of wire bytes. Lines are generated lazily,
// one per call when the pending buffer is empty.
func (s *Source) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		line, err := s.nextLine()
		if err != nil {
			return 0, err
		}
		s.pending = line
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *Source) nextLine() ([]byte, error) {
	if s.doneSent {
		return nil, io.EOF
	}

	line := wireLine{Model: s.model}

	switch {
	case len(s.thinking) > 0:
		line.Delta = &wireDelta{Thinking: s.thinking[0] + " "}
		s.thinking = s.thinking[1:]

	case len(s.words) > 0:
		line.Delta = &wireDelta{Text: s.words[0] + " "}
		s.words = s.words[1:]
		s.wordsSent++

	case s.withTool && !s.toolDone:
		s.toolDone = true
		line.Delta = &wireDelta{Tool: &wireToolCall{
			Name: "search_files",
			Arguments: map[string]interface{}{
				"query":       s.generator.Sentence(2, 4),
				"max_results": 10,
			},
		}}

	default:
		s.doneSent = true
		line.Done = true
		line.DoneReason = "stop"
		if s.cutoff {
			line.DoneReason = "length"
		}
		input := 8
		output := s.wordsSent
		line.InputTokens = &input
		line.OutputTokens = &output
	}

	encoded, err := json.Marshal(line)
	if err != nil {
		return nil, err
	}
	return append(encoded, '\n'), nil
}

func generateWords(gen *loremgen.Lorem, target int) []string {
	var words []string
	for len(words) < target {
		words = append(words, strings.Fields(gen.Sentence(5, 15))...)
	}
	if len(words) > target {
		words = words[:target]
	}
	return words
}
