package ollama

// ChatResponse is one NDJSON line from /api/chat with stream enabled.
// Intermediate lines carry message deltas; the final line has done set
// and includes timing and token counts.
type ChatResponse struct {
	Model     string  `json:"model"`
	CreatedAt string  `json:"created_at"`
	Message   Message `json:"message"`

	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`

	// Counters below only appear on the final line, and some builds
	// omit them entirely (for example when the prompt was fully cached).
	TotalDuration      *int64 `json:"total_duration,omitempty"`
	LoadDuration       *int64 `json:"load_duration,omitempty"`
	PromptEvalCount    *int   `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration *int64 `json:"prompt_eval_duration,omitempty"`
	EvalCount          *int   `json:"eval_count,omitempty"`
	EvalDuration       *int64 `json:"eval_duration,omitempty"`
}

// Message is the assistant delta inside a streamed chat line.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// Thinking is populated by models with native reasoning support
	// when the request enables it; older models inline <think> tags in
	// Content instead.
	Thinking string `json:"thinking,omitempty"`

	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a complete call emitted in one line. Ollama sends whole
// calls, not fragments, and assigns no call ids.
type ToolCall struct {
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and already-parsed arguments.
type FunctionCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}
