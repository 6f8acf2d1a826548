package llmstream

import "testing"

func TestFinishReason_Other(t *testing.T) {
	r := FinishOther("model_overloaded")

	if !r.IsOther() {
		t.Error("wrapped reason should report IsOther")
	}
	if r.Raw() != "model_overloaded" {
		t.Errorf("Raw = %q", r.Raw())
	}
	if !r.IsValid() {
		t.Error("wrapped reason is still valid")
	}
	if FinishStop.IsOther() {
		t.Error("canonical reason should not report IsOther")
	}
	if FinishStop.Raw() != "stop" {
		t.Errorf("Raw of canonical = %q", FinishStop.Raw())
	}
}

func TestFinishReason_IsValid(t *testing.T) {
	for _, r := range []FinishReason{FinishStop, FinishLength, FinishToolCalls, FinishContentFilter, FinishStopSequence, FinishError} {
		if !r.IsValid() {
			t.Errorf("%q should be valid", r)
		}
	}
	if FinishReason("made_up").IsValid() {
		t.Error("bare unknown string should be invalid")
	}
}

func TestMapFinishReason(t *testing.T) {
	table := map[string]FinishReason{"stop": FinishStop}

	if got := MapFinishReason(table, "stop"); got != FinishStop {
		t.Errorf("got %q", got)
	}
	if got := MapFinishReason(table, "weird"); got != FinishOther("weird") {
		t.Errorf("unknown reason should wrap, got %q", got)
	}
}
