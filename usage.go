package llmstream

// Usage is the canonical token accounting record. Every field is a
// pointer: a field absent upstream is reported as nil ("unknown"), never
// defaulted to zero, so consumers can tell "no tokens" from "not reported".
type Usage struct {
	// Prompt is the prompt/input token count
	Prompt *int

	// Completion is the completion/output token count
	Completion *int

	// Total is the total token count (may be provider-reported or computed)
	Total *int

	// Reasoning is the reasoning/thinking token count (reasoning models)
	Reasoning *int

	// CacheRead is the cache-read input token count (prompt caching)
	CacheRead *int

	// CacheWrite is the cache-creation input token count (prompt caching)
	CacheWrite *int
}

// UsagePolicy selects how successive usage updates combine.
// The policy is fixed per converter from that provider's documented
// semantics (cumulative snapshot vs. per-update increment); it is never
// inferred from observed payloads.
type UsagePolicy int

const (
	// UsageReplace treats each update as a snapshot: present fields
	// overwrite the previous value, absent fields keep theirs.
	UsageReplace UsagePolicy = iota

	// UsageSum treats each update as an increment: present fields add to
	// the previous value.
	UsageSum
)

// String returns a human-readable policy name.
func (p UsagePolicy) String() string {
	switch p {
	case UsageReplace:
		return "replace"
	case UsageSum:
		return "sum"
	default:
		return "unknown"
	}
}

// Merge folds an update into the snapshot according to the policy.
func (u *Usage) Merge(update *Usage, policy UsagePolicy) {
	if update == nil {
		return
	}
	mergeField(&u.Prompt, update.Prompt, policy)
	mergeField(&u.Completion, update.Completion, policy)
	mergeField(&u.Total, update.Total, policy)
	mergeField(&u.Reasoning, update.Reasoning, policy)
	mergeField(&u.CacheRead, update.CacheRead, policy)
	mergeField(&u.CacheWrite, update.CacheWrite, policy)
}

func mergeField(dst **int, src *int, policy UsagePolicy) {
	if src == nil {
		return
	}
	if policy == UsageSum && *dst != nil {
		sum := **dst + *src
		*dst = &sum
		return
	}
	v := *src
	*dst = &v
}

// Clone returns a deep copy so a frozen summary cannot alias live state.
func (u *Usage) Clone() *Usage {
	if u == nil {
		return nil
	}
	out := &Usage{}
	out.Prompt = cloneInt(u.Prompt)
	out.Completion = cloneInt(u.Completion)
	out.Total = cloneInt(u.Total)
	out.Reasoning = cloneInt(u.Reasoning)
	out.CacheRead = cloneInt(u.CacheRead)
	out.CacheWrite = cloneInt(u.CacheWrite)
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// IsZero returns true if no field has been reported.
func (u *Usage) IsZero() bool {
	return u.Prompt == nil && u.Completion == nil && u.Total == nil &&
		u.Reasoning == nil && u.CacheRead == nil && u.CacheWrite == nil
}
