// Package llm implements the invocation contract shared by every model-backed step.
//
// A step builds a role-scoped prompt from explicit inputs, calls the model with a
// bounded timeout and parses the reply as structured data. Parsing is layered:
// the raw text, then the first fenced block, then the first balanced JSON span.
// When the call fails, times out, panics or yields nothing parseable, [Invoke]
// returns the caller's fallback value with Used=false. It never returns an error
// to the caller; the cause is kept in [Outcome.Err] for logging only.
package llm
