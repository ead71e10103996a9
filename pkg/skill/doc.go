// Package skill defines the contract for review skills and the registry and
// dispatcher that execute them.
//
// A skill is a registered capability with a declared input contract ([Param]),
// a [Handler], and an optional [InputBuilder] that derives the handler input
// from the current clause, the document and the task state. The same
// declarations drive execution-time validation and the tool descriptions
// exposed to external tool-calling clients.
//
// The [Dispatcher] never propagates a failure: every outcome, including a
// panicking builder or handler, is reported as a [Result].
package skill
