/*
Package domain contains the core domain models of the Redline review engine.

It defines the entities a review task is made of: the parsed contract Document, the
Checklist that drives the review, the findings produced per clause and the TaskState
that the engine advances and checkpoints. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - TaskState: the single mutable record owned by one task execution (the checkpoint).
  - ChecklistItem: one clause to review, with the skills it requires.
  - RiskFinding: a risk identified in a clause by analysis.
  - ProposedDiff: a proposed text edit waiting for a human decision.
  - Decision: the human outcome (approve, reject, edit) for one diff.
  - Event: a signal emitted to the outside world (diffs proposed, approval required).
*/
package domain
