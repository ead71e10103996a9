/*
Package ports defines the driven ports (interfaces) for the Redline review engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends, model providers and event sinks.

# Key Interfaces

  - CheckpointStore: Responsible for persisting and loading task State at suspend points.
  - TaskLocker: Serializes work on one review task across replicas.
  - ChatModel: The model backend every LLM-backed step talks to.
  - EventSink: Receives outbound events (diffs proposed, approval required).
*/
package ports
