/*
Package session serializes access to review task checkpoints.

A Manager wraps a ports.CheckpointStore with a reference-counted lock per task id
and, when configured, a distributed lock so that replicas sharing a Redis store
never run the same task twice. Every read-modify-write of a checkpoint in the
review service goes through Manager.Update.
*/
package session
