/*
Package review is the task-level API of redline.

A Service owns the lifecycle of review tasks: it starts a task, persists its
checkpoint every time the engine suspends or completes, records human decisions
on pending diffs and resumes suspended tasks once every pending diff is decided.

All checkpoint mutations go through session.Manager, so a task is never resumed
twice concurrently. The in-progress marker is the "resuming" status, written
under the task lock before the engine continues.
*/
package review
