// Package tasks implements the asynchronous job engine behind the
// transcription service.
//
// The core abstraction is [Orchestrator], which owns the per-job state
// machine: it sequences classification, podcast resolution, audio
// acquisition, transcription, optimization, translation, and summarization,
// persisting the [models.Task] record through [Store] and fanning each
// transition out to live subscribers through [Hub]. Every transition mutates
// the record, persists it, then broadcasts it — in that order — so a
// subscriber's last-seen event always matches what survives a restart.
//
// The orchestrator is the only writer of task records. The in-flight URL set
// and the active-job cancel table live behind its mutex, which makes the
// duplicate-submission check an atomic check-and-insert.
package tasks
