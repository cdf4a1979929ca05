// Package models defines the data model for the media transcription service.
//
// The central entity is [Task], the durable record of one submitted job. A Task
// is created when a URL is accepted, mutated only by the orchestrator as the
// pipeline advances, and persisted after every mutation. [MediaSource] and
// [PodcastEpisode] are immutable values derived during classification and
// podcast resolution.
//
// JSON field names mirror the service's wire contract: clients poll
// /api/task-status and consume the SSE stream, both of which serialize Task
// records directly.
package models
