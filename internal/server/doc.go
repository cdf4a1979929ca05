// package server exposes the transcription pipeline over HTTP: task
// submission, polling and SSE progress streaming, history browsing, artifact
// downloads, and health probing. Handlers stay thin; every slow operation
// runs inside the orchestrator's job goroutines.
package server
