// Package pipeline implements the stage executors that turn an uploaded video
// into suggested clips with rendered previews:
//
//	AudioExtract → {SilenceMap, Transcribe} → HighlightPick → PreviewRender × N
//
// Executors receive every collaborator through Deps and hand follow-up work to
// a stage.Dispatcher; a stage never waits on another stage. Each invocation
// loads what it needs, tolerates redelivery, and either persists its result
// and dispatches the next stages, or marks the project failed with a short
// stage-prefixed message and returns the error to the dispatcher.
package pipeline
