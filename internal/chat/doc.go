// ABOUTME: Package documentation for the chat turn service
// ABOUTME: Describes the streamed turn lifecycle and history persistence rules

// Package chat processes chat turns end to end.
//
// A turn flows through three stages. First the conversation coordinator runs
// one state-machine step; if it answers with a confirmation or modification
// prompt, that reply is emitted and the turn ends. Once the coordinator
// signals readiness, the confirmed module runs against the dataset executor
// and the full payload streams back to the caller. Finally the run is
// persisted: the inbound message, the complete bot response, and a history
// entry whose stored payload excludes real_data.
//
// Intermediate progress and dialogue replies are delivered through an
// EventSink so the HTTP layer can forward them as server-sent events without
// this package knowing about the transport.
//
// EditTurn regenerates an existing history entry from an edited message; the
// edit path re-classifies from scratch and bypasses the dialogue session.
package chat
