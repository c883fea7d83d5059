// ABOUTME: Package documentation for the gateway package
// ABOUTME: Describes the HTTP surface and component wiring

// Package gateway provides the HTTP server for iqc-gateway.
//
// The Gateway type wires the store, auth service, conversation manager,
// dataset executor, and chat service behind a single HTTP mux. Auth and
// health endpoints are open; everything else under /api requires a bearer
// token validated by auth.HTTPAuthMiddleware.
//
// Chat turns are streamed to the client as server-sent events. Each frame
// is a bare data line carrying JSON: progress updates, dialogue replies
// from the confirmation flow, and finally the completed analysis response.
// The chat service emits these through an EventSink callback, so this
// package only handles the SSE framing.
//
// Help documentation is embedded markdown under docs/help, rendered to
// HTML with goldmark at request time.
package gateway
