// Package update provides the HTTP API handler recreating a container with the latest image.
//
// Updates of the same container are serialized with a per-name lock. A request for a container
// already being updated is rejected with 409 instead of queued.
//
// Usage example:
//
//	handler := update.New(recreator)
//	server.RegisterFunc("POST "+update.Path, handler.Handle)
package update
