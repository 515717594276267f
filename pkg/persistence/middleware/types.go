package middleware

import "github.com/arborlabs/arbor/pkg/ports"

// Middleware allows wrapping a TranscriptStore to add behavior.
type Middleware func(ports.TranscriptStore) ports.TranscriptStore

// Chain applies middlewares right to left, so the first one listed sees
// entries first on the way in.
func Chain(store ports.TranscriptStore, middlewares ...Middleware) ports.TranscriptStore {
	for i := len(middlewares) - 1; i >= 0; i-- {
		store = middlewares[i](store)
	}
	return store
}
