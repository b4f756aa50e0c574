// Package middleware wraps a ports.BlobSink to transform snapshot bodies
// before they leave the process: PII masking and AES-GCM encryption.
package middleware

import "github.com/aretw0/strata/pkg/ports"

// Middleware allows wrapping a BlobSink to add behavior.
type Middleware func(ports.BlobSink) ports.BlobSink

// Chain wraps sink so that mws[0] sees the body first.
func Chain(sink ports.BlobSink, mws ...Middleware) ports.BlobSink {
	for i := len(mws) - 1; i >= 0; i-- {
		sink = mws[i](sink)
	}
	return sink
}
