// Package provider holds the thin REST clients for the external
// reasoning services. One prompt in, raw text out; structure recovery
// happens upstream in the agent policies, never here.
package provider

import (
	"context"

	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// Provider is the abstraction over completion APIs. Implementations are
// single-shot and never retry; a transport failure is the caller's to
// surface.
type Provider interface {
	Complete(ctx context.Context, req protocol.CompletionRequest) (*protocol.CompletionResponse, error)
	Name() string
}
