package provider

import "context"

// Provider is the outbound delivery channel port. One Send call covers the
// whole recipient set for a lead; fan-out happens behind the channel
// endpoint, so no per-recipient bookkeeping exists at this layer.
type Provider interface {
	Send(ctx context.Context, leadID string) (*ChannelResponse, error)
}

// ChannelResponse stores channel call metadata for the ledger's audit trail.
type ChannelResponse struct {
	StatusCode int
	Body       string
	Recipients int
}
