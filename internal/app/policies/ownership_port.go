package policies

import "context"

// OwnershipPort resolves ad ownership for the my-ads/others-ads views.
// Lookups are batched: the result maps ad id to owner id, and ads that
// cannot be resolved (deleted listings) are simply absent from it.
type OwnershipPort interface {
	OwnerOf(ctx context.Context, adIDs []string) (map[string]string, error)
}
