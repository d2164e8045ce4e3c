package workflow

import (
	"context"

	"askme/contracts/registry"
	"askme/internal/ownership"
	"askme/pkg/requestcontext"
)

// RegistryResolver answers owner lookups from the static name registry.
// A record is valid when it exists and its registration has not expired.
type RegistryResolver struct {
	registry *registry.Static
}

var _ ownership.Resolver = (*RegistryResolver)(nil)

func NewRegistryResolver(reg *registry.Static) *RegistryResolver {
	return &RegistryResolver{registry: reg}
}

func (r *RegistryResolver) ResolveOwner(ctx context.Context, name string) (ownership.OwnerInfo, error) {
	rec, ok := r.registry.Lookup(name)
	if !ok {
		return ownership.OwnerInfo{Name: name, IsValid: false}, nil
	}
	expiry := rec.Expiry
	return ownership.OwnerInfo{
		Name:    rec.Name,
		Owner:   rec.Owner.Hex(),
		Expiry:  &expiry,
		IsValid: !rec.Expired(requestcontext.Now(ctx)),
	}, nil
}
