package engine

import (
	"context"
	"regexp"

	"revclean/internal/apigee"
)

type EntityLister interface {
	ListEntities(ctx context.Context, kind apigee.Kind) ([]string, error)
}

// DiscoverEntities lists one collection and applies the name filter. Names
// that do not match are dropped here, before any per-entity request.
func DiscoverEntities(ctx context.Context, lister EntityLister, kind apigee.Kind, pattern *regexp.Regexp) ([]EntityRef, error) {
	names, err := lister.ListEntities(ctx, kind)
	if err != nil {
		return nil, &OpError{Op: OpListEntities, Kind: kind, Err: err}
	}
	names = FilterEntities(names, pattern)

	refs := make([]EntityRef, 0, len(names))
	for _, n := range names {
		refs = append(refs, EntityRef{Kind: kind, Name: n})
	}
	return refs, nil
}
