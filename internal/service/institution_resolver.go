package service

import (
	"context"
	"time"

	"github.com/dashboarder/enrollment-api/internal/models"
)

const institutionNameCacheTTL = time.Hour

type institutionReader interface {
	FindInstitution(ctx context.Context, id string) (*models.Institution, error)
}

type lookupCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// institutionResolver resolves institution display names for contention
// messages ("student is already enrolled in X"), with a best-effort cache.
// Failures degrade to an empty name, never to an error: naming the winner is
// a courtesy, not a correctness requirement.
type institutionResolver struct {
	users institutionReader
	cache lookupCache
}

func (r *institutionResolver) Name(ctx context.Context, institutionID string) string {
	if r == nil || r.users == nil || institutionID == "" {
		return ""
	}

	key := "institution:name:" + institutionID
	var name string
	if r.cache != nil {
		if err := r.cache.Get(ctx, key, &name); err == nil && name != "" {
			return name
		}
	}

	institution, err := r.users.FindInstitution(ctx, institutionID)
	if err != nil {
		return ""
	}
	if r.cache != nil {
		_ = r.cache.Set(ctx, key, institution.Name, institutionNameCacheTTL)
	}
	return institution.Name
}
