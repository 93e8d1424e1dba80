package resolve

import (
	"context"
	"sync"

	"github.com/glassview-analytics/glassview/internal/db/models"
	"github.com/glassview-analytics/glassview/internal/perm/store"
)

// requestCache memoizes one user's permission rows for a single logical
// request. It is scoped to the context it was installed on and must never be
// shared across identities; the resolver consults it only when the queried
// user is the authenticated caller.
type requestCache struct {
	userID uint64

	mu     sync.Mutex
	loaded bool
	rows   []models.PermissionRow
}

// WithRequestCache installs an empty per-request row cache for userID. The
// cache loads lazily on first use and lives exactly as long as the context.
func WithRequestCache(ctx context.Context, userID uint64) context.Context {
	return context.WithValue(ctx, ctxKeyCache, &requestCache{userID: userID})
}

func cacheFrom(ctx context.Context) *requestCache {
	c, _ := ctx.Value(ctxKeyCache).(*requestCache)
	return c
}

// rows returns the user's full row set, loading it from the store on first use.
func (c *requestCache) get(s store.Store) ([]models.PermissionRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		rows, err := s.RowsForUser(c.userID, store.RowFilter{})
		if err != nil {
			return nil, err
		}

		c.rows = rows
		c.loaded = true
	}

	return c.rows, nil
}
