package resolve

import (
	"context"

	"github.com/glassview-analytics/glassview/internal/perm"
)

type ctxKey int

const (
	ctxKeyCurrentUser ctxKey = iota
	ctxKeyCache
	ctxKeyOverlay
)

// WithCurrentUser marks userID as the authenticated caller for this request
// scope. The request cache only ever serves resolutions for this user;
// lookups for anyone else bypass it and hit the row store directly.
func WithCurrentUser(ctx context.Context, userID uint64) context.Context {
	return context.WithValue(ctx, ctxKeyCurrentUser, userID)
}

// CurrentUser returns the authenticated caller installed on the context.
func CurrentUser(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(ctxKeyCurrentUser).(uint64)
	return id, ok
}

// overlayKey identifies one ephemeral table-level override.
type overlayKey struct {
	databaseID uint64
	tableID    uint64
	permType   perm.Type
}

// WithTableOverride grants a temporary table-level permission value for the
// duration of fn, without persisting a row. The override is visible only
// through the context passed to fn and is discarded on every exit path,
// including errors. Nested overrides compose: an inner scope wins only for
// the keys it sets, leaving outer-scope keys untouched.
func WithTableOverride(
	ctx context.Context,
	databaseID, tableID uint64,
	t perm.Type,
	v perm.Value,
	fn func(context.Context) error,
) error {
	if err := perm.Validate(t, v); err != nil {
		return err
	}

	parent, _ := ctx.Value(ctxKeyOverlay).(map[overlayKey]perm.Value)

	overlay := make(map[overlayKey]perm.Value, len(parent)+1)
	for k, val := range parent {
		overlay[k] = val
	}

	overlay[overlayKey{databaseID: databaseID, tableID: tableID, permType: t}] = v

	return fn(context.WithValue(ctx, ctxKeyOverlay, overlay))
}

// overrideValue returns the overlay value for (database, table, type), if any.
func overrideValue(ctx context.Context, databaseID, tableID uint64, t perm.Type) (perm.Value, bool) {
	overlay, _ := ctx.Value(ctxKeyOverlay).(map[overlayKey]perm.Value)
	if overlay == nil {
		return "", false
	}

	v, ok := overlay[overlayKey{databaseID: databaseID, tableID: tableID, permType: t}]

	return v, ok
}
