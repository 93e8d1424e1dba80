// Package permissions provides admin API handlers for the data-permissions
// engine: the raw grant graph and the mutation surface.
package permissions

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/glassview-analytics/glassview/internal/config"
	"github.com/glassview-analytics/glassview/internal/perm"
	"github.com/glassview-analytics/glassview/internal/perm/graph"
	"github.com/glassview-analytics/glassview/internal/perm/mutate"
	"github.com/glassview-analytics/glassview/internal/perm/resolve"
)

const (
	// Path is the base path for permission management.
	Path = "/api/permissions"

	// ErrInvalidID is returned when a path id parameter is invalid.
	ErrInvalidID = "Invalid id"
)

// Handler bundles the engine components the API exposes.
type Handler struct {
	resolver *resolve.Resolver
	mutator  *mutate.Mutator
	builder  *graph.Builder
	defaults config.Permissions
}

// NewHandler creates a Handler. defaults supplies the configured values used
// for new-table grants when a request does not carry one.
func NewHandler(resolver *resolve.Resolver, mutator *mutate.Mutator, builder *graph.Builder, defaults config.Permissions) *Handler {
	return &Handler{resolver: resolver, mutator: mutator, builder: builder, defaults: defaults}
}

// RegisterRoutes registers the permission API routes.
func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get(Path+"/graph", h.getGraph)
	app.Put(Path+"/database", h.putDatabasePermission)
	app.Put(Path+"/tables", h.putTablePermissions)
	app.Post(Path+"/new-table", h.postNewTablePermissions)
	app.Get(Path+"/user/:id", h.getUserPermissions)
}

// statusForError maps engine validation failures to 400, everything else to 500.
func statusForError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, perm.ErrInvalidPermissionType),
		errors.Is(err, perm.ErrInvalidPermissionValue),
		errors.Is(err, perm.ErrWrongGranularity),
		errors.Is(err, perm.ErrCrossDatabaseMutation),
		errors.Is(err, perm.ErrIllegalBlockAssignment):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("permission request failed")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

func (h *Handler) getGraph(c *fiber.Ctx) error {
	var opts graph.Options

	if raw := c.Query("group_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(ErrInvalidID)
		}

		groupID := uint(id)
		opts.GroupID = &groupID
	}

	if raw := c.Query("db_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(ErrInvalidID)
		}

		opts.DatabaseID = &id
	}

	if raw := c.Query("type"); raw != "" {
		t := perm.Type(raw)
		opts.Type = &t
	}

	opts.IncludeAudit = c.QueryBool("include_audit")

	g, err := h.builder.Build(opts)
	if err != nil {
		return statusForError(c, err)
	}

	return c.JSON(g)
}

type databasePermissionRequest struct {
	GroupID    uint       `json:"group_id"`
	DatabaseID uint64     `json:"db_id"`
	Type       perm.Type  `json:"type"`
	Value      perm.Value `json:"value"`
}

func (h *Handler) putDatabasePermission(c *fiber.Ctx) error {
	var req databasePermissionRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.mutator.SetDatabasePermission(req.GroupID, req.DatabaseID, req.Type, req.Value); err != nil {
		return statusForError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type tablePermissionsRequest struct {
	GroupID uint                  `json:"group_id"`
	Type    perm.Type             `json:"type"`
	Values  map[uint64]perm.Value `json:"values"`
}

func (h *Handler) putTablePermissions(c *fiber.Ctx) error {
	var req tablePermissionsRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.mutator.SetTablePermissions(req.GroupID, req.Type, req.Values); err != nil {
		return statusForError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type newTablePermissionsRequest struct {
	GroupIDs     []uint     `json:"group_ids"`
	TableID      uint64     `json:"table_id"`
	Type         perm.Type  `json:"type"`
	DefaultValue perm.Value `json:"default_value"`
}

// newTableDefault picks the configured default for a new-table grant. Types
// without a configured value fall back to the most restrictive assignable one.
func (h *Handler) newTableDefault(t perm.Type) perm.Value {
	switch t {
	case perm.TypeDataAccess:
		if h.defaults.NewTableDataAccess != "" {
			return perm.Value(h.defaults.NewTableDataAccess)
		}
	case perm.TypeDownloadResults:
		if h.defaults.NewTableDownload != "" {
			return perm.Value(h.defaults.NewTableDownload)
		}
	}

	v, err := perm.LeastPermissiveAssignable(t)
	if err != nil {
		// unknown type, let the mutator report it
		return ""
	}

	return v
}

func (h *Handler) postNewTablePermissions(c *fiber.Ctx) error {
	var req newTablePermissionsRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if req.DefaultValue == "" {
		req.DefaultValue = h.newTableDefault(req.Type)
	}

	if err := h.mutator.SetNewTablePermissions(req.GroupIDs, req.TableID, req.Type, req.DefaultValue); err != nil {
		return statusForError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) getUserPermissions(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || userID == 0 {
		return c.Status(fiber.StatusBadRequest).SendString(ErrInvalidID)
	}

	summary, err := h.resolver.PermissionsForUser(c.UserContext(), userID)
	if err != nil {
		return statusForError(c, err)
	}

	return c.JSON(summary)
}
