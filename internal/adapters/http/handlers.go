package http

import (
	"bytes"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/nlzhang/geopin/internal/core/domain"
	"github.com/nlzhang/geopin/internal/core/usecases"
	"github.com/nlzhang/geopin/internal/pkg/coordtx"
)

// pointRequest is the body for select and start endpoints.
type pointRequest struct {
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Space    string   `json:"space"` // "display" (default) or "true"
	Altitude *float64 `json:"altitude,omitempty"`
	Label    string   `json:"label,omitempty"`
	Note     string   `json:"note,omitempty"`
}

func (r pointRequest) point() domain.LocationPoint {
	return domain.LocationPoint{
		Lat:      r.Lat,
		Lon:      r.Lon,
		Altitude: r.Altitude,
		Label:    r.Label,
		Note:     r.Note,
	}
}

func (r pointRequest) space() (domain.CoordinateSpace, error) {
	if r.Space == "" {
		return domain.SpaceDisplay, nil
	}
	return domain.ParseCoordinateSpace(r.Space)
}

// GetSessionHandler returns the current session snapshot.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-store")
		return c.JSON(deps.Engine.Snapshot())
	}
}

// SelectPointHandler stages a point without touching the helper.
func SelectPointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req pointRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		space, err := req.space()
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		snap, err := deps.Engine.SelectPoint(c.UserContext(), req.point(), space)
		if err != nil {
			return errFromOp(c, err, snap)
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(snap)
	}
}

// StartHandler starts spoofing. An empty body starts the staged selection;
// a body with a point selects and starts in one step.
func StartHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-store")

		body := bytes.TrimSpace(c.Body())
		inline := len(body) > 0 && !bytes.Equal(body, []byte("{}"))

		var snap domain.SessionSnapshot
		var err error
		if inline {
			var req pointRequest
			if parseErr := c.BodyParser(&req); parseErr != nil {
				return errBadRequest(c, "invalid request body")
			}
			space, spaceErr := req.space()
			if spaceErr != nil {
				return errBadRequest(c, spaceErr.Error())
			}
			snap, err = deps.Engine.StartAt(c.UserContext(), req.point(), space)
		} else {
			if deps.Engine.Snapshot().Selected == nil {
				return newSessionError(c, 409, "no_selection",
					"no point selected; select one or pass it inline", deps.Engine.Snapshot())
			}
			snap, err = deps.Engine.Start(c.UserContext())
		}

		if errors.Is(err, usecases.ErrSuperseded) {
			return newSessionError(c, 409, "superseded",
				"a newer session request took over", snap)
		}
		if err != nil {
			return errFromOp(c, err, snap)
		}
		return c.JSON(snap)
	}
}

// StopHandler stops spoofing. The session lands Idle whatever the helper
// says; only supersession by a newer request is reported as a conflict.
func StopHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-store")

		snap, err := deps.Engine.Stop(c.UserContext())
		if errors.Is(err, usecases.ErrSuperseded) {
			return newSessionError(c, 409, "superseded",
				"a newer session request took over", snap)
		}
		if err != nil {
			return errFromOp(c, err, snap)
		}
		return c.JSON(snap)
	}
}

// RestoreHandler stops spoofing and clears the staged selection.
func RestoreHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-store")

		snap, err := deps.Engine.Restore(c.UserContext())
		if errors.Is(err, usecases.ErrSuperseded) {
			return newSessionError(c, 409, "superseded",
				"a newer session request took over", snap)
		}
		if err != nil {
			return errFromOp(c, err, snap)
		}
		return c.JSON(snap)
	}
}

// ListHistoryHandler returns the query history, most recent first.
func ListHistoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entries := deps.History.Entries()

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", domain.HistoryCapacity)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > domain.HistoryCapacity {
			limit = domain.HistoryCapacity
		}

		total := len(entries)
		if offset >= total {
			entries = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			entries = entries[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		c.Set("Cache-Control", "no-store")
		return c.JSON(PaginatedResponse{Data: entries, Pagination: pg})
	}
}

// recordSearchRequest is the body for POST /v1/history.
type recordSearchRequest struct {
	Query string  `json:"query"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// RecordSearchHandler records a resolved search into the history.
func RecordSearchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req recordSearchRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Query == "" {
			return errBadRequest(c, "query is required")
		}
		if err := (domain.LocationPoint{Lat: req.Lat, Lon: req.Lon}).Validate(); err != nil {
			return errBadRequest(c, err.Error())
		}

		entry, err := deps.History.Record(c.UserContext(), req.Query, req.Lat, req.Lon)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.Status(201).JSON(entry)
	}
}

// DeleteHistoryEntryHandler removes one entry by id. Removing an absent id
// succeeds.
func DeleteHistoryEntryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "history entry id is required")
		}
		if err := deps.History.Remove(c.UserContext(), id); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// ClearHistoryHandler removes all history entries.
func ClearHistoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.History.Clear(c.UserContext()); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// SearchPlacesHandler resolves a free-text place query.
func SearchPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		limit := c.QueryInt("limit", 10)

		matches, err := deps.Search.Search(c.UserContext(), query, limit)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Warn("place search failed", "error", err)
			return errInternal(c, err.Error())
		}
		return c.JSON(matches)
	}
}

// TransformHandler exposes the coordinate transform so map frontends don't
// have to reimplement it.
// GET /v1/transform?lat=31.2304&lon=121.4737&to=true
func TransformHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lon") == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		if err := (domain.LocationPoint{Lat: lat, Lon: lon}).Validate(); err != nil {
			return errBadRequest(c, err.Error())
		}

		to, err := domain.ParseCoordinateSpace(c.Query("to", string(domain.SpaceTrue)))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		var outLat, outLon float64
		switch to {
		case domain.SpaceDisplay:
			outLat, outLon = coordtx.ToDisplay(lat, lon)
		case domain.SpaceTrue:
			outLat, outLon = coordtx.ToTrue(lat, lon)
		}

		return c.JSON(fiber.Map{
			"lat":   outLat,
			"lon":   outLon,
			"space": string(to),
		})
	}
}
