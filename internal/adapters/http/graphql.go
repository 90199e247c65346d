package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/nlzhang/geopin/internal/core/domain"
	"github.com/nlzhang/geopin/internal/pkg/coordtx"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	pointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Point",
		Fields: graphql.Fields{
			"lat":      &graphql.Field{Type: graphql.Float},
			"lon":      &graphql.Field{Type: graphql.Float},
			"altitude": &graphql.Field{Type: graphql.Float},
			"label":    &graphql.Field{Type: graphql.String},
			"note":     &graphql.Field{Type: graphql.String},
		},
	})

	selectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Selection",
		Fields: graphql.Fields{
			"point": &graphql.Field{Type: pointType},
			"space": &graphql.Field{Type: graphql.String},
		},
	})

	sessionErrorType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SessionError",
		Fields: graphql.Fields{
			"kind":    &graphql.Field{Type: graphql.String},
			"message": &graphql.Field{Type: graphql.String},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"state":         &graphql.Field{Type: graphql.String},
			"display_point": &graphql.Field{Type: pointType},
			"true_point":    &graphql.Field{Type: pointType},
			"selected":      &graphql.Field{Type: selectionType},
			"last_error":    &graphql.Field{Type: sessionErrorType},
			"changed_at":    &graphql.Field{Type: graphql.DateTime},
		},
	})

	historyEntryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HistoryEntry",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"query":       &graphql.Field{Type: graphql.String},
			"lat":         &graphql.Field{Type: graphql.Float},
			"lon":         &graphql.Field{Type: graphql.Float},
			"recorded_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	placeMatchType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PlaceMatch",
		Fields: graphql.Fields{
			"label": &graphql.Field{Type: graphql.String},
			"lat":   &graphql.Field{Type: graphql.Float},
			"lon":   &graphql.Field{Type: graphql.Float},
			"kind":  &graphql.Field{Type: graphql.String},
		},
	})

	transformResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TransformResult",
		Fields: graphql.Fields{
			"lat":   &graphql.Field{Type: graphql.Float},
			"lon":   &graphql.Field{Type: graphql.Float},
			"space": &graphql.Field{Type: graphql.String},
		},
	})

	pointArgs := graphql.FieldConfigArgument{
		"lat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"lon":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"space":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: string(domain.SpaceDisplay)},
		"altitude": &graphql.ArgumentConfig{Type: graphql.Float},
		"label":    &graphql.ArgumentConfig{Type: graphql.String},
		"note":     &graphql.ArgumentConfig{Type: graphql.String},
	}

	pointFromArgs := func(p graphql.ResolveParams) (domain.LocationPoint, domain.CoordinateSpace, error) {
		pt := domain.LocationPoint{
			Lat: p.Args["lat"].(float64),
			Lon: p.Args["lon"].(float64),
		}
		if alt, ok := p.Args["altitude"].(float64); ok {
			pt.Altitude = &alt
		}
		if label, ok := p.Args["label"].(string); ok {
			pt.Label = label
		}
		if note, ok := p.Args["note"].(string); ok {
			pt.Note = note
		}
		space, err := domain.ParseCoordinateSpace(p.Args["space"].(string))
		if err != nil {
			return domain.LocationPoint{}, "", err
		}
		return pt, space, nil
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Current spoofing session state",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Engine.Snapshot(), nil
				},
			},
			"history": &graphql.Field{
				Type:        graphql.NewList(historyEntryType),
				Description: "Query history, most recent first",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.History.Entries(), nil
				},
			},
			"searchPlaces": &graphql.Field{
				Type:        graphql.NewList(placeMatchType),
				Description: "Search for places by name",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := p.Args["query"].(string)
					limit := p.Args["limit"].(int)
					return deps.Search.Search(p.Context, q, limit)
				},
			},
			"transform": &graphql.Field{
				Type:        transformResultType,
				Description: "Convert a coordinate between display and true space",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"to":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					if err := (domain.LocationPoint{Lat: lat, Lon: lon}).Validate(); err != nil {
						return nil, err
					}
					to, err := domain.ParseCoordinateSpace(p.Args["to"].(string))
					if err != nil {
						return nil, err
					}
					var outLat, outLon float64
					switch to {
					case domain.SpaceDisplay:
						outLat, outLon = coordtx.ToDisplay(lat, lon)
					case domain.SpaceTrue:
						outLat, outLon = coordtx.ToTrue(lat, lon)
					}
					return map[string]interface{}{
						"lat":   outLat,
						"lon":   outLon,
						"space": string(to),
					}, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"selectPoint": &graphql.Field{
				Type:        sessionType,
				Description: "Stage a point without starting the override",
				Args:        pointArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pt, space, err := pointFromArgs(p)
					if err != nil {
						return nil, err
					}
					return deps.Engine.SelectPoint(p.Context, pt, space)
				},
			},
			"startSpoofing": &graphql.Field{
				Type:        sessionType,
				Description: "Start the override at the staged selection",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Engine.Start(p.Context)
				},
			},
			"startSpoofingAt": &graphql.Field{
				Type:        sessionType,
				Description: "Select a point and start the override in one step",
				Args:        pointArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pt, space, err := pointFromArgs(p)
					if err != nil {
						return nil, err
					}
					return deps.Engine.StartAt(p.Context, pt, space)
				},
			},
			"stopSpoofing": &graphql.Field{
				Type:        sessionType,
				Description: "Stop the override; the session always lands idle",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Engine.Stop(p.Context)
				},
			},
			"restoreLocation": &graphql.Field{
				Type:        sessionType,
				Description: "Stop the override and clear the staged selection",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Engine.Restore(p.Context)
				},
			},
			"recordSearch": &graphql.Field{
				Type:        historyEntryType,
				Description: "Record a resolved search in the history",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.History.Record(p.Context,
						p.Args["query"].(string),
						p.Args["lat"].(float64),
						p.Args["lon"].(float64),
					)
				},
			},
			"deleteHistoryEntry": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Delete one history entry by id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := deps.History.Remove(p.Context, p.Args["id"].(string)); err != nil {
						return false, err
					}
					return true, nil
				},
			},
			"clearHistory": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Delete all history entries",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := deps.History.Clear(p.Context); err != nil {
						return false, err
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
