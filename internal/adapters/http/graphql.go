package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/parkfinder/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the engine and services.
// Fields resolve through the json tags of the domain types.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	parkingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Parking",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"address":     &graphql.Field{Type: graphql.String},
			"coordinates": &graphql.Field{Type: geoPointType},
			"capacity":    &graphql.Field{Type: graphql.Int},
			"free_spots":  &graphql.Field{Type: graphql.Int},
			"zone_number": &graphql.Field{Type: graphql.String},
			"subway":      &graphql.Field{Type: graphql.String},
			"price_info":  &graphql.Field{Type: graphql.String},
			"category":    &graphql.Field{Type: graphql.String},
			"blocked":     &graphql.Field{Type: graphql.Boolean},
			"distance":    &graphql.Field{Type: graphql.Float},
			"available": &graphql.Field{
				Type: graphql.Boolean,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if f, ok := p.Source.(domain.ParkingFacility); ok {
						return f.Available(), nil
					}
					if f, ok := p.Source.(*domain.ParkingFacility); ok {
						return f.Available(), nil
					}
					return nil, nil
				},
			},
			"share_text": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					switch f := p.Source.(type) {
					case domain.ParkingFacility:
						return f.ShareText(), nil
					case *domain.ParkingFacility:
						return f.ShareText(), nil
					}
					return nil, nil
				},
			},
		},
	})

	calloutType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Callout",
		Fields: graphql.Fields{
			"facility_id": &graphql.Field{Type: graphql.String},
			"screen_x":    &graphql.Field{Type: graphql.Float},
			"screen_y":    &graphql.Field{Type: graphql.Float},
			"clamped":     &graphql.Field{Type: graphql.Boolean},
		},
	})

	selectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Selection",
		Fields: graphql.Fields{
			"phase":       &graphql.Field{Type: graphql.String},
			"selected_id": &graphql.Field{Type: graphql.String},
			"callout":     &graphql.Field{Type: calloutType},
		},
	})

	stateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "State",
		Fields: graphql.Fields{
			"seq":          &graphql.Field{Type: graphql.Int},
			"results":      &graphql.Field{Type: graphql.NewList(parkingType)},
			"total":        &graphql.Field{Type: graphql.Int},
			"matched":      &graphql.Field{Type: graphql.Int},
			"remote":       &graphql.Field{Type: graphql.Boolean},
			"search_point": &graphql.Field{Type: geoPointType},
			"searching":    &graphql.Field{Type: graphql.Boolean},
			"selection":    &graphql.Field{Type: selectionType},
			"selected": &graphql.Field{
				Type:        parkingType,
				Description: "The highlighted facility, when it is among the results",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snap, ok := p.Source.(domain.Snapshot)
					if !ok {
						return nil, nil
					}
					if sel := snap.Selected(); sel != nil {
						return sel, nil
					}
					return nil, nil
				},
			},
			"notice_text": &graphql.Field{Type: graphql.String},
			"last_error":  &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"parkings": &graphql.Field{
				Type:        graphql.NewList(parkingType),
				Description: "Filter the listing; non-blank text is searched remotely",
				Args: graphql.FieldConfigArgument{
					"text":           &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"only_available": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
					"lat":            &graphql.ArgumentConfig{Type: graphql.Float},
					"lng":            &graphql.ArgumentConfig{Type: graphql.Float},
					"max_km":         &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := domain.QuerySpec{
						Text:          p.Args["text"].(string),
						OnlyAvailable: p.Args["only_available"].(bool),
					}
					lat, okLat := p.Args["lat"].(float64)
					lng, okLng := p.Args["lng"].(float64)
					if okLat && okLng {
						q.Origin = &domain.GeoPoint{Lat: lat, Lng: lng}
					}
					if km, ok := p.Args["max_km"].(float64); ok {
						q.MaxDistanceKm = &km
					}
					results, _, err := deps.Query.Run(p.Context, deps.Engine.All(), q)
					return results, err
				},
			},
			"parking": &graphql.Field{
				Type:        parkingType,
				Description: "Get a parking by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					f, err := deps.Engine.Facility(p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return f, nil
				},
			},
			"nearby": &graphql.Field{
				Type:        graphql.NewList(parkingType),
				Description: "Nearest parkings within the proximity radius",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					origin := domain.GeoPoint{Lat: p.Args["lat"].(float64), Lng: p.Args["lng"].(float64)}
					return deps.Proximity.FindNearest(p.Context, origin)
				},
			},
			"state": &graphql.Field{
				Type:        stateType,
				Description: "Current results and selection",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Engine.Snapshot(), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
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
			return errBadRequest(c, "invalid request body")
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
