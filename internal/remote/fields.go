package remote

import (
	"github.com/rescape/region-store/pkg/graphql"
)

// Selections requested for each type. They cover the fields the model
// package decodes; callers needing more can pass their own to NewListing.
var (
	entityFields = graphql.Names("id", "key", "name", "geojson", "data", "deleted", "createDate", "updateDate")

	RegionFields = entityFields

	ProjectFields = append(append([]graphql.Field(nil), entityFields...),
		graphql.F("user", graphql.Names("id")...),
		graphql.F("regions", graphql.Names("id")...),
	)

	LocationFields = entityFields

	SearchLocationFields = append(append([]graphql.Field(nil), entityFields...),
		graphql.Field{Name: "identification"},
	)

	UserFields = graphql.Names("id", "username", "email")

	activityFields  = graphql.F("activity", graphql.Names("isActive")...)
	selectionFields = graphql.F("selection", graphql.Names("isSelected")...)
	mapboxFields    = graphql.F("mapbox",
		graphql.F("viewport", graphql.Names("latitude", "longitude", "zoom")...),
	)

	UserStateFields = []graphql.Field{
		{Name: "id"},
		graphql.F("user", graphql.Names("id")...),
		graphql.F("data",
			graphql.F("userRegions",
				graphql.F("region", graphql.Names("id")...),
				activityFields, selectionFields, mapboxFields,
			),
			graphql.F("userProjects",
				graphql.F("project", graphql.Names("id")...),
				activityFields, selectionFields, mapboxFields,
			),
			graphql.F("userSearch",
				graphql.F("userSearchLocations",
					graphql.F("searchLocation", graphql.Names("id")...),
					activityFields,
				),
			),
		),
	}

	pageFields = graphql.Names("pageSize", "page", "pages", "hasNext", "hasPrev")
)
