package model

// Scope names one association collection inside UserStateData.
type Scope struct {
	// Name is the collection key, e.g. "userRegions".
	Name string
	// EntityKey is the key of the referenced entity inside each
	// association record, e.g. "region".
	EntityKey string

	get func(*UserStateData) []Association
	set func(*UserStateData, []Association)
}

// Known scopes.
var (
	ScopeRegions = Scope{
		Name:      keyUserRegions,
		EntityKey: "region",
		get:       func(d *UserStateData) []Association { return d.UserRegions },
		set:       func(d *UserStateData, as []Association) { d.UserRegions = as },
	}
	ScopeProjects = Scope{
		Name:      keyUserProjects,
		EntityKey: "project",
		get:       func(d *UserStateData) []Association { return d.UserProjects },
		set:       func(d *UserStateData, as []Association) { d.UserProjects = as },
	}
	ScopeSearchLocations = Scope{
		Name:      keyUserSearchLocations,
		EntityKey: "searchLocation",
		get:       func(d *UserStateData) []Association { return d.UserSearch.UserSearchLocations },
		set:       func(d *UserStateData, as []Association) { d.UserSearch.UserSearchLocations = as },
	}
)

// Scopes lists every known scope.
func Scopes() []Scope {
	return []Scope{ScopeRegions, ScopeProjects, ScopeSearchLocations}
}

// ScopeByName looks a scope up by collection name or entity key, so both
// "userRegions" and "region" resolve to ScopeRegions.
func ScopeByName(name string) (Scope, bool) {
	for _, s := range Scopes() {
		if s.Name == name || s.EntityKey == name {
			return s, true
		}
	}
	return Scope{}, false
}

// Valid reports whether the scope has accessors.
func (s Scope) Valid() bool { return s.get != nil && s.set != nil }

// Associations returns the scope's collection from d. A nil d yields nil.
func (s Scope) Associations(d *UserStateData) []Association {
	if d == nil || s.get == nil {
		return nil
	}
	return s.get(d)
}

// SetAssociations replaces the scope's collection in d.
func (s Scope) SetAssociations(d *UserStateData, as []Association) {
	if d == nil || s.set == nil {
		return
	}
	s.set(d, as)
}
