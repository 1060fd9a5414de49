package model

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// UserState is the aggregate of a user's scope associations. It is fetched
// and persisted as one unit; a persist replaces the server copy wholesale.
type UserState struct {
	ID   ID            `json:"id,omitempty"`
	User Ref           `json:"user"`
	Data UserStateData `json:"data"`
}

// UserStateData holds the association collections. Keys the backend sends
// that are not modeled here are kept in Extra and written back unchanged.
type UserStateData struct {
	UserRegions  []Association
	UserProjects []Association
	UserSearch   UserSearch
	Extra        map[string]json.RawMessage
}

// UserSearch holds the saved search associations.
type UserSearch struct {
	UserSearchLocations []Association
	Extra               map[string]json.RawMessage
}

const (
	keyUserRegions         = "userRegions"
	keyUserProjects        = "userProjects"
	keyUserSearch          = "userSearch"
	keyUserSearchLocations = "userSearchLocations"
)

// Clone returns a deep copy of the user state.
func (s *UserState) Clone() *UserState {
	if s == nil {
		return nil
	}
	return &UserState{
		ID:   s.ID,
		User: s.User,
		Data: s.Data.Clone(),
	}
}

// Clone returns a deep copy of the data.
func (d UserStateData) Clone() UserStateData {
	return UserStateData{
		UserRegions:  cloneAssociations(d.UserRegions),
		UserProjects: cloneAssociations(d.UserProjects),
		UserSearch: UserSearch{
			UserSearchLocations: cloneAssociations(d.UserSearch.UserSearchLocations),
			Extra:               cloneRaw(d.UserSearch.Extra),
		},
		Extra: cloneRaw(d.Extra),
	}
}

// MarshalJSON implements json.Marshaler.
func (d UserStateData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		out[k] = v
	}
	out[keyUserRegions] = encodeAssociations(ScopeRegions.EntityKey, d.UserRegions)
	out[keyUserProjects] = encodeAssociations(ScopeProjects.EntityKey, d.UserProjects)

	search := make(map[string]any, len(d.UserSearch.Extra)+1)
	for k, v := range d.UserSearch.Extra {
		search[k] = v
	}
	search[keyUserSearchLocations] = encodeAssociations(ScopeSearchLocations.EntityKey, d.UserSearch.UserSearchLocations)
	out[keyUserSearch] = search

	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *UserStateData) UnmarshalJSON(b []byte) error {
	*d = UserStateData{}
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return eris.Wrap(err, "model: decode user state data")
	}

	for k, v := range raw {
		var err error
		switch k {
		case keyUserRegions:
			d.UserRegions, err = decodeAssociations(ScopeRegions.EntityKey, v)
		case keyUserProjects:
			d.UserProjects, err = decodeAssociations(ScopeProjects.EntityKey, v)
		case keyUserSearch:
			err = d.UserSearch.unmarshal(v)
		default:
			if d.Extra == nil {
				d.Extra = make(map[string]json.RawMessage)
			}
			d.Extra[k] = v
		}
		if err != nil {
			return eris.Wrapf(err, "model: decode %s", k)
		}
	}
	return nil
}

func (s *UserSearch) unmarshal(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if k == keyUserSearchLocations {
			locs, err := decodeAssociations(ScopeSearchLocations.EntityKey, v)
			if err != nil {
				return err
			}
			s.UserSearchLocations = locs
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage)
		}
		s.Extra[k] = v
	}
	return nil
}

func encodeAssociations(entityKey string, as []Association) []map[string]any {
	out := make([]map[string]any, len(as))
	for i, a := range as {
		out[i] = a.Encode(entityKey)
	}
	return out
}

func decodeAssociations(entityKey string, b []byte) ([]Association, error) {
	var recs []map[string]any
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, err
	}
	out := make([]Association, len(recs))
	for i, rec := range recs {
		out[i] = DecodeAssociation(entityKey, rec)
	}
	return out, nil
}

func cloneAssociations(as []Association) []Association {
	if as == nil {
		return nil
	}
	out := make([]Association, len(as))
	for i, a := range as {
		out[i] = a.Clone()
	}
	return out
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
