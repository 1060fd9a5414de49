package scope

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/rescape/region-store/internal/model"
)

// ErrMalformedAssociation matches every MalformedAssociationError.
var ErrMalformedAssociation = eris.New("scope: association has no entity id")

// MalformedAssociationError reports an association that cannot take part in
// identity-based merging because its entity has no id.
type MalformedAssociationError struct {
	// Position is the index of the record within its collection.
	Position int
}

func (e *MalformedAssociationError) Error() string {
	return fmt.Sprintf("scope: association %d has no entity id", e.Position)
}

// Is lets errors.Is(err, ErrMalformedAssociation) match.
func (e *MalformedAssociationError) Is(target error) bool {
	return target == ErrMalformedAssociation
}

// PersistError reports a failed persist. Merged holds the aggregate that
// was sent so the caller can retry the persist without merging again.
type PersistError struct {
	Merged *model.UserState
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("scope: persist user state: %v", e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
