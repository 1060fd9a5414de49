package model

import "github.com/rotisserie/eris"

// ErrNotReady signals that a query was skipped because something it depends
// on (usually the user's identity) has not resolved yet. Callers render it as
// a loading state rather than a failure.
var ErrNotReady = eris.New("not ready")
