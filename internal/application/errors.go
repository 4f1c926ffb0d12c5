package application

import "errors"

var ErrNotFound = errors.New("not found")

// ErrNoRateAvailable is the one fatal condition in the engine: every
// provider failed and no prior aggregated row exists to fall back on.
var ErrNoRateAvailable = errors.New("no rate available from any source including history")
