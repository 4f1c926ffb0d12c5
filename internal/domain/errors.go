package domain

import "errors"

// ErrInvalidPair rejects pair keys that do not parse into two distinct
// currency codes.
var ErrInvalidPair = errors.New("invalid pair")
