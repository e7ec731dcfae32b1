package id

import "github.com/oklog/ulid/v2"

// New returns a fresh ULID string. ULIDs sort by creation time; they are
// used as user ids and as the jti of every issued token.
func New() string {
	return ulid.Make().String()
}
