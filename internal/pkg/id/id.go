package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string for credential records. ULIDs are
// lexicographically sortable by creation time, which keeps "latest by
// creation" queries cheap, and they are safe DynamoDB partition keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
