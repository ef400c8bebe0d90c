package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs sort by creation time and serve as
// user ids, challenge sids and rate-limit log members.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
