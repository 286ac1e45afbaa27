package chat

import "github.com/oklog/ulid/v2"

// NewSessionID mints a session identifier. ULIDs sort by creation time,
// which keeps session logs scannable.
func NewSessionID() string {
	return ulid.Make().String()
}
