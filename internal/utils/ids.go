package utils

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// TimestampLayout is fixed width so lexical order matches time order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Timestamp formats t in UTC with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func Now() string {
	return Timestamp(time.Now())
}

// NewEtaID returns a random identifier for a material record.
func NewEtaID() string {
	return uuid.NewString()
}

// NewChatID returns a time-ordered identifier for a chat thread.
func NewChatID() string {
	return ulid.Make().String()
}
