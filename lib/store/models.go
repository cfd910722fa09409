package store

import (
	"time"
)

// DayLayout is the format of the day buckets.
const DayLayout = "2006-01-02"

// DripKey identifies the requester of a drip. External requests are identified by the destination address alone,
// internal ones also carry the requester's username.
type DripKey struct {
	Addr     string `json:"addr" bson:"addr"`
	Username string `json:"username,omitempty" bson:"username,omitempty"`
}

// Drip contains the fields of a drip saved to DB.
type Drip struct {
	Addr     string    `json:"addr" bson:"addr"`
	Username string    `json:"username,omitempty" bson:"username,omitempty"`
	Day      string    `json:"day" bson:"day"`
	TS       time.Time `json:"ts" bson:"ts"`
}

// Day returns the UTC day bucket of t.
func Day(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// NextDay returns the duration from t until the next UTC day starts.
func NextDay(t time.Time) time.Duration {
	u := t.UTC()
	next := time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)

	return next.Sub(u)
}
