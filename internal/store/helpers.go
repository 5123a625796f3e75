package store

import "time"

// now returns the current UTC time formatted as an ISO 8601 timestamp with
// millisecond precision.
func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
