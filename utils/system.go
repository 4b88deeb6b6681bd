// jotlet/utils/system.go
package utils

import (
	"time"
)

// Clock is swapped by tests that need a fixed "now".
var Clock = time.Now

// GetTime returns the current time.
func GetTime() time.Time {
	return Clock()
}

// GetSQLTime returns the current time in UTC for database storage.
func GetSQLTime() time.Time {
	return Clock().UTC()
}
