//nolint:revive // exported
package dbtime

import "time"

func DBNow() time.Time {
	return DBTime(time.Now())
}

func DBTime(t time.Time) time.Time {
	return t.UTC()
}

// Unix converts a stored unix-seconds column back to a normalized time.
func Unix(sec int64) time.Time {
	return DBTime(time.Unix(sec, 0))
}
