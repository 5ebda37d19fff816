package sqlite

import (
	"strings"
	"time"
)

const busyRetries = 5

// busyBackoff is the first retry delay; it doubles on every attempt.
var busyBackoff = 20 * time.Millisecond

// isSQLiteBusy reports whether err is SQLite's lock contention error. The
// driver only exposes it through the message.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// retryOnBusy runs fn until it returns something other than a busy error
// or the attempts run out, in which case the last busy error is returned.
func retryOnBusy(fn func() error) error {
	delay := busyBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if !isSQLiteBusy(err) || attempt == busyRetries {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
}
