package toolcache

import "time"

func refreshTimeoutSecondsAsDuration() time.Duration {
	return refreshTimeoutSeconds * time.Second
}
