package redisclient

import "time"

func parseDuration(v stringOrDuration) (time.Duration, bool) {
	if !v.set {
		return 0, false
	}
	d, err := time.ParseDuration(v.value)
	if err != nil {
		return 0, false
	}
	return d, true
}
