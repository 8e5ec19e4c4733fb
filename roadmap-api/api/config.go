package api

import (
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warnf("invalid %s=%q, using %d", name, v, def)
		return def
	}
	return n
}

func envDur(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warnf("invalid %s=%q, using %v", name, v, def)
		return def
	}
	return d
}
