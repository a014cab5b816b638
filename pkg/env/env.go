// Package env reads raw environment variables for the few settings that
// must resolve before config parsing, such as the log format.
package env

import "os"

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
