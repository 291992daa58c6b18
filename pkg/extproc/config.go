package extproc

import "time"

type Config struct {
	// Concurrent caps the number of external processes alive at the same time, 0 means unlimited.
	Concurrent int
	// Timeout is the hard ceiling for a single command when the command does not carry its own.
	Timeout time.Duration
	Envs    map[string]string
}

func DefaultConfig() Config {
	return Config{
		Concurrent: 64,
		Timeout:    2 * time.Hour,
	}
}
