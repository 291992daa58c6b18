package modules

import (
	"encoding"
	"fmt"
	"time"

	"github.com/docker/go-units"
)

var (
	_ encoding.TextMarshaler   = Duration(0)
	_ encoding.TextUnmarshaler = (*Duration)(nil)
	_ encoding.TextMarshaler   = Size(0)
	_ encoding.TextUnmarshaler = (*Size)(nil)
)

type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	td, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(td)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Size is a byte count written in human form, e.g. "2GiB".
type Size int64

func (s Size) MarshalText() ([]byte, error) {
	return []byte(units.BytesSize(float64(s))), nil
}

func (s *Size) UnmarshalText(text []byte) error {
	n, err := units.RAMInBytes(string(text))
	if err != nil {
		return fmt.Errorf("parse size %q: %w", string(text), err)
	}

	if n < 0 {
		return fmt.Errorf("negative size %q", string(text))
	}

	*s = Size(n)
	return nil
}

func (s Size) Std() int64 {
	return int64(s)
}
