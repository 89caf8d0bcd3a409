package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// BitRate is a bits-per-second value that supports human-readable parsing.
// Units are decimal (SI), as is conventional for media bitrates.
//
// Examples:
//   - "49M" = 49_000_000 bit/s
//   - "1.5M" = 1_500_000 bit/s
//   - "500k" = 500_000 bit/s
//   - "12000000" = 12_000_000 bit/s (raw number still works)
//
// The type implements encoding.TextUnmarshaler for Viper/YAML support.
type BitRate int64

// ParseBitRate parses a human-readable bitrate string.
func ParseBitRate(s string) (BitRate, error) {
	v := strings.TrimSpace(s)
	v = strings.TrimSuffix(v, "bps")
	v = strings.TrimSuffix(v, "b/s")
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("empty bitrate value")
	}

	mult := float64(1)
	switch v[len(v)-1] {
	case 'k', 'K':
		mult = 1e3
		v = v[:len(v)-1]
	case 'm', 'M':
		mult = 1e6
		v = v[:len(v)-1]
	case 'g', 'G':
		mult = 1e9
		v = v[:len(v)-1]
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bitrate %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative bitrate %q", s)
	}
	return BitRate(n * mult), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for YAML/Viper support.
func (b *BitRate) UnmarshalText(text []byte) error {
	parsed, err := ParseBitRate(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BitRate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Try as a raw number of bits per second.
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*b = BitRate(n)
		return nil
	}
	return b.UnmarshalText([]byte(s))
}

// MarshalText implements encoding.TextMarshaler.
func (b BitRate) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Int64 returns the bitrate in bits per second.
func (b BitRate) Int64() int64 {
	return int64(b)
}

// String returns a human-readable string representation.
func (b BitRate) String() string {
	n := int64(b)
	switch {
	case n >= 1e6 && n%1e6 == 0:
		return strconv.FormatInt(n/1e6, 10) + "M"
	case n >= 1e3 && n%1e3 == 0:
		return strconv.FormatInt(n/1e3, 10) + "k"
	default:
		return strconv.FormatInt(n, 10)
	}
}
