package template

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedRange indicates a normal range string that does not parse.
var ErrMalformedRange = errors.New("template: malformed normal range")

// RangeKind classifies a normal range constraint.
type RangeKind byte

const (
	// RangeNone means no normal range is configured.
	RangeNone RangeKind = iota

	// RangeInterval is a closed low-high interval, e.g. "4.5-11.0".
	RangeInterval

	// RangeBelow is an upper bound, e.g. "<200".
	RangeBelow

	// RangeAbove is a lower bound, e.g. ">40".
	RangeAbove
)

// Range is a parsed normal range constraint for a numeric field.
type Range struct {
	Low  float64
	High float64
	Kind RangeKind
}

// ParseRange parses a normal range string. The supported forms are the empty
// string, a "low-high" interval, "<max", and ">min".
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Range{Kind: RangeNone}, nil
	}

	switch s[0] {
	case '<':
		high, err := parseBound(s[1:])
		if err != nil {
			return Range{}, fmt.Errorf("%w: %q", ErrMalformedRange, s)
		}

		return Range{Kind: RangeBelow, High: high}, nil
	case '>':
		low, err := parseBound(s[1:])
		if err != nil {
			return Range{}, fmt.Errorf("%w: %q", ErrMalformedRange, s)
		}

		return Range{Kind: RangeAbove, Low: low}, nil
	}

	lowText, highText, ok := strings.Cut(s, "-")
	if !ok {
		return Range{}, fmt.Errorf("%w: %q", ErrMalformedRange, s)
	}

	low, lowErr := parseBound(lowText)
	high, highErr := parseBound(highText)
	if lowErr != nil || highErr != nil || low > high {
		return Range{}, fmt.Errorf("%w: %q", ErrMalformedRange, s)
	}

	return Range{Kind: RangeInterval, Low: low, High: high}, nil
}

func parseBound(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
