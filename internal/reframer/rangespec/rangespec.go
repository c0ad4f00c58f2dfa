// Package rangespec parses the textual range endpoints accepted by the
// reframer's xs[]/xe[] flags into typed descriptors, per spec.md §4.1.
package rangespec

import (
	"fmt"
	"strconv"
	"strings"
)

// Rational is a num/den pair used for sub-second precision without floating
// point drift across timescale conversions.
type Rational struct {
	Num int64
	Den int64
}

func NewRational(num, den int64) Rational {
	if den == 0 {
		den = 1
	}
	return Rational{Num: num, Den: den}
}

func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// ScaleTo converts the rational (in seconds) to ticks at the given timescale,
// widening to int64 arithmetic the way 128-bit/widening products would for
// the values this engine deals with (sub-day durations at sub-GHz
// timescales never overflow 64 bits in practice, but we keep the
// multiply-then-divide order to avoid truncation).
func (r Rational) ScaleTo(timescale uint64) int64 {
	if r.Den == 0 {
		return 0
	}
	return r.Num * int64(timescale) / r.Den
}

// Kind identifies which of spec.md §4.1's endpoint grammars matched.
type Kind int

const (
	KindNone Kind = iota
	KindTime
	KindFrame
	KindSAP
	KindDuration
	KindSize
)

// Endpoint is the parsed form of one xs[]/xe[] entry.
type Endpoint struct {
	Kind Kind
	Raw  string // original text, needed verbatim for textual FileSuffix composition

	Seconds Rational // valid for KindTime, KindDuration

	// FramePlusOne is the 1-based-plus-one sentinel frame index: 0 means
	// unset, otherwise the requested 0-based frame index is FramePlusOne-1.
	FramePlusOne int

	SizeBytes int64 // valid for KindSize
}

// ParseEndpoint parses a single xs/xe textual endpoint.
func ParseEndpoint(raw string) (Endpoint, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Endpoint{}, fmt.Errorf("rangespec: empty endpoint")
	}
	switch {
	case strings.EqualFold(s, "RAP") || strings.EqualFold(s, "SAP"):
		return Endpoint{Kind: KindSAP, Raw: raw}, nil
	case strings.HasPrefix(s, "T") || strings.HasPrefix(s, "t"):
		sec, err := parseTimecode(s[1:])
		if err != nil {
			return Endpoint{}, fmt.Errorf("rangespec: %s: %w", raw, err)
		}
		return Endpoint{Kind: KindTime, Raw: raw, Seconds: sec}, nil
	case strings.HasPrefix(s, "F") || strings.HasPrefix(s, "f"):
		n, err := strconv.Atoi(s[1:])
		if err != nil || n < 0 {
			return Endpoint{}, fmt.Errorf("rangespec: %s: invalid frame index", raw)
		}
		return Endpoint{Kind: KindFrame, Raw: raw, FramePlusOne: n + 1}, nil
	case strings.HasPrefix(s, "D") || strings.HasPrefix(s, "d"):
		sec, err := parseFraction(s[1:])
		if err != nil {
			return Endpoint{}, fmt.Errorf("rangespec: %s: %w", raw, err)
		}
		return Endpoint{Kind: KindDuration, Raw: raw, Seconds: sec}, nil
	case strings.HasPrefix(s, "S") || strings.HasPrefix(s, "s"):
		n, err := parseSize(s[1:])
		if err != nil {
			return Endpoint{}, fmt.Errorf("rangespec: %s: %w", raw, err)
		}
		return Endpoint{Kind: KindSize, Raw: raw, SizeBytes: n}, nil
	default:
		sec, err := parseFraction(s)
		if err != nil {
			return Endpoint{}, fmt.Errorf("rangespec: %s: unrecognized endpoint", raw)
		}
		return Endpoint{Kind: KindTime, Raw: raw, Seconds: sec}, nil
	}
}

// parseTimecode handles hh:mm:ss[.ms], mm:ss[.ms] and s[.ms] (the three
// T-prefixed grammars collapse into one colon-counting parser).
func parseTimecode(s string) (Rational, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		return parseFraction(parts[0])
	case 2:
		mm, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return Rational{}, fmt.Errorf("invalid minutes %q", parts[0])
		}
		ss, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return Rational{}, fmt.Errorf("invalid seconds %q", parts[1])
		}
		total := mm*60 + ss
		return secondsToRational(total), nil
	case 3:
		hh, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return Rational{}, fmt.Errorf("invalid hours %q", parts[0])
		}
		mm, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return Rational{}, fmt.Errorf("invalid minutes %q", parts[1])
		}
		ss, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return Rational{}, fmt.Errorf("invalid seconds %q", parts[2])
		}
		total := hh*3600 + mm*60 + ss
		return secondsToRational(total), nil
	default:
		return Rational{}, fmt.Errorf("too many ':' in timecode %q", s)
	}
}

// parseFraction parses "n", "n.m" or "n/d" into a Rational of seconds.
func parseFraction(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rational{}, fmt.Errorf("empty value")
	}
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		num, err := strconv.ParseInt(s[:idx], 10, 64)
		if err != nil {
			return Rational{}, fmt.Errorf("invalid numerator %q", s[:idx])
		}
		den, err := strconv.ParseInt(s[idx+1:], 10, 64)
		if err != nil || den == 0 {
			return Rational{}, fmt.Errorf("invalid denominator %q", s[idx+1:])
		}
		return NewRational(num, den), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid number %q", s)
	}
	return secondsToRational(f), nil
}

// secondsToRational converts a float second value into a rational with a
// microsecond denominator, rounded to the nearest microsecond.
func secondsToRational(f float64) Rational {
	const denom = 1_000_000
	return NewRational(int64(f*denom+sign(f)*0.5), denom)
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

// parseSize parses "n", "nk", "nm", "ng" (case-insensitive) into a byte count.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	mult := int64(1)
	last := s[len(s)-1]
	switch last {
	case 'k', 'K':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		mult = 1 << 30
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return int64(n * float64(mult)), nil
}

// Rounding is the xround policy for start-cut selection.
type Rounding int

const (
	RoundBefore Rounding = iota
	RoundAfter
	RoundClosest
)

func ParseRounding(s string) (Rounding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "before":
		return RoundBefore, nil
	case "after":
		return RoundAfter, nil
	case "closest":
		return RoundClosest, nil
	default:
		return RoundBefore, fmt.Errorf("rangespec: unknown xround %q", s)
	}
}

// FormatTextualSuffix builds the FileSuffix for textual (non-time) start
// endpoints by concatenating the raw endpoint text with ':' and '/'
// replaced by '.', per spec.md §4.5.
func FormatTextualSuffix(parts ...string) string {
	repl := strings.NewReplacer(":", ".", "/", ".")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = repl.Replace(p)
	}
	return strings.Join(out, "_")
}
