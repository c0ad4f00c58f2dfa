// Package rconfig loads reframer's CLI/env-var configuration, mirroring the
// teacher's internal/config.Config: a flat struct of primitive fields plus an
// env-var loader, with flag values taking precedence when both are set.
package rconfig

import (
	"os"
	"strconv"
	"strings"
)

// Options is the flat settings bag cmd/reframer builds from flags, falling
// back to REFRAMER_* environment variables for anything left unset.
type Options struct {
	RT         string
	Speed      float64
	SAPs       string // comma-separated
	Refs       bool
	Raw        bool
	Frames     string // comma-separated
	XS         string // comma-separated
	XE         string // comma-separated
	XRound     string
	XAdjust    bool
	NoSAP      bool
	SplitRange bool
	SeekSafe   float64
	Tcmdrw     bool
	Props      string // comma-separated key=value

	Synthetic   bool
	Manifest    string
	MetricsAddr string
	Diag        bool
	Resume      bool
}

// FromEnv builds an Options populated entirely from REFRAMER_* environment
// variables, the way the teacher's config.Load reads PLEX_TUNER_*.
func FromEnv() Options {
	return Options{
		RT:          getEnv("REFRAMER_RT", "off"),
		Speed:       getEnvFloat("REFRAMER_SPEED", 1.0),
		SAPs:        os.Getenv("REFRAMER_SAPS"),
		Refs:        getEnvBool("REFRAMER_REFS", false),
		Raw:         getEnvBool("REFRAMER_RAW", false),
		Frames:      os.Getenv("REFRAMER_FRAMES"),
		XS:          os.Getenv("REFRAMER_XS"),
		XE:          os.Getenv("REFRAMER_XE"),
		XRound:      getEnv("REFRAMER_XROUND", "after"),
		XAdjust:     getEnvBool("REFRAMER_XADJUST", false),
		NoSAP:       getEnvBool("REFRAMER_NOSAP", false),
		SplitRange:  getEnvBool("REFRAMER_SPLITRANGE", false),
		SeekSafe:    getEnvFloat("REFRAMER_SEEKSAFE", 0),
		Tcmdrw:      getEnvBool("REFRAMER_TCMDRW", false),
		Props:       os.Getenv("REFRAMER_PROPS"),
		Synthetic:   getEnvBool("REFRAMER_SYNTHETIC", false),
		Manifest:    os.Getenv("REFRAMER_MANIFEST"),
		MetricsAddr: getEnv("REFRAMER_METRICS_ADDR", ""),
		Diag:        getEnvBool("REFRAMER_DIAG", false),
		Resume:      getEnvBool("REFRAMER_RESUME", false),
	}
}

// Merge overrides base with every non-zero-value field set in override,
// implementing the "flags win over env" precedence cmd/reframer uses.
func Merge(base, override Options) Options {
	out := base
	if override.RT != "" {
		out.RT = override.RT
	}
	if override.Speed != 0 {
		out.Speed = override.Speed
	}
	if override.SAPs != "" {
		out.SAPs = override.SAPs
	}
	out.Refs = out.Refs || override.Refs
	out.Raw = out.Raw || override.Raw
	if override.Frames != "" {
		out.Frames = override.Frames
	}
	if override.XS != "" {
		out.XS = override.XS
	}
	if override.XE != "" {
		out.XE = override.XE
	}
	if override.XRound != "" {
		out.XRound = override.XRound
	}
	out.XAdjust = out.XAdjust || override.XAdjust
	out.NoSAP = out.NoSAP || override.NoSAP
	out.SplitRange = out.SplitRange || override.SplitRange
	if override.SeekSafe != 0 {
		out.SeekSafe = override.SeekSafe
	}
	out.Tcmdrw = out.Tcmdrw || override.Tcmdrw
	if override.Props != "" {
		out.Props = override.Props
	}
	out.Synthetic = out.Synthetic || override.Synthetic
	if override.Manifest != "" {
		out.Manifest = override.Manifest
	}
	if override.MetricsAddr != "" {
		out.MetricsAddr = override.MetricsAddr
	}
	out.Diag = out.Diag || override.Diag
	out.Resume = out.Resume || override.Resume
	return out
}

// SplitList splits a comma-separated flag/env value, dropping empty parts.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
