// Package reframer implements the range-extraction and splitting engine:
// the multi-stream state machine described in spec.md §3-4. It is the hard
// core of the media reframer filter; everything around it (filter-session
// plumbing, codec parsing, muxing, CLI) is an external collaborator reached
// only through the pidio capability interfaces.
package reframer

import "github.com/snapetech/reframer/internal/reframer/rangespec"

// ExtractMode selects which of the engine's cut-selection strategies is
// active for the current configuration.
type ExtractMode int

const (
	ExtractNone ExtractMode = iota
	ExtractRange
	ExtractSAP
	ExtractSize
	ExtractDuration
)

// RangeType tracks progress through the configured range list.
type RangeType int

const (
	RangeTypeNone RangeType = iota
	RangeTypeClosed
	RangeTypeOpen
	RangeTypeDone
)

// EOSState is the process-wide end-of-stream escalation level.
type EOSState int

const (
	EOSNone EOSState = iota
	EOSGraceful
	EOSFatal
)

// RangeStartState is the per-stream progress of start-cut location
// (spec.md §3: range_start_computed).
type RangeStartState int

const (
	RangeStartPending         RangeStartState = iota // 0 not-yet
	RangeStartFound                                  // 1 found
	RangeStartEOSBeforeStart                         // 2 eos-before-start
	RangeStartReinsertSingle                          // 3 reinsert-single
)

// PckInRange classifies a packet against the current range's start/end.
type PckInRange int

const (
	PckBeforeRange PckInRange = iota
	PckInsideRange
	PckAfterRange
)

// TSPlusOne is the "plus-one" option type: zero means unset, any non-zero
// value N means the real timestamp is N-1. This disambiguates timestamp 0
// from "nothing selected yet" without a separate boolean, matching spec.md's
// own plus-one sentinels while keeping callers honest via Valid()/Value().
type TSPlusOne int64

func NewTSPlusOne(ts int64) TSPlusOne { return TSPlusOne(ts + 1) }
func (t TSPlusOne) Valid() bool       { return t != 0 }
func (t TSPlusOne) Value() int64      { return int64(t) - 1 }

// FrameIdxPlusOne is the frame-index analogue of TSPlusOne.
type FrameIdxPlusOne int

func NewFrameIdxPlusOne(idx int) FrameIdxPlusOne { return FrameIdxPlusOne(idx + 1) }
func (f FrameIdxPlusOne) Valid() bool            { return f != 0 }
func (f FrameIdxPlusOne) Value() int             { return int(f) - 1 }

// RTMode selects the real-time pacing strategy (spec.md §4.6).
type RTMode int

const (
	RTOff RTMode = iota
	RTOn
	RTSync
)

// RTPrecisionUS is the pacer's emit-vs-reschedule tolerance window.
const RTPrecisionUS = int64(10_000) // 10ms, matching typical frame-pacing jitter budgets

// Rounding re-exports rangespec.Rounding so callers only need to import one
// package for the common case.
type Rounding = rangespec.Rounding

const (
	RoundBefore  = rangespec.RoundBefore
	RoundAfter   = rangespec.RoundAfter
	RoundClosest = rangespec.RoundClosest
)
