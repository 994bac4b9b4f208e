package koji

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// FixedPoint is a sign/magnitude number as written by the FP32x32 type of the
// structured-text format. Sign true means negative; Mag is never negative. For
// times the magnitude is in microseconds, so only the sign/magnitude shape of
// the target type is modeled, not its 32.32 bit arithmetic.
type FixedPoint struct {
	Mag  uint64
	Sign bool
}

const (
	DefaultPPQ   = 480
	DefaultTempo = 500000 // microseconds per beat, i.e. 120 BPM
	DefaultBPM   = 120
)

var fixedPointReg = regexp.MustCompile(`\{\s*mag:\s*([0-9]+)\s*,\s*sign:\s*(true|false)\s*\}`)

// Ticks returns a non-negative fixed point with the given magnitude.
func Ticks(ticks uint64) FixedPoint {
	return FixedPoint{Mag: ticks}
}

// FromValue converts a signed integer into sign/magnitude form.
func FromValue(v int64) FixedPoint {
	if v < 0 {
		return FixedPoint{Mag: uint64(-v), Sign: true}
	}
	return FixedPoint{Mag: uint64(v)}
}

// Value returns the signed integer value, negating the magnitude if Sign is
// set. Magnitudes beyond the int64 range saturate.
func (f FixedPoint) Value() int64 {
	v := int64(math.MaxInt64)
	if f.Mag <= math.MaxInt64 {
		v = int64(f.Mag)
	}
	if f.Sign {
		return -v
	}
	return v
}

// Seconds interprets the value as microseconds.
func (f FixedPoint) Seconds() float64 {
	return float64(f.Value()) / 1e6
}

func (f FixedPoint) String() string {
	return fmt.Sprintf("FP32x32 { mag: %d, sign: %t }", f.Mag, f.Sign)
}

// ParseFixedPoint finds the first `{ mag: N, sign: B }` pattern in text. The
// pattern can be surrounded by anything, e.g. an FP32x32 or Option::Some
// wrapper, and whitespace inside it is free.
func ParseFixedPoint(text string) (FixedPoint, bool) {
	m := fixedPointReg.FindStringSubmatch(text)
	if m == nil {
		return FixedPoint{}, false
	}
	mag, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return FixedPoint{}, false
	}
	return FixedPoint{Mag: mag, Sign: m[2] == "true"}, true
}

// FixedPointValue returns the signed value of the fixed point literal in text,
// or 0 if text has no recognizable literal.
func FixedPointValue(text string) int64 {
	f, _ := ParseFixedPoint(text)
	return f.Value()
}

// TicksToSeconds converts a tick count into seconds at a constant tempo given
// in microseconds per beat.
func TicksToSeconds(ticks uint64, ppq uint16, tempo uint32) float64 {
	if ppq == 0 {
		ppq = DefaultPPQ
	}
	return float64(ticks) * float64(tempo) / (float64(ppq) * 1e6)
}

// SecondsToTicks is the inverse of TicksToSeconds, rounded to the nearest
// tick. Negative times give negative tick counts.
func SecondsToTicks(seconds float64, ppq uint16, tempo uint32) int64 {
	if ppq == 0 {
		ppq = DefaultPPQ
	}
	if tempo == 0 {
		tempo = DefaultTempo
	}
	return int64(math.Round(seconds * float64(ppq) * 1e6 / float64(tempo)))
}

// SecondsToFixedPoint rounds seconds to whole microseconds.
func SecondsToFixedPoint(seconds float64) FixedPoint {
	return FixedPoint{Mag: uint64(math.Round(math.Abs(seconds) * 1e6)), Sign: seconds < 0}
}

// TicksToFixedPoint converts a tick count at a constant tempo directly into
// its microsecond fixed point form.
func TicksToFixedPoint(ticks uint64, ppq uint16, tempo uint32) FixedPoint {
	return SecondsToFixedPoint(TicksToSeconds(ticks, ppq, tempo))
}

// BPMToTempo converts beats per minute to microseconds per beat.
func BPMToTempo(bpm float64) uint32 {
	if bpm <= 0 {
		return DefaultTempo
	}
	return uint32(math.Round(60e6 / bpm))
}

// TempoToBPM converts microseconds per beat to beats per minute.
func TempoToBPM(tempo uint32) float64 {
	if tempo == 0 {
		return DefaultBPM
	}
	return 60e6 / float64(tempo)
}
