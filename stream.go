package koji

import (
	"fmt"
	"time"

	"golang.org/x/exp/slices"
)

type (
	// Stream is an ordered list of events, as decoded from one source file.
	// Event order is track order and is kept as is; only Deltas with
	// SortedOrder reorders events. A Stream is built by exactly one decode and
	// consumed by one encode, and is not safe for concurrent use.
	Stream struct {
		// PPQ is the number of ticks in a beat (pulses per quarter note).
		PPQ uint16
		// Base tells how event times are to be interpreted.
		Base   TimeBase
		events []Event
	}

	// TimeBase is the unit of the event times of a stream.
	TimeBase int

	// Order is the policy used to turn timestamps back into tick deltas.
	Order int

	// Timing is the tempo and resolution assumed when microsecond timestamps
	// are converted back to ticks. The structured-text format does not store
	// the resolution of the file it came from, so it has to be supplied.
	Timing struct {
		BPM float64
		PPQ uint16
	}
)

const (
	// DeltaTicks streams store the ticks since the previous event in Mag.
	DeltaTicks TimeBase = iota
	// AbsoluteMicros streams store signed microseconds since the start.
	AbsoluteMicros
)

const (
	// AppendOrder keeps events in encounter order and uses each stored time as
	// the delta of the event, i.e. assumes the source stored relative times.
	AppendOrder Order = iota
	// SortedOrder stable sorts events by their absolute time and recomputes
	// each delta from the previous event, i.e. assumes the source stored
	// absolute timestamps.
	SortedOrder
)

// DefaultTiming is 120 BPM at 480 ticks per beat.
var DefaultTiming = Timing{BPM: DefaultBPM, PPQ: DefaultPPQ}

func NewStream(ppq uint16, base TimeBase) *Stream {
	if ppq == 0 {
		ppq = DefaultPPQ
	}
	return &Stream{PPQ: ppq, Base: base}
}

func (s *Stream) Push(e Event) {
	s.events = append(s.events, e)
}

func (s *Stream) Len() int {
	return len(s.events)
}

// All yields the events in order with their index.
func (s *Stream) All(yield func(int, Event) bool) {
	for i, e := range s.events {
		if !yield(i, e) {
			return
		}
	}
}

// Events returns a copy of the event list.
func (s *Stream) Events() []Event {
	return slices.Clone(s.events)
}

// Absolute returns the stream with times converted to microseconds since the
// start. Deltas are accumulated at the running tempo, which every SetTempo
// changes for the events after it. The stream is treated as one track. A
// SetTempo without a time gets the time of its position; negative deltas
// count as 0.
func (s *Stream) Absolute() *Stream {
	ret := NewStream(s.PPQ, AbsoluteMicros)
	if s.Base == AbsoluteMicros {
		ret.events = slices.Clone(s.events)
		return ret
	}
	clock := NewClock(s.PPQ)
	for _, e := range s.events {
		var delta uint64
		if t, ok := e.Timestamp(); ok && !t.Sign {
			delta = t.Mag
		}
		at := clock.Advance(delta)
		if _, ok := e.Timestamp(); ok || e.Kind() == KindSetTempo {
			e = e.withTime(at)
		}
		ret.Push(e)
		clock.ApplyTempo(e)
	}
	return ret
}

// Deltas returns the stream with times converted to tick deltas, ready for
// formats that store ticks. Microsecond timestamps are converted with the
// constant tempo and resolution of timing; SetTempo events in the stream do
// not change it, so a stream whose tempo changes comes back with the ticks
// it would have at the tempo of timing. Meta events always get a zero delta;
// a delta they had is carried to the next timed event so the rest of the
// track keeps its timing. Negative times and deltas are clamped to zero and
// reported.
func (s *Stream) Deltas(timing Timing, order Order) (*Stream, []Warning) {
	if timing.PPQ == 0 {
		timing.PPQ = DefaultPPQ
	}
	tempo := BPMToTempo(timing.BPM)
	var warnings []Warning
	ppq := s.PPQ
	if s.Base == AbsoluteMicros {
		ppq = timing.PPQ
	}
	ticks := func(i int, t FixedPoint) uint64 {
		v := t.Value()
		if s.Base == AbsoluteMicros {
			v = SecondsToTicks(t.Seconds(), timing.PPQ, tempo)
		}
		if v < 0 {
			warnings = append(warnings, Warning{
				Index:  i,
				Reason: fmt.Sprintf("negative time %v clamped to 0", t.Value()),
			})
			return 0
		}
		return uint64(v)
	}
	ret := NewStream(ppq, DeltaTicks)
	if order == AppendOrder && s.Base == AbsoluteMicros {
		for i, e := range s.events {
			if IsMeta(e) {
				ret.Push(zeroTime(e))
				continue
			}
			t, _ := e.Timestamp()
			ret.Push(e.withTime(Ticks(ticks(i, t))))
		}
		return ret, warnings
	}
	// place every event on an absolute tick: accumulated for delta streams,
	// converted for timestamped ones; untimed events stay with their
	// predecessor
	type placed struct {
		tick uint64
		e    Event
	}
	list := make([]placed, len(s.events))
	var pos uint64
	for i, e := range s.events {
		if t, ok := e.Timestamp(); ok {
			if s.Base == DeltaTicks {
				pos += ticks(i, t)
			} else {
				pos = ticks(i, t)
			}
		}
		list[i] = placed{tick: pos, e: e}
	}
	if order == SortedOrder {
		slices.SortStableFunc(list, func(a, b placed) int {
			switch {
			case a.tick < b.tick:
				return -1
			case a.tick > b.tick:
				return 1
			}
			return 0
		})
	}
	var prev uint64
	for _, p := range list {
		if IsMeta(p.e) {
			ret.Push(zeroTime(p.e))
			continue
		}
		var delta uint64
		if p.tick > prev {
			delta = p.tick - prev
		}
		ret.Push(p.e.withTime(Ticks(delta)))
		prev = p.tick
	}
	return ret, warnings
}

// Duration is the wall clock length of the stream, i.e. the time of its last
// event.
func (s *Stream) Duration() time.Duration {
	var secs float64
	if s.Base == AbsoluteMicros {
		for _, e := range s.events {
			if t, ok := e.Timestamp(); ok && t.Seconds() > secs {
				secs = t.Seconds()
			}
		}
	} else {
		clock := NewClock(s.PPQ)
		for _, e := range s.events {
			if t, ok := e.Timestamp(); ok && !t.Sign {
				clock.Advance(t.Mag)
			}
			clock.ApplyTempo(e)
		}
		secs = clock.Seconds()
	}
	return time.Duration(secs * float64(time.Second))
}

func zeroTime(e Event) Event {
	if _, ok := e.Timestamp(); ok {
		return e.withTime(FixedPoint{})
	}
	return e
}

func (b TimeBase) String() string {
	switch b {
	case DeltaTicks:
		return "delta ticks"
	case AbsoluteMicros:
		return "absolute microseconds"
	}
	return fmt.Sprintf("TimeBase(%d)", int(b))
}

func ParseOrder(s string) (Order, error) {
	switch s {
	case "append", "":
		return AppendOrder, nil
	case "sorted", "sort":
		return SortedOrder, nil
	}
	return AppendOrder, fmt.Errorf("unknown event order %q, expected append or sorted", s)
}

func (o Order) String() string {
	if o == SortedOrder {
		return "sorted"
	}
	return "append"
}

func (o Order) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Order) UnmarshalText(text []byte) error {
	v, err := ParseOrder(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
