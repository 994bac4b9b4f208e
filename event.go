package koji

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type (
	// Event is one message of an event stream. It is a closed union: the only
	// implementations are the eight message types in this file, and consumers
	// are expected to type switch over them.
	//
	// The meaning of an event's time depends on the TimeBase of the Stream it
	// belongs to: in a DeltaTicks stream only Mag is used and counts ticks
	// since the previous event, in an AbsoluteMicros stream the value is a
	// signed number of microseconds since the start of the stream.
	Event interface {
		Kind() Kind
		// Timestamp returns the time of the event, or false if the event does
		// not carry one (TimeSignature, or SetTempo with no time).
		Timestamp() (FixedPoint, bool)
		withTime(t FixedPoint) Event
	}

	NoteOn struct {
		Channel  uint8
		Note     uint8
		Velocity uint8
		Time     FixedPoint
	}

	NoteOff struct {
		Channel  uint8
		Note     uint8
		Velocity uint8
		Time     FixedPoint
	}

	// SetTempo changes the running tempo, in microseconds per beat. Time is
	// optional, as the structured-text format writes it as an Option.
	SetTempo struct {
		Tempo uint32
		Time  *FixedPoint
	}

	// TimeSignature has no time: meter changes are not timing critical within a
	// track and all formats write them at the position they appear in.
	TimeSignature struct {
		Numerator      uint8
		Denominator    uint8
		ClocksPerClick uint8
	}

	ControlChange struct {
		Channel uint8
		Control uint8
		Value   uint8
		Time    FixedPoint
	}

	// PitchWheel carries a signed 14-bit bend, -8192..8191, 0 being center.
	PitchWheel struct {
		Channel uint8
		Pitch   int16
		Time    FixedPoint
	}

	AfterTouch struct {
		Channel uint8
		Value   uint8
		Time    FixedPoint
	}

	PolyTouch struct {
		Channel uint8
		Note    uint8
		Value   uint8
		Time    FixedPoint
	}

	// Kind is the tag of an event variant, spelled the way all three formats
	// name it, e.g. NOTE_ON.
	Kind string
)

const (
	KindNoteOn        Kind = "NOTE_ON"
	KindNoteOff       Kind = "NOTE_OFF"
	KindSetTempo      Kind = "SET_TEMPO"
	KindTimeSignature Kind = "TIME_SIGNATURE"
	KindControlChange Kind = "CONTROL_CHANGE"
	KindPitchWheel    Kind = "PITCH_WHEEL"
	KindAfterTouch    Kind = "AFTER_TOUCH"
	KindPolyTouch     Kind = "POLY_TOUCH"
)

// Kinds lists every event variant in declaration order.
var Kinds = []Kind{
	KindNoteOn,
	KindNoteOff,
	KindSetTempo,
	KindTimeSignature,
	KindControlChange,
	KindPitchWheel,
	KindAfterTouch,
	KindPolyTouch,
}

var typeNames = func() map[Kind]string {
	caser := cases.Title(language.Und)
	ret := make(map[Kind]string, len(Kinds))
	for _, k := range Kinds {
		var b strings.Builder
		for _, word := range strings.Split(strings.ToLower(string(k)), "_") {
			b.WriteString(caser.String(word))
		}
		ret[k] = b.String()
	}
	return ret
}()

// TypeName returns the struct name used for the variant in the structured-text
// format: NOTE_ON becomes NoteOn, TIME_SIGNATURE becomes TimeSignature.
func (k Kind) TypeName() string {
	return typeNames[k]
}

// Valid reports if k is one of the known variants.
func (k Kind) Valid() bool {
	_, ok := typeNames[k]
	return ok
}

func (e NoteOn) Kind() Kind        { return KindNoteOn }
func (e NoteOff) Kind() Kind       { return KindNoteOff }
func (e SetTempo) Kind() Kind      { return KindSetTempo }
func (e TimeSignature) Kind() Kind { return KindTimeSignature }
func (e ControlChange) Kind() Kind { return KindControlChange }
func (e PitchWheel) Kind() Kind    { return KindPitchWheel }
func (e AfterTouch) Kind() Kind    { return KindAfterTouch }
func (e PolyTouch) Kind() Kind     { return KindPolyTouch }

func (e NoteOn) Timestamp() (FixedPoint, bool)        { return e.Time, true }
func (e NoteOff) Timestamp() (FixedPoint, bool)       { return e.Time, true }
func (e TimeSignature) Timestamp() (FixedPoint, bool) { return FixedPoint{}, false }
func (e ControlChange) Timestamp() (FixedPoint, bool) { return e.Time, true }
func (e PitchWheel) Timestamp() (FixedPoint, bool)    { return e.Time, true }
func (e AfterTouch) Timestamp() (FixedPoint, bool)    { return e.Time, true }
func (e PolyTouch) Timestamp() (FixedPoint, bool)     { return e.Time, true }

func (e SetTempo) Timestamp() (FixedPoint, bool) {
	if e.Time == nil {
		return FixedPoint{}, false
	}
	return *e.Time, true
}

func (e NoteOn) withTime(t FixedPoint) Event        { e.Time = t; return e }
func (e NoteOff) withTime(t FixedPoint) Event       { e.Time = t; return e }
func (e TimeSignature) withTime(t FixedPoint) Event { return e }
func (e ControlChange) withTime(t FixedPoint) Event { e.Time = t; return e }
func (e PitchWheel) withTime(t FixedPoint) Event    { e.Time = t; return e }
func (e AfterTouch) withTime(t FixedPoint) Event    { e.Time = t; return e }
func (e PolyTouch) withTime(t FixedPoint) Event     { e.Time = t; return e }

func (e SetTempo) withTime(t FixedPoint) Event {
	e.Time = &t
	return e
}

// IsMeta reports if the event is a meta event (tempo or meter). Meta events
// are written with a zero delta at their position and never move the clock
// when a track is rebuilt from timestamps.
func IsMeta(e Event) bool {
	switch e.(type) {
	case SetTempo, TimeSignature:
		return true
	}
	return false
}
