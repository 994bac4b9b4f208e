// Package eventjson reads and writes event streams as JSON documents of the
// form {"events": [{"NOTE_ON": {"channel": 0, ...}}, ...]}. Every time is a
// plain number of ticks since the previous event.
package eventjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cienicera/Koji"
)

// Options controls encoding. Timing and Order are used to turn microsecond
// timestamps into tick deltas, see koji.Stream.Deltas. An empty Indent means
// four spaces.
type Options struct {
	Timing koji.Timing
	Order  koji.Order
	Indent string
}

const DefaultIndent = "    "

type (
	document struct {
		Events *[]map[string]json.RawMessage `json:"events"`
	}

	noteWire struct {
		Channel  *uint8  `json:"channel"`
		Note     *uint8  `json:"note"`
		Velocity *uint8  `json:"velocity"`
		Time     *uint64 `json:"time"`
	}

	tempoWire struct {
		Tempo *uint32 `json:"tempo"`
		Time  *uint64 `json:"time"`
	}

	timeSignatureWire struct {
		Numerator      *uint8  `json:"numerator"`
		Denominator    *uint8  `json:"denominator"`
		ClocksPerClick *uint8  `json:"clocks_per_click"`
		Time           *uint64 `json:"time"`
	}

	controlChangeWire struct {
		Channel *uint8  `json:"channel"`
		Control *uint8  `json:"control"`
		Value   *uint8  `json:"value"`
		Time    *uint64 `json:"time"`
	}

	pitchWheelWire struct {
		Channel *uint8  `json:"channel"`
		Pitch   *int16  `json:"pitch"`
		Time    *uint64 `json:"time"`
	}

	afterTouchWire struct {
		Channel *uint8  `json:"channel"`
		Value   *uint8  `json:"value"`
		Time    *uint64 `json:"time"`
	}

	polyTouchWire struct {
		Channel *uint8  `json:"channel"`
		Note    *uint8  `json:"note"`
		Value   *uint8  `json:"value"`
		Time    *uint64 `json:"time"`
	}
)

// Encode writes the stream as an indented JSON document. The stream is
// converted to tick deltas first. SET_TEMPO and TIME_SIGNATURE get a null
// time; a delta they had moves to the next timed event.
func Encode(w io.Writer, s *koji.Stream, opts Options) ([]koji.Warning, error) {
	s, warnings := s.Deltas(opts.Timing, opts.Order)
	events := make([]map[string]any, 0, s.Len())
	for _, e := range s.All {
		events = append(events, map[string]any{string(e.Kind()): wireOf(e)})
	}
	indent := opts.Indent
	if indent == "" {
		indent = DefaultIndent
	}
	data, err := json.MarshalIndent(map[string]any{"events": events}, "", indent)
	if err != nil {
		return warnings, fmt.Errorf("could not marshal events: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return warnings, err
	}
	return warnings, nil
}

func wireOf(e koji.Event) any {
	delta := func(t koji.FixedPoint) *uint64 { return &t.Mag }
	switch e := e.(type) {
	case koji.NoteOn:
		return noteWire{&e.Channel, &e.Note, &e.Velocity, delta(e.Time)}
	case koji.NoteOff:
		return noteWire{&e.Channel, &e.Note, &e.Velocity, delta(e.Time)}
	case koji.SetTempo:
		return tempoWire{Tempo: &e.Tempo}
	case koji.TimeSignature:
		return timeSignatureWire{Numerator: &e.Numerator, Denominator: &e.Denominator, ClocksPerClick: &e.ClocksPerClick}
	case koji.ControlChange:
		return controlChangeWire{&e.Channel, &e.Control, &e.Value, delta(e.Time)}
	case koji.PitchWheel:
		return pitchWheelWire{&e.Channel, &e.Pitch, delta(e.Time)}
	case koji.AfterTouch:
		return afterTouchWire{&e.Channel, &e.Value, delta(e.Time)}
	case koji.PolyTouch:
		return polyTouchWire{&e.Channel, &e.Note, &e.Value, delta(e.Time)}
	}
	return nil
}

// Decode reads a JSON document into a stream of tick deltas at the default
// resolution. An absent or null time is 0, except for SET_TEMPO where it means
// the event has no time. Every other field is required; a missing one fails
// with a *koji.MissingFieldError.
func Decode(r io.Reader) (*koji.Stream, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &koji.DecodeError{Format: "json", Index: -1, Err: err}
	}
	if doc.Events == nil {
		return nil, &koji.DecodeError{Format: "json", Index: -1, Err: errors.New(`no "events" list`)}
	}
	stream := koji.NewStream(koji.DefaultPPQ, koji.DeltaTicks)
	for i, obj := range *doc.Events {
		e, err := decodeEvent(i, obj)
		if err != nil {
			return nil, err
		}
		stream.Push(e)
	}
	return stream, nil
}

func decodeEvent(index int, obj map[string]json.RawMessage) (koji.Event, error) {
	if len(obj) != 1 {
		return nil, &koji.DecodeError{Format: "json", Index: index, Err: fmt.Errorf("expected an object with exactly one key, got %d", len(obj))}
	}
	var kind koji.Kind
	var raw json.RawMessage
	for k, v := range obj {
		kind, raw = koji.Kind(k), v
	}
	if !kind.Valid() {
		return nil, &koji.DecodeError{Format: "json", Index: index, Err: fmt.Errorf("unknown event %q", kind)}
	}
	d := decoder{index: index, kind: kind}
	switch kind {
	case koji.KindNoteOn, koji.KindNoteOff:
		var w noteWire
		if err := d.unmarshal(raw, &w); err != nil {
			return nil, err
		}
		channel, note, velocity := d.u8("channel", w.Channel), d.u8("note", w.Note), d.u8("velocity", w.Velocity)
		if kind == koji.KindNoteOn {
			return koji.NoteOn{Channel: channel, Note: note, Velocity: velocity, Time: ticks(w.Time)}, d.err
		}
		return koji.NoteOff{Channel: channel, Note: note, Velocity: velocity, Time: ticks(w.Time)}, d.err
	case koji.KindSetTempo:
		var w tempoWire
		if err := d.unmarshal(raw, &w); err != nil {
			return nil, err
		}
		e := koji.SetTempo{}
		if d.require("tempo", w.Tempo != nil) {
			e.Tempo = *w.Tempo
		}
		if w.Time != nil {
			t := koji.Ticks(*w.Time)
			e.Time = &t
		}
		return e, d.err
	case koji.KindTimeSignature:
		var w timeSignatureWire
		if err := d.unmarshal(raw, &w); err != nil {
			return nil, err
		}
		e := koji.TimeSignature{
			Numerator:      d.u8("numerator", w.Numerator),
			Denominator:    d.u8("denominator", w.Denominator),
			ClocksPerClick: d.u8("clocks_per_click", w.ClocksPerClick),
		}
		return e, d.err
	case koji.KindControlChange:
		var w controlChangeWire
		if err := d.unmarshal(raw, &w); err != nil {
			return nil, err
		}
		e := koji.ControlChange{Channel: d.u8("channel", w.Channel), Control: d.u8("control", w.Control), Value: d.u8("value", w.Value), Time: ticks(w.Time)}
		return e, d.err
	case koji.KindPitchWheel:
		var w pitchWheelWire
		if err := d.unmarshal(raw, &w); err != nil {
			return nil, err
		}
		e := koji.PitchWheel{Channel: d.u8("channel", w.Channel), Time: ticks(w.Time)}
		if d.require("pitch", w.Pitch != nil) {
			e.Pitch = *w.Pitch
		}
		return e, d.err
	case koji.KindAfterTouch:
		var w afterTouchWire
		if err := d.unmarshal(raw, &w); err != nil {
			return nil, err
		}
		e := koji.AfterTouch{Channel: d.u8("channel", w.Channel), Value: d.u8("value", w.Value), Time: ticks(w.Time)}
		return e, d.err
	case koji.KindPolyTouch:
		var w polyTouchWire
		if err := d.unmarshal(raw, &w); err != nil {
			return nil, err
		}
		e := koji.PolyTouch{Channel: d.u8("channel", w.Channel), Note: d.u8("note", w.Note), Value: d.u8("value", w.Value), Time: ticks(w.Time)}
		return e, d.err
	}
	return nil, &koji.DecodeError{Format: "json", Index: index, Err: fmt.Errorf("unsupported event %q", kind)}
}

// decoder keeps the first missing field of one event object.
type decoder struct {
	index int
	kind  koji.Kind
	err   error
}

func (d *decoder) unmarshal(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return &koji.DecodeError{Format: "json", Index: d.index, Err: fmt.Errorf("%v: %w", d.kind, err)}
	}
	return nil
}

func (d *decoder) require(field string, present bool) bool {
	if !present && d.err == nil {
		d.err = &koji.MissingFieldError{Index: d.index, Kind: d.kind, Field: field}
	}
	return present
}

func (d *decoder) u8(field string, v *uint8) uint8 {
	if !d.require(field, v != nil) {
		return 0
	}
	return *v
}

func ticks(v *uint64) koji.FixedPoint {
	if v == nil {
		return koji.FixedPoint{}
	}
	return koji.Ticks(*v)
}
