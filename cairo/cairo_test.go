package cairo_test

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/cienicera/Koji"
	"github.com/cienicera/Koji/cairo"
)

const (
	header = "use koji::midi::types::{Midi, Message, NoteOn, NoteOff, SetTempo, TimeSignature, ControlChange, PitchWheel, AfterTouch, PolyTouch, Modes };\nuse orion::numbers::FP32x32;\n\nfn midi() -> Midi {\n    Midi {\n        events: array![\n"
	footer = "\n        ].span()\n    }\n}"
)

func fp(mag uint64) koji.FixedPoint { return koji.FixedPoint{Mag: mag} }

func fpp(mag uint64) *koji.FixedPoint { return &koji.FixedPoint{Mag: mag} }

func allKinds() *koji.Stream {
	s := koji.NewStream(480, koji.AbsoluteMicros)
	s.Push(koji.SetTempo{Tempo: 500000, Time: fpp(0)})
	s.Push(koji.TimeSignature{Numerator: 3, Denominator: 4, ClocksPerClick: 24})
	s.Push(koji.NoteOn{Channel: 0, Note: 60, Velocity: 100, Time: fp(0)})
	s.Push(koji.ControlChange{Channel: 1, Control: 64, Value: 127, Time: fp(125000)})
	s.Push(koji.PitchWheel{Channel: 1, Pitch: -8192, Time: fp(250000)})
	s.Push(koji.AfterTouch{Channel: 1, Value: 50, Time: fp(260000)})
	s.Push(koji.PolyTouch{Channel: 1, Note: 60, Value: 51, Time: koji.FixedPoint{Mag: 10, Sign: true}})
	s.Push(koji.NoteOff{Channel: 0, Note: 60, Velocity: 0, Time: fp(500000)})
	s.Push(koji.SetTempo{Tempo: 600000})
	return s
}

func TestSerializeExactOutput(t *testing.T) {
	s := koji.NewStream(480, koji.AbsoluteMicros)
	s.Push(koji.NoteOn{Channel: 0, Note: 60, Velocity: 100, Time: fp(0)})
	s.Push(koji.SetTempo{Tempo: 500000, Time: fpp(0)})
	s.Push(koji.TimeSignature{Numerator: 4, Denominator: 4, ClocksPerClick: 24})
	var buf bytes.Buffer
	if err := cairo.Serialize(&buf, s); err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	expected := header +
		"Message::NOTE_ON(NoteOn { channel: 0, note: 60, velocity: 100, time: FP32x32 { mag: 0, sign: false } }),\n" +
		"Message::SET_TEMPO(SetTempo { tempo: FP32x32 { mag: 500000, sign: false }, time: Option::Some(FP32x32 { mag: 0, sign: false }) }),\n" +
		"Message::TIME_SIGNATURE(TimeSignature { numerator: 4, denominator: 4, clocks_per_click: 24, time: None })" +
		footer
	if got := buf.String(); got != expected {
		t.Fatalf("got\n%v\nexpected\n%v", got, expected)
	}
}

func TestSerializeEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := cairo.Serialize(&buf, koji.NewStream(0, koji.AbsoluteMicros)); err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if got := buf.String(); got != header+footer {
		t.Fatalf("got %q", got)
	}
}

func TestSerializeConvertsDeltas(t *testing.T) {
	s := koji.NewStream(480, koji.DeltaTicks)
	s.Push(koji.NoteOn{Note: 60, Velocity: 100, Time: fp(0)})
	s.Push(koji.NoteOff{Note: 60, Time: fp(480)})
	var buf bytes.Buffer
	if err := cairo.Serialize(&buf, s); err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Message::NOTE_OFF(NoteOff { channel: 0, note: 60, velocity: 0, time: FP32x32 { mag: 500000, sign: false } })") {
		t.Fatalf("note off should be at 0.5 s:\n%v", buf.String())
	}
}

func TestRoundTrip(t *testing.T) {
	for _, order := range []cairo.ScanOrder{cairo.DocumentOrder, cairo.VariantOrder} {
		s := allKinds()
		var buf bytes.Buffer
		if err := cairo.Serialize(&buf, s); err != nil {
			t.Fatalf("serialize failed: %v", err)
		}
		got, warnings, err := cairo.Parse(&buf, cairo.ParseOptions{Order: order})
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if len(warnings) > 0 {
			t.Fatalf("unexpected warnings: %v", warnings)
		}
		if got.Base != koji.AbsoluteMicros {
			t.Fatalf("expected absolute times, got %v", got.Base)
		}
		if order == cairo.DocumentOrder {
			if !reflect.DeepEqual(got.Events(), s.Events()) {
				t.Fatalf("got %v, expected %v", got.Events(), s.Events())
			}
			continue
		}
		counts := map[koji.Kind]int{}
		for _, e := range got.Events() {
			counts[e.Kind()]++
		}
		if counts[koji.KindSetTempo] != 2 || got.Len() != s.Len() {
			t.Fatalf("variant order lost events: %v", got.Events())
		}
		if got.Events()[0].Kind() != koji.KindNoteOn {
			t.Fatalf("variant order should start with the note ons, got %v", got.Events()[0])
		}
	}
}

func TestParseHistoricalFormat(t *testing.T) {
	text := `use koji::midi::types::{Midi, Message};

fn midi() -> Midi {
    Midi {
        events: array![
Message::NOTE_ON(NoteOn { channel: 0, note: 60, velocity: 100, time: 0 }),
Message::SET_TEMPO(SetTempo { tempo: 500000, time: Option::Some(0) }),
Message::NOTE_OFF(NoteOff { channel: 0,
    note: 60, velocity: 0, time: 480 }),
Message::PROGRAM_CHANGE(ProgramChange { channel: 0, program: 5, time: 0 }),
        ].span()
    }
}`
	got, warnings, err := cairo.Parse(strings.NewReader(text), cairo.ParseOptions{})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got.Base != koji.DeltaTicks {
		t.Fatalf("bare integer times should give tick deltas, got %v", got.Base)
	}
	expected := []koji.Event{
		koji.NoteOn{Channel: 0, Note: 60, Velocity: 100, Time: fp(0)},
		koji.SetTempo{Tempo: 500000, Time: fpp(0)},
		koji.NoteOff{Channel: 0, Note: 60, Velocity: 0, Time: fp(480)},
	}
	if !reflect.DeepEqual(got.Events(), expected) {
		t.Fatalf("got %v, expected %v", got.Events(), expected)
	}
	if len(warnings) != 1 || warnings[0].Line != 10 || !strings.HasPrefix(warnings[0].Fragment, "Message::PROGRAM_CHANGE(") {
		t.Fatalf("expected the program change to be reported on line 10, got %v", warnings)
	}
}

func TestParseMalformedFixedPoint(t *testing.T) {
	text := "Message::NOTE_ON(NoteOn { channel: 0, note: 60, velocity: 100, time: FP32x32 { mag: 10, sign: false } })\n" +
		"Message::NOTE_OFF(NoteOff { channel: 0, note: 60, velocity: 0, time: FP32x32 { mag: lots, sign: false } })"
	got, warnings, err := cairo.Parse(strings.NewReader(text), cairo.ParseOptions{})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if e := got.Events()[1].(koji.NoteOff); e.Time != fp(0) {
		t.Fatalf("malformed time should be 0, got %v", e.Time)
	}
	if len(warnings) != 1 || warnings[0].Line != 2 {
		t.Fatalf("expected one warning on line 2, got %v", warnings)
	}
}

func TestParseNegativeTickTime(t *testing.T) {
	text := "Message::NOTE_ON(NoteOn { channel: 0, note: 60, velocity: 100, time: 0 }),\n" +
		"Message::NOTE_OFF(NoteOff { channel: 0, note: 60, velocity: 0, time: -240 })"
	got, warnings, err := cairo.Parse(strings.NewReader(text), cairo.ParseOptions{})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got.Base != koji.DeltaTicks {
		t.Fatalf("expected tick deltas, got %v", got.Base)
	}
	if e := got.Events()[1].(koji.NoteOff); e.Time != fp(0) {
		t.Fatalf("negative tick time should be 0, got %v", e.Time)
	}
	if len(warnings) != 1 || warnings[0].Line != 2 || warnings[0].Fragment != "-240" {
		t.Fatalf("expected one warning for -240 on line 2, got %v", warnings)
	}
}

func TestParseOverflowIsFatal(t *testing.T) {
	text := "\n\nMessage::NOTE_ON(NoteOn { channel: 0, note: 600, velocity: 100, time: FP32x32 { mag: 0, sign: false } })"
	_, _, err := cairo.Parse(strings.NewReader(text), cairo.ParseOptions{})
	var decodeErr *koji.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected a decode error, got %v", err)
	}
	if decodeErr.Line != 3 {
		t.Fatalf("expected the error on line 3, got %v", decodeErr.Line)
	}
}

func TestParseNothing(t *testing.T) {
	got, warnings, err := cairo.Parse(strings.NewReader("fn main() {}"), cairo.ParseOptions{})
	if err != nil || len(warnings) > 0 || got.Len() != 0 {
		t.Fatalf("got %v events, %v, %v", got.Len(), warnings, err)
	}
}

func TestScanOrderText(t *testing.T) {
	var o cairo.ScanOrder
	if err := o.UnmarshalText([]byte("variant")); err != nil || o != cairo.VariantOrder {
		t.Fatalf("got %v, %v", o, err)
	}
	if err := o.UnmarshalText([]byte("random")); err == nil {
		t.Fatalf("expected an error")
	}
}
