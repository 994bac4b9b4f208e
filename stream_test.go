package koji_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/cienicera/Koji"
)

func fp(mag uint64) koji.FixedPoint { return koji.FixedPoint{Mag: mag} }

func fpp(mag uint64) *koji.FixedPoint { return &koji.FixedPoint{Mag: mag} }

func TestKindTypeName(t *testing.T) {
	expected := map[koji.Kind]string{
		koji.KindNoteOn:        "NoteOn",
		koji.KindNoteOff:       "NoteOff",
		koji.KindSetTempo:      "SetTempo",
		koji.KindTimeSignature: "TimeSignature",
		koji.KindControlChange: "ControlChange",
		koji.KindPitchWheel:    "PitchWheel",
		koji.KindAfterTouch:    "AfterTouch",
		koji.KindPolyTouch:     "PolyTouch",
	}
	for kind, name := range expected {
		if got := kind.TypeName(); got != name {
			t.Errorf("%v.TypeName() = %q, expected %q", kind, got, name)
		}
	}
	if koji.Kind("PROGRAM_CHANGE").Valid() {
		t.Errorf("PROGRAM_CHANGE should not be a valid kind")
	}
}

func TestStreamPreservesOrder(t *testing.T) {
	s := koji.NewStream(0, koji.DeltaTicks)
	if s.PPQ != koji.DefaultPPQ {
		t.Fatalf("expected default PPQ, got %v", s.PPQ)
	}
	events := []koji.Event{
		koji.NoteOff{Channel: 1, Note: 61, Time: fp(5)},
		koji.NoteOn{Channel: 0, Note: 60, Velocity: 90},
		koji.TimeSignature{Numerator: 3, Denominator: 4, ClocksPerClick: 24},
	}
	for _, e := range events {
		s.Push(e)
	}
	var got []koji.Event
	for i, e := range s.All {
		if i != len(got) {
			t.Fatalf("index %v out of sequence", i)
		}
		got = append(got, e)
	}
	if !reflect.DeepEqual(got, events) {
		t.Fatalf("got %v, expected %v", got, events)
	}
}

func TestAbsoluteAppliesTempoInOrder(t *testing.T) {
	s := koji.NewStream(480, koji.DeltaTicks)
	s.Push(koji.SetTempo{Tempo: 500000, Time: fpp(0)})
	s.Push(koji.NoteOn{Note: 60, Velocity: 100, Time: fp(0)})
	s.Push(koji.NoteOff{Note: 60, Time: fp(480)})
	s.Push(koji.SetTempo{Tempo: 1000000, Time: fpp(0)})
	s.Push(koji.TimeSignature{Numerator: 4, Denominator: 4, ClocksPerClick: 24})
	s.Push(koji.NoteOn{Note: 62, Velocity: 100, Time: fp(480)})
	abs := s.Absolute()
	expected := []koji.Event{
		koji.SetTempo{Tempo: 500000, Time: fpp(0)},
		koji.NoteOn{Note: 60, Velocity: 100, Time: fp(0)},
		koji.NoteOff{Note: 60, Time: fp(500000)},
		koji.SetTempo{Tempo: 1000000, Time: fpp(500000)},
		koji.TimeSignature{Numerator: 4, Denominator: 4, ClocksPerClick: 24},
		koji.NoteOn{Note: 62, Velocity: 100, Time: fp(1500000)},
	}
	if abs.Base != koji.AbsoluteMicros {
		t.Fatalf("expected absolute base, got %v", abs.Base)
	}
	if got := abs.Events(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("got %v, expected %v", got, expected)
	}
	if d := s.Duration(); d != 1500*time.Millisecond {
		t.Fatalf("expected duration 1.5s, got %v", d)
	}
	if d := abs.Duration(); d != 1500*time.Millisecond {
		t.Fatalf("expected duration 1.5s, got %v", d)
	}
}

func absoluteStream() *koji.Stream {
	s := koji.NewStream(480, koji.AbsoluteMicros)
	// variant by variant, like the historical text parser produced it
	s.Push(koji.NoteOn{Note: 60, Velocity: 100, Time: fp(0)})
	s.Push(koji.NoteOn{Note: 62, Velocity: 100, Time: fp(1000000)})
	s.Push(koji.NoteOff{Note: 60, Time: fp(500000)})
	s.Push(koji.NoteOff{Note: 62, Time: fp(1500000)})
	s.Push(koji.SetTempo{Tempo: 500000, Time: fpp(0)})
	s.Push(koji.TimeSignature{Numerator: 4, Denominator: 4, ClocksPerClick: 24})
	return s
}

func TestDeltasAppendOrder(t *testing.T) {
	got, warnings := absoluteStream().Deltas(koji.DefaultTiming, koji.AppendOrder)
	if len(warnings) > 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	expected := []koji.Event{
		koji.NoteOn{Note: 60, Velocity: 100, Time: fp(0)},
		koji.NoteOn{Note: 62, Velocity: 100, Time: fp(960)},
		koji.NoteOff{Note: 60, Time: fp(480)},
		koji.NoteOff{Note: 62, Time: fp(1440)},
		koji.SetTempo{Tempo: 500000, Time: fpp(0)},
		koji.TimeSignature{Numerator: 4, Denominator: 4, ClocksPerClick: 24},
	}
	if got.Base != koji.DeltaTicks || got.PPQ != 480 {
		t.Fatalf("unexpected base %v / ppq %v", got.Base, got.PPQ)
	}
	if !reflect.DeepEqual(got.Events(), expected) {
		t.Fatalf("got %v, expected %v", got.Events(), expected)
	}
}

func TestDeltasSortedOrder(t *testing.T) {
	got, _ := absoluteStream().Deltas(koji.DefaultTiming, koji.SortedOrder)
	expected := []koji.Event{
		koji.NoteOn{Note: 60, Velocity: 100, Time: fp(0)},
		koji.SetTempo{Tempo: 500000, Time: fpp(0)},
		// untimed events stay with their predecessor
		koji.TimeSignature{Numerator: 4, Denominator: 4, ClocksPerClick: 24},
		koji.NoteOff{Note: 60, Time: fp(480)},
		koji.NoteOn{Note: 62, Velocity: 100, Time: fp(480)},
		koji.NoteOff{Note: 62, Time: fp(480)},
	}
	if !reflect.DeepEqual(got.Events(), expected) {
		t.Fatalf("got %v, expected %v", got.Events(), expected)
	}
}

func TestDeltasCarriesMetaDelta(t *testing.T) {
	s := koji.NewStream(96, koji.DeltaTicks)
	s.Push(koji.NoteOn{Note: 60, Velocity: 1, Time: fp(0)})
	s.Push(koji.SetTempo{Tempo: 400000, Time: fpp(10)})
	s.Push(koji.NoteOff{Note: 60, Time: fp(86)})
	got, _ := s.Deltas(koji.DefaultTiming, koji.AppendOrder)
	expected := []koji.Event{
		koji.NoteOn{Note: 60, Velocity: 1, Time: fp(0)},
		koji.SetTempo{Tempo: 400000, Time: fpp(0)},
		koji.NoteOff{Note: 60, Time: fp(96)},
	}
	if got.PPQ != 96 {
		t.Fatalf("delta streams should keep their resolution, got %v", got.PPQ)
	}
	if !reflect.DeepEqual(got.Events(), expected) {
		t.Fatalf("got %v, expected %v", got.Events(), expected)
	}
}

func TestDeltasClampsNegativeTimes(t *testing.T) {
	s := koji.NewStream(480, koji.AbsoluteMicros)
	s.Push(koji.NoteOn{Note: 60, Velocity: 1, Time: koji.FixedPoint{Mag: 1000, Sign: true}})
	got, warnings := s.Deltas(koji.DefaultTiming, koji.AppendOrder)
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	if e := got.Events()[0].(koji.NoteOn); e.Time != fp(0) {
		t.Fatalf("expected clamped time, got %v", e.Time)
	}
	if got, expected := warnings[0].String(), "event 0: negative time -1000 clamped to 0"; got != expected {
		t.Fatalf("got warning %q, expected %q", got, expected)
	}
}

func TestNegativeDeltasCountAsZero(t *testing.T) {
	s := koji.NewStream(480, koji.DeltaTicks)
	s.Push(koji.NoteOn{Note: 60, Velocity: 1, Time: fp(480)})
	s.Push(koji.NoteOff{Note: 60, Time: koji.FixedPoint{Mag: 240, Sign: true}})
	for _, order := range []koji.Order{koji.AppendOrder, koji.SortedOrder} {
		got, warnings := s.Deltas(koji.DefaultTiming, order)
		expected := []koji.Event{
			koji.NoteOn{Note: 60, Velocity: 1, Time: fp(480)},
			koji.NoteOff{Note: 60, Time: fp(0)},
		}
		if !reflect.DeepEqual(got.Events(), expected) {
			t.Fatalf("%v: got %v, expected %v", order, got.Events(), expected)
		}
		if len(warnings) != 1 || warnings[0].Index != 1 {
			t.Fatalf("%v: expected one warning for event 1, got %v", order, warnings)
		}
	}
	abs := s.Absolute()
	if e := abs.Events()[1].(koji.NoteOff); e.Time != fp(500000) {
		t.Fatalf("negative delta should not move the clock, got %v", e.Time)
	}
	if d := s.Duration(); d != 500*time.Millisecond {
		t.Fatalf("got duration %v, expected 500ms", d)
	}
}

func TestAbsoluteTimesUntimedTempo(t *testing.T) {
	s := koji.NewStream(480, koji.DeltaTicks)
	s.Push(koji.NoteOn{Note: 60, Velocity: 1, Time: fp(480)})
	s.Push(koji.SetTempo{Tempo: 1000000})
	s.Push(koji.NoteOff{Note: 60, Time: fp(480)})
	expected := []koji.Event{
		koji.NoteOn{Note: 60, Velocity: 1, Time: fp(500000)},
		koji.SetTempo{Tempo: 1000000, Time: fpp(500000)},
		koji.NoteOff{Note: 60, Time: fp(1500000)},
	}
	if got := s.Absolute().Events(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("got %v, expected %v", got, expected)
	}
}

func TestWarningString(t *testing.T) {
	cases := []struct {
		w        koji.Warning
		expected string
	}{
		{koji.Warning{Index: -1, Reason: "dropped 1 ProgramChange message(s)"}, "dropped 1 ProgramChange message(s)"},
		{koji.Warning{Index: 0, Reason: "negative time -1 clamped to 0"}, "event 0: negative time -1 clamped to 0"},
		{koji.Warning{Line: 3, Index: -1, Fragment: "time: -5", Reason: "negative tick time taken as 0"}, `line 3: negative tick time taken as 0: "time: -5"`},
	}
	for _, c := range cases {
		if got := c.w.String(); got != c.expected {
			t.Fatalf("got %q, expected %q", got, c.expected)
		}
	}
}

func TestTempoMap(t *testing.T) {
	m := koji.NewTempoMap(480)
	m.Set(960, 1000000)
	m.Set(0, 500000)
	m.Set(960, 250000)
	cases := []struct {
		tick   uint64
		micros uint64
		tempo  uint32
	}{
		{0, 0, 500000},
		{480, 500000, 500000},
		{960, 1000000, 250000},
		{1440, 1250000, 250000},
	}
	for _, c := range cases {
		if got := m.Micros(c.tick); got != fp(c.micros) {
			t.Errorf("Micros(%v) = %v, expected %v", c.tick, got, c.micros)
		}
		if got := m.Tempo(c.tick); got != c.tempo {
			t.Errorf("Tempo(%v) = %v, expected %v", c.tick, got, c.tempo)
		}
	}
}

func TestParseOrder(t *testing.T) {
	var o koji.Order
	if err := o.UnmarshalText([]byte("sorted")); err != nil || o != koji.SortedOrder {
		t.Fatalf("got %v, %v", o, err)
	}
	if _, err := koji.ParseOrder("shuffled"); err == nil {
		t.Fatalf("expected an error for an unknown order")
	}
}
