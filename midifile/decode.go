// Package midifile maps Standard MIDI Files to and from event streams. The
// byte layout of the file is left to gomidi; this package only decides which
// messages become which events and how their times are computed.
package midifile

import (
	"fmt"
	"io"
	"sort"

	"github.com/cienicera/Koji"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Decode reads a MIDI file into a stream with the requested time base. Tracks
// are appended one after another.
//
// With AbsoluteMicros every event is stamped with the time of its own onset.
// Each track keeps its own cumulative tick counter, and ticks are converted
// with a tempo map collected from the tempo messages of all tracks, so a
// separate tempo track times the note tracks correctly.
//
// With DeltaTicks the raw deltas are kept. Messages that are not decoded, and
// time signatures which carry no time, pass their delta on to the next event.
//
// Messages other than notes, control changes, pitch bend, aftertouch, tempo
// and time signature are dropped; the returned warnings count them by type.
func Decode(r io.Reader, base koji.TimeBase) (*koji.Stream, []koji.Warning, error) {
	file, err := smf.ReadFrom(r)
	if err != nil {
		return nil, nil, &koji.DecodeError{Format: "midi", Index: -1, Err: err}
	}
	metric, ok := file.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, nil, &koji.DecodeError{Format: "midi", Index: -1, Err: fmt.Errorf("unsupported time format %v, only metric ticks are supported", file.TimeFormat)}
	}
	ppq := metric.Resolution()
	tempos := koji.NewTempoMap(ppq)
	for _, track := range file.Tracks {
		var tick uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)
			if tempo, ok := tempoOf(ev.Message); ok {
				tempos.Set(tick, tempo)
			}
		}
	}
	stream := koji.NewStream(ppq, base)
	dropped := map[string]int{}
	for _, track := range file.Tracks {
		var tick, carry uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)
			carry += uint64(ev.Delta)
			t := koji.Ticks(carry)
			if base == koji.AbsoluteMicros {
				t = tempos.Micros(tick)
			}
			e, ok := eventOf(ev.Message, t)
			if !ok {
				if !ev.Message.Is(smf.MetaEndOfTrackMsg) {
					dropped[ev.Message.Type().String()]++
				}
				continue
			}
			if _, timed := e.Timestamp(); timed {
				carry = 0
			}
			stream.Push(e)
		}
	}
	return stream, droppedWarnings(dropped), nil
}

func eventOf(msg smf.Message, t koji.FixedPoint) (koji.Event, bool) {
	var channel, key, velocity, value uint8
	var relative int16
	var absolute uint16
	if tempo, ok := tempoOf(msg); ok {
		return koji.SetTempo{Tempo: tempo, Time: &t}, true
	}
	var num, denom, clocks, demisemiquavers uint8
	if msg.GetMetaTimeSig(&num, &denom, &clocks, &demisemiquavers) {
		return koji.TimeSignature{Numerator: num, Denominator: denom, ClocksPerClick: clocks}, true
	}
	m := midi.Message(msg)
	switch {
	case m.GetNoteOn(&channel, &key, &velocity):
		return koji.NoteOn{Channel: channel, Note: key, Velocity: velocity, Time: t}, true
	case m.GetNoteOff(&channel, &key, &velocity):
		return koji.NoteOff{Channel: channel, Note: key, Velocity: velocity, Time: t}, true
	case m.GetControlChange(&channel, &key, &value):
		return koji.ControlChange{Channel: channel, Control: key, Value: value, Time: t}, true
	case m.GetPitchBend(&channel, &relative, &absolute):
		return koji.PitchWheel{Channel: channel, Pitch: relative, Time: t}, true
	case m.GetAfterTouch(&channel, &value):
		return koji.AfterTouch{Channel: channel, Value: value, Time: t}, true
	case m.GetPolyAfterTouch(&channel, &key, &value):
		return koji.PolyTouch{Channel: channel, Note: key, Value: value, Time: t}, true
	}
	return nil, false
}

// tempoOf reads the microseconds per beat straight from the FF 51 03 tt tt tt
// bytes, as converting through BPM would lose precision.
func tempoOf(msg smf.Message) (uint32, bool) {
	if !msg.Is(smf.MetaTempoMsg) || len(msg) < 6 {
		return 0, false
	}
	return uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5]), true
}

func droppedWarnings(dropped map[string]int) []koji.Warning {
	if len(dropped) == 0 {
		return nil
	}
	names := make([]string, 0, len(dropped))
	for name := range dropped {
		names = append(names, name)
	}
	sort.Strings(names)
	ret := make([]koji.Warning, 0, len(names))
	for _, name := range names {
		ret = append(ret, koji.Warning{Index: -1, Reason: fmt.Sprintf("dropped %d %v message(s)", dropped[name], name)})
	}
	return ret
}
