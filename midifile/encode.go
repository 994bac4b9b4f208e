package midifile

import (
	"fmt"
	"io"

	"github.com/cienicera/Koji"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Options controls how stream times become tick deltas, see koji.Stream.Deltas.
// Timing is only used for streams with microsecond timestamps.
type Options struct {
	Timing koji.Timing
	Order  koji.Order
}

// maxDelta is the largest delta a variable length quantity can hold.
const maxDelta = 0x0FFFFFFF

// Encode writes the stream as a MIDI file with a single track. Tempo and time
// signature events are written with a zero delta at their position.
//
// Microsecond timestamps are turned into ticks at opts.Timing alone. Tempo
// events are written but do not take part in the conversion, so after a tempo
// change other than to opts.Timing the file plays at a different speed than
// the source.
func Encode(w io.Writer, s *koji.Stream, opts Options) ([]koji.Warning, error) {
	deltas, warnings := s.Deltas(opts.Timing, opts.Order)
	var track smf.Track
	for i, e := range deltas.All {
		t, _ := e.Timestamp()
		if t.Mag > maxDelta {
			return warnings, fmt.Errorf("event %d: delta of %d ticks does not fit in a MIDI file", i, t.Mag)
		}
		msg, err := messageOf(e)
		if err != nil {
			return warnings, fmt.Errorf("event %d: %w", i, err)
		}
		track.Add(uint32(t.Mag), msg)
	}
	track.Close(0)
	file := smf.New()
	file.TimeFormat = smf.MetricTicks(deltas.PPQ)
	if err := file.Add(track); err != nil {
		return warnings, fmt.Errorf("could not add track: %w", err)
	}
	if _, err := file.WriteTo(w); err != nil {
		return warnings, fmt.Errorf("could not write MIDI file: %w", err)
	}
	return warnings, nil
}

func messageOf(e koji.Event) ([]byte, error) {
	switch e := e.(type) {
	case koji.NoteOn:
		if err := check(e.Channel, e.Note, e.Velocity); err != nil {
			return nil, err
		}
		return midi.NoteOn(e.Channel, e.Note, e.Velocity), nil
	case koji.NoteOff:
		if err := check(e.Channel, e.Note, e.Velocity); err != nil {
			return nil, err
		}
		return midi.NoteOffVelocity(e.Channel, e.Note, e.Velocity), nil
	case koji.ControlChange:
		if err := check(e.Channel, e.Control, e.Value); err != nil {
			return nil, err
		}
		return midi.ControlChange(e.Channel, e.Control, e.Value), nil
	case koji.PitchWheel:
		if e.Pitch < -8192 || e.Pitch > 8191 {
			return nil, fmt.Errorf("pitch %d out of the 14-bit range", e.Pitch)
		}
		if err := check(e.Channel); err != nil {
			return nil, err
		}
		return midi.Pitchbend(e.Channel, e.Pitch), nil
	case koji.AfterTouch:
		if err := check(e.Channel, e.Value); err != nil {
			return nil, err
		}
		return midi.AfterTouch(e.Channel, e.Value), nil
	case koji.PolyTouch:
		if err := check(e.Channel, e.Note, e.Value); err != nil {
			return nil, err
		}
		return midi.PolyAfterTouch(e.Channel, e.Note, e.Value), nil
	case koji.SetTempo:
		if e.Tempo == 0 || e.Tempo > 0xFFFFFF {
			return nil, fmt.Errorf("tempo %d out of range", e.Tempo)
		}
		return smf.Message([]byte{0xFF, 0x51, 0x03, byte(e.Tempo >> 16), byte(e.Tempo >> 8), byte(e.Tempo)}), nil
	case koji.TimeSignature:
		if e.Denominator == 0 || e.Denominator&(e.Denominator-1) != 0 {
			return nil, fmt.Errorf("time signature denominator %d is not a power of two", e.Denominator)
		}
		return smf.MetaTimeSig(e.Numerator, e.Denominator, e.ClocksPerClick, 8), nil
	}
	return nil, fmt.Errorf("unsupported event %T", e)
}

// check validates a channel followed by 7-bit data bytes.
func check(channel uint8, data ...uint8) error {
	if channel > 15 {
		return fmt.Errorf("channel %d out of range 0..15", channel)
	}
	for _, d := range data {
		if d > 127 {
			return fmt.Errorf("data byte %d out of range 0..127", d)
		}
	}
	return nil
}
