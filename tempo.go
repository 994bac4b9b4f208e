package koji

import (
	"golang.org/x/exp/slices"
)

type (
	// TempoMap maps absolute tick positions to time. It holds every tempo
	// change of a file keyed by the tick it happens on, so that events of any
	// track can be timed against tempo changes made in another track.
	TempoMap struct {
		ppq     uint16
		changes []tempoChange
	}

	tempoChange struct {
		tick  uint64
		tempo uint32
	}

	// Clock accumulates time over a single sequence of delta ticks, applying
	// tempo changes as they are met. It is the running tempo of one decode or
	// rebase call and is never shared.
	Clock struct {
		PPQ   uint16
		Tempo uint32
		ticks uint64
		secs  float64
	}
)

func NewTempoMap(ppq uint16) *TempoMap {
	if ppq == 0 {
		ppq = DefaultPPQ
	}
	return &TempoMap{ppq: ppq}
}

// Set records a tempo change at an absolute tick. A later change on the same
// tick replaces the earlier one.
func (m *TempoMap) Set(tick uint64, tempo uint32) {
	i, found := slices.BinarySearchFunc(m.changes, tick, func(c tempoChange, t uint64) int {
		switch {
		case c.tick < t:
			return -1
		case c.tick > t:
			return 1
		}
		return 0
	})
	if found {
		m.changes[i].tempo = tempo
		return
	}
	m.changes = slices.Insert(m.changes, i, tempoChange{tick: tick, tempo: tempo})
}

// Tempo returns the tempo in force at tick.
func (m *TempoMap) Tempo(tick uint64) uint32 {
	tempo := uint32(DefaultTempo)
	for _, c := range m.changes {
		if c.tick > tick {
			break
		}
		tempo = c.tempo
	}
	return tempo
}

// Seconds integrates over the tempo segments up to tick.
func (m *TempoMap) Seconds(tick uint64) float64 {
	var secs float64
	prevTick, tempo := uint64(0), uint32(DefaultTempo)
	for _, c := range m.changes {
		if c.tick >= tick {
			break
		}
		secs += TicksToSeconds(c.tick-prevTick, m.ppq, tempo)
		prevTick, tempo = c.tick, c.tempo
	}
	return secs + TicksToSeconds(tick-prevTick, m.ppq, tempo)
}

// Micros is Seconds in fixed point form.
func (m *TempoMap) Micros(tick uint64) FixedPoint {
	return SecondsToFixedPoint(m.Seconds(tick))
}

func NewClock(ppq uint16) *Clock {
	if ppq == 0 {
		ppq = DefaultPPQ
	}
	return &Clock{PPQ: ppq, Tempo: DefaultTempo}
}

// Advance moves the clock forward by delta ticks at the current tempo and
// returns the new position.
func (c *Clock) Advance(delta uint64) FixedPoint {
	c.ticks += delta
	c.secs += TicksToSeconds(delta, c.PPQ, c.Tempo)
	return SecondsToFixedPoint(c.secs)
}

// ApplyTempo updates the running tempo if e is a SetTempo. The new tempo
// affects the time of everything after e.
func (c *Clock) ApplyTempo(e Event) {
	if t, ok := e.(SetTempo); ok && t.Tempo > 0 {
		c.Tempo = t.Tempo
	}
}

func (c *Clock) Ticks() uint64 { return c.ticks }

func (c *Clock) Seconds() float64 { return c.secs }
