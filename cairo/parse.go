package cairo

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cienicera/Koji"
)

type (
	// ScanOrder decides the order of the parsed events.
	ScanOrder int

	ParseOptions struct {
		Order ScanOrder
	}

	// match is one recognized Message literal before its fields are converted.
	match struct {
		offset int
		kind   koji.Kind
		fields []string
	}
)

const (
	// DocumentOrder returns events in the order they appear in the text.
	DocumentOrder ScanOrder = iota
	// VariantOrder returns all events of one kind before the next kind, in
	// the order of koji.Kinds, which is what scanning the text once per kind
	// yields.
	VariantOrder
)

const (
	fixedLit = `(?:FP32x32\s*)?\{[^{}]*\}`
	intLit   = `-?[0-9]+`
	timeLit  = `(?:Option::Some\(\s*(?:` + fixedLit + `|` + intLit + `)\s*\)|Option::None|None|` + fixedLit + `|` + intLit + `)`
)

var fieldNames = map[koji.Kind][]string{
	koji.KindNoteOn:        {"channel", "note", "velocity", "time"},
	koji.KindNoteOff:       {"channel", "note", "velocity", "time"},
	koji.KindSetTempo:      {"tempo", "time"},
	koji.KindTimeSignature: {"numerator", "denominator", "clocks_per_click", "time"},
	koji.KindControlChange: {"channel", "control", "value", "time"},
	koji.KindPitchWheel:    {"channel", "pitch", "time"},
	koji.KindAfterTouch:    {"channel", "value", "time"},
	koji.KindPolyTouch:     {"channel", "note", "value", "time"},
}

var (
	patterns    = compilePatterns()
	fragmentReg = regexp.MustCompile(`Message::\w+\s*\(`)
	intReg      = regexp.MustCompile(intLit)
)

// compilePatterns builds one regexp per kind, e.g. for NOTE_ON
// Message::NOTE_ON(NoteOn { channel: 1, note: 2, velocity: 3, time: ... })
// with free whitespace between all tokens.
func compilePatterns() map[koji.Kind]*regexp.Regexp {
	ret := map[koji.Kind]*regexp.Regexp{}
	for _, kind := range koji.Kinds {
		var b strings.Builder
		fmt.Fprintf(&b, `Message::%s\s*\(\s*%s\s*\{`, regexp.QuoteMeta(string(kind)), regexp.QuoteMeta(kind.TypeName()))
		for i, name := range fieldNames[kind] {
			if i > 0 {
				b.WriteString(`\s*,`)
			}
			value := intLit
			if name == "time" || name == "tempo" {
				value = timeLit
			}
			fmt.Fprintf(&b, `\s*%s\s*:\s*(%s)`, name, value)
		}
		b.WriteString(`\s*,?\s*\}\s*\)`)
		ret[kind] = regexp.MustCompile(b.String())
	}
	return ret
}

// Parse scans text for Message literals of every known kind, independent of
// line structure. Fragments that start like a Message literal but match no
// pattern are skipped and reported as warnings, as are unreadable fixed point
// literals, which count as 0.
//
// Times may be written as FP32x32 literals, giving a stream with absolute
// microsecond times, or as bare integers, giving a stream with tick deltas.
// The first time in the text decides; times in the other convention are
// taken by their numeric value and reported.
func Parse(r io.Reader, opts ParseOptions) (*koji.Stream, []koji.Warning, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	text := string(data)
	lines := newLineIndex(text)
	var matches []match
	starts := map[int]bool{}
	for _, kind := range koji.Kinds {
		for _, loc := range patterns[kind].FindAllStringSubmatchIndex(text, -1) {
			m := match{offset: loc[0], kind: kind}
			for g := 2; g < len(loc); g += 2 {
				m.fields = append(m.fields, text[loc[g]:loc[g+1]])
			}
			matches = append(matches, m)
			starts[loc[0]] = true
		}
	}
	var warnings []koji.Warning
	for _, loc := range fragmentReg.FindAllStringIndex(text, -1) {
		if !starts[loc[0]] {
			warnings = append(warnings, koji.Warning{
				Line:     lines.line(loc[0]),
				Index:    -1,
				Fragment: fragmentAt(text, loc[0]),
				Reason:   "skipped unrecognized message",
			})
		}
	}
	if opts.Order == DocumentOrder {
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].offset < matches[j].offset })
	}
	p := parser{lines: lines, base: timeBase(matches)}
	stream := koji.NewStream(koji.DefaultPPQ, p.base)
	for _, m := range matches {
		e, err := p.event(m)
		if err != nil {
			return nil, nil, err
		}
		stream.Push(e)
	}
	warnings = append(warnings, p.warnings...)
	sort.SliceStable(warnings, func(i, j int) bool { return warnings[i].Line < warnings[j].Line })
	return stream, warnings, nil
}

// timeBase looks at the time field that comes first in the text.
func timeBase(matches []match) koji.TimeBase {
	first, base := -1, koji.AbsoluteMicros
	for _, m := range matches {
		if m.kind == koji.KindTimeSignature || (first >= 0 && m.offset > first) {
			continue
		}
		switch classify(m.fields[len(m.fields)-1]) {
		case relativeTime:
			first, base = m.offset, koji.DeltaTicks
		case absoluteTime:
			first, base = m.offset, koji.AbsoluteMicros
		}
	}
	return base
}

type timeClass int

const (
	noTime timeClass = iota
	absoluteTime
	relativeTime
)

func classify(s string) timeClass {
	switch {
	case s == "None" || s == "Option::None":
		return noTime
	case strings.Contains(s, "{"):
		return absoluteTime
	}
	return relativeTime
}

type parser struct {
	lines    lineIndex
	base     koji.TimeBase
	warnings []koji.Warning
}

func (p *parser) event(m match) (koji.Event, error) {
	line := p.lines.line(m.offset)
	f := m.fields
	var err error
	u8 := func(i int) uint8 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = strconv.ParseUint(f[i], 10, 8)
		if err != nil {
			err = p.errorf(line, "%v %v: %v", m.kind, fieldNames[m.kind][i], err)
		}
		return uint8(v)
	}
	var e koji.Event
	switch m.kind {
	case koji.KindNoteOn:
		e = koji.NoteOn{Channel: u8(0), Note: u8(1), Velocity: u8(2), Time: p.time(line, f[3])}
	case koji.KindNoteOff:
		e = koji.NoteOff{Channel: u8(0), Note: u8(1), Velocity: u8(2), Time: p.time(line, f[3])}
	case koji.KindSetTempo:
		var tempo uint32
		tempo, err = p.tempo(line, f[0])
		st := koji.SetTempo{Tempo: tempo}
		if classify(f[1]) != noTime {
			t := p.time(line, f[1])
			st.Time = &t
		}
		e = st
	case koji.KindTimeSignature:
		e = koji.TimeSignature{Numerator: u8(0), Denominator: u8(1), ClocksPerClick: u8(2)}
	case koji.KindControlChange:
		e = koji.ControlChange{Channel: u8(0), Control: u8(1), Value: u8(2), Time: p.time(line, f[3])}
	case koji.KindPitchWheel:
		channel := u8(0)
		var pitch int64
		if err == nil {
			if pitch, err = strconv.ParseInt(f[1], 10, 16); err != nil {
				err = p.errorf(line, "PITCH_WHEEL pitch: %v", err)
			}
		}
		e = koji.PitchWheel{Channel: channel, Pitch: int16(pitch), Time: p.time(line, f[2])}
	case koji.KindAfterTouch:
		e = koji.AfterTouch{Channel: u8(0), Value: u8(1), Time: p.time(line, f[2])}
	case koji.KindPolyTouch:
		e = koji.PolyTouch{Channel: u8(0), Note: u8(1), Value: u8(2), Time: p.time(line, f[3])}
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// time reads a time field in either convention. Values in the convention
// the stream does not use are kept as is and reported.
func (p *parser) time(line int, s string) koji.FixedPoint {
	switch classify(s) {
	case noTime:
		p.warn(line, s, "missing time taken as 0")
		return koji.FixedPoint{}
	case absoluteTime:
		t, ok := koji.ParseFixedPoint(s)
		if !ok {
			p.warn(line, s, "unreadable fixed point literal taken as 0")
		}
		if p.base != koji.AbsoluteMicros {
			p.warn(line, s, "fixed point time in a file with tick times")
		}
		return t
	}
	v, err := strconv.ParseInt(intReg.FindString(s), 10, 64)
	if err != nil {
		p.warn(line, s, "unreadable time taken as 0")
		return koji.FixedPoint{}
	}
	if p.base != koji.DeltaTicks {
		p.warn(line, s, "tick time in a file with fixed point times")
		return koji.FromValue(v)
	}
	if v < 0 {
		p.warn(line, s, "negative tick time taken as 0")
		return koji.FixedPoint{}
	}
	return koji.Ticks(uint64(v))
}

// tempo accepts a fixed point literal or, as older files have it, a bare
// number of microseconds per beat.
func (p *parser) tempo(line int, s string) (uint32, error) {
	var v int64
	switch classify(s) {
	case noTime:
		return 0, p.errorf(line, "SET_TEMPO has no tempo")
	case absoluteTime:
		t, ok := koji.ParseFixedPoint(s)
		if !ok {
			p.warn(line, s, "unreadable fixed point literal taken as 0")
		}
		v = t.Value()
	default:
		var err error
		if v, err = strconv.ParseInt(intReg.FindString(s), 10, 64); err != nil {
			return 0, p.errorf(line, "SET_TEMPO tempo: %v", err)
		}
	}
	if v < 0 || v > 0xFFFFFF {
		return 0, p.errorf(line, "SET_TEMPO tempo %d out of range", v)
	}
	return uint32(v), nil
}

func (p *parser) warn(line int, fragment, reason string) {
	p.warnings = append(p.warnings, koji.Warning{Line: line, Index: -1, Fragment: fragment, Reason: reason})
}

func (p *parser) errorf(line int, format string, args ...any) error {
	return &koji.DecodeError{Format: "cairo", Line: line, Index: -1, Err: fmt.Errorf(format, args...)}
}

// lineIndex holds the offsets where lines start.
type lineIndex []int

func newLineIndex(text string) lineIndex {
	ret := lineIndex{0}
	for i, c := range text {
		if c == '\n' {
			ret = append(ret, i+1)
		}
	}
	return ret
}

func (l lineIndex) line(offset int) int {
	return sort.Search(len(l), func(i int) bool { return l[i] > offset })
}

func fragmentAt(text string, offset int) string {
	rest := text[offset:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimRight(rest, " \t\r,")
	if len(rest) > 80 {
		rest = rest[:77] + "..."
	}
	return rest
}

func (o ScanOrder) String() string {
	if o == VariantOrder {
		return "variant"
	}
	return "document"
}

func ParseScanOrder(s string) (ScanOrder, error) {
	switch s {
	case "document", "":
		return DocumentOrder, nil
	case "variant":
		return VariantOrder, nil
	}
	return DocumentOrder, fmt.Errorf("unknown scan order %q, expected document or variant", s)
}

func (o ScanOrder) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *ScanOrder) UnmarshalText(text []byte) error {
	v, err := ParseScanOrder(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
