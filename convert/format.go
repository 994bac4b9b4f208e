package convert

import (
	"fmt"
	"path/filepath"
	"strings"
)

type (
	// Format is one of the three representations of an event stream.
	Format int

	// Conversion is a pair of distinct formats.
	Conversion struct {
		From, To Format
	}
)

const (
	MIDI Format = iota
	Cairo
	JSON
)

var formatNames = []string{"midi", "cairo", "json"}

var formatTitles = []string{"MIDI", "Cairo", "JSON"}

var formatContentTypes = []string{"audio/midi", "text/plain; charset=utf-8", "application/json"}

var extensions = map[string]Format{
	".mid":   MIDI,
	".midi":  MIDI,
	".cairo": Cairo,
	".json":  JSON,
}

// Conversions lists every supported conversion.
var Conversions = []Conversion{
	{MIDI, JSON},
	{MIDI, Cairo},
	{Cairo, MIDI},
	{Cairo, JSON},
	{JSON, Cairo},
	{JSON, MIDI},
}

func (f Format) valid() bool {
	return f >= MIDI && f <= JSON
}

func (f Format) String() string {
	if !f.valid() {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// Title is the name of the format in messages.
func (f Format) Title() string {
	if !f.valid() {
		return f.String()
	}
	return formatTitles[f]
}

// Extension is the file extension written for the format, with the dot.
func (f Format) Extension() string {
	switch f {
	case MIDI:
		return ".mid"
	case Cairo:
		return ".cairo"
	}
	return ".json"
}

func (f Format) ContentType() string {
	if !f.valid() {
		return "application/octet-stream"
	}
	return formatContentTypes[f]
}

// Matches reports if path has an extension of the format.
func (f Format) Matches(path string) bool {
	g, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return ok && g == f
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "midi", "mid":
		return MIDI, nil
	case "cairo":
		return Cairo, nil
	case "json":
		return JSON, nil
	}
	return 0, fmt.Errorf("unknown format %q, expected midi, cairo or json", s)
}

// FormatFromPath infers the format from the extension of path.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if f, ok := extensions[strings.ToLower(ext)]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("cannot tell the format of %v from its extension %q", path, ext)
}

// ParseConversion parses names like midi-to-json.
func ParseConversion(s string) (Conversion, error) {
	from, to, ok := strings.Cut(strings.ToLower(s), "-to-")
	if ok {
		f, errFrom := ParseFormat(from)
		t, errTo := ParseFormat(to)
		if errFrom == nil && errTo == nil && f != t {
			return Conversion{f, t}, nil
		}
	}
	return Conversion{}, fmt.Errorf("unknown conversion %q, expected one of %v", s, Conversions)
}

// Infer builds a conversion to the format named dest from the extension of
// the input file, as the -format flag does.
func Infer(inputPath, dest string) (Conversion, error) {
	to, err := ParseFormat(dest)
	if err != nil {
		return Conversion{}, err
	}
	from, err := FormatFromPath(inputPath)
	if err != nil {
		return Conversion{}, err
	}
	if from == to {
		return Conversion{}, fmt.Errorf("%v is already in %v format", inputPath, to.Title())
	}
	return Conversion{from, to}, nil
}

func (c Conversion) String() string {
	return c.From.String() + "-to-" + c.To.String()
}

func (c Conversion) Valid() bool {
	return c.From.valid() && c.To.valid() && c.From != c.To
}

func (c Conversion) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Conversion) UnmarshalText(text []byte) error {
	v, err := ParseConversion(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Describe is the confirmation printed after converting in to out.
func (c Conversion) Describe(in, out string) string {
	var what string
	switch {
	case c.From == MIDI:
		what = fmt.Sprintf("to %v format", c.To.Title())
	case c.To == MIDI:
		what = fmt.Sprintf("from %v format back to MIDI", c.From.Title())
	default:
		what = fmt.Sprintf("from %v to %v format", c.From.Title(), c.To.Title())
	}
	return fmt.Sprintf("Converted %v %v in %v ✅", in, what, out)
}
