// Package convert composes the MIDI, Cairo and JSON adapters into conversions
// between files.
//
// Each conversion picks one time interpretation per adapter: MIDI and JSON
// store tick deltas, Cairo stores absolute microseconds (or tick deltas, for
// files written with bare integer times). Streams are rebased only when the
// two formats disagree, using the tempo, resolution and event order of the
// Config.
package convert

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cienicera/Koji"
	"github.com/cienicera/Koji/cairo"
	"github.com/cienicera/Koji/config"
	"github.com/cienicera/Koji/eventjson"
	"github.com/cienicera/Koji/midifile"
)

type (
	// Converter runs conversions with one set of settings. It holds no state
	// between conversions and is safe for concurrent use.
	Converter struct {
		Config config.Config
		// Serializer renders Cairo output; nil means the built-in templates.
		Serializer *cairo.Serializer
		// Logger receives diagnostics; nil discards them.
		Logger *log.Logger
	}

	Result struct {
		Output   []byte
		Events   int
		Warnings []koji.Warning
		// Duration is the play length of the decoded stream.
		Duration time.Duration
		// Unchanged is set by ConvertFile when the output file already had
		// the converted contents and was left alone.
		Unchanged bool
	}
)

// ErrWouldOverwrite is returned by ConvertFile when Config.NoOverwrite is set
// and the output file exists with different contents.
var ErrWouldOverwrite = errors.New("file would be overwritten")

func New(c config.Config) *Converter {
	return &Converter{Config: c}
}

// Convert decodes src in the source format of conv and encodes it in the
// target format.
func (c *Converter) Convert(src []byte, conv Conversion) (Result, error) {
	if !conv.Valid() {
		return Result{}, fmt.Errorf("invalid conversion %v", conv)
	}
	stream, warnings, err := c.decode(src, conv)
	if err != nil {
		return Result{}, err
	}
	c.logf("%v: decoded %d events (%v, %d ticks per beat)", conv, stream.Len(), stream.Base, stream.PPQ)
	var buf bytes.Buffer
	encodeWarnings, err := c.encode(&buf, stream, conv)
	if err != nil {
		return Result{}, err
	}
	warnings = append(warnings, encodeWarnings...)
	for _, w := range warnings {
		c.logf("%v: warning: %v", conv, w)
	}
	return Result{
		Output:   buf.Bytes(),
		Events:   stream.Len(),
		Warnings: warnings,
		Duration: stream.Duration(),
	}, nil
}

func (c *Converter) decode(src []byte, conv Conversion) (*koji.Stream, []koji.Warning, error) {
	r := bytes.NewReader(src)
	switch conv.From {
	case MIDI:
		base := koji.DeltaTicks
		if conv.To == Cairo {
			base = koji.AbsoluteMicros
		}
		return midifile.Decode(r, base)
	case Cairo:
		return cairo.Parse(r, cairo.ParseOptions{Order: c.Config.ScanOrder})
	case JSON:
		s, err := eventjson.Decode(r)
		return s, nil, err
	}
	return nil, nil, fmt.Errorf("unknown source format %v", conv.From)
}

func (c *Converter) encode(buf *bytes.Buffer, s *koji.Stream, conv Conversion) ([]koji.Warning, error) {
	order := c.order(conv.From)
	switch conv.To {
	case MIDI:
		return midifile.Encode(buf, s, midifile.Options{Timing: c.Config.Timing(), Order: order})
	case Cairo:
		ser := c.Serializer
		if ser == nil {
			return nil, cairo.Serialize(buf, s)
		}
		return nil, ser.Serialize(buf, s)
	case JSON:
		return eventjson.Encode(buf, s, eventjson.Options{Timing: c.Config.Timing(), Order: order, Indent: c.Config.IndentString()})
	}
	return nil, fmt.Errorf("unknown target format %v", conv.To)
}

func (c *Converter) order(from Format) koji.Order {
	switch from {
	case MIDI:
		return c.Config.Order.MIDI
	case Cairo:
		return c.Config.Order.Cairo
	}
	return c.Config.Order.JSON
}

// ConvertFile converts the file in and writes the result to out. The output is
// written to a temporary file next to out and renamed over it, so out is never
// left half written. An output file that already has the converted contents
// is not touched.
func (c *Converter) ConvertFile(in, out string, conv Conversion) (Result, error) {
	src, err := os.ReadFile(in)
	if err != nil {
		return Result{}, &koji.SourceReadError{Path: in, Err: err}
	}
	res, err := c.Convert(src, conv)
	if err != nil {
		return res, withPath(err, in)
	}
	original, err := os.ReadFile(out)
	if err == nil {
		if bytes.Equal(original, res.Output) {
			c.logf("%v is up to date", out)
			res.Unchanged = true
			return res, nil
		}
		if c.Config.NoOverwrite {
			return res, fmt.Errorf("%v: %w", out, ErrWouldOverwrite)
		}
	}
	if err := writeAtomic(out, res.Output); err != nil {
		return res, err
	}
	c.logf("wrote %d bytes to %v", len(res.Output), out)
	return res, nil
}

// withPath names the input file in err.
func withPath(err error, path string) error {
	var decodeErr *koji.DecodeError
	if errors.As(err, &decodeErr) {
		if decodeErr.Path == "" {
			decodeErr.Path = path
		}
		return err
	}
	return fmt.Errorf("%v: %w", path, err)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("could not create output directory %v: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("could not create temporary file for %v: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write file %v: %w", path, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write file %v: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not write file %v: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("could not write file %v: %w", path, err)
	}
	return nil
}

func (c *Converter) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}
