package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cienicera/Koji"
	"github.com/cienicera/Koji/cairo"
)

type (
	Config struct {
		PPQ         uint16          `yaml:"ppq"`
		BPM         float64         `yaml:"bpm"`
		Order       Orders          `yaml:"order"`
		ScanOrder   cairo.ScanOrder `yaml:"scan_order"`
		Indent      int             `yaml:"indent"`
		NoOverwrite bool            `yaml:"no_overwrite"`
		Jobs        int             `yaml:"jobs"`
	}

	// Orders is the event order used when times are written as tick deltas,
	// per source format.
	Orders struct {
		MIDI  koji.Order `yaml:"midi"`
		Cairo koji.Order `yaml:"cairo"`
		JSON  koji.Order `yaml:"json"`
	}
)

//go:embed default.yml
var defaultYml []byte

// Default returns the built-in settings.
func Default() Config {
	var c Config
	if err := decode(defaultYml, &c); err != nil {
		panic(fmt.Errorf("failed to unmarshal default config: %w", err))
	}
	return c
}

// Path is where Load looks for the user's settings when no path is given.
func Path() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "koji", "config.yml"), nil
}

// Load reads the settings in the file at path over the defaults, so the file
// needs to list only what it changes. With an empty path the file at Path() is
// used if it exists.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		var err error
		if path, err = Path(); err != nil {
			return c, nil
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("could not read config: %w", err)
	}
	if err := decode(data, &c); err != nil {
		return c, fmt.Errorf("could not parse config %v: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config %v: %w", path, err)
	}
	return c, nil
}

func decode(data []byte, c *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Marshal returns the settings as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c Config) Validate() error {
	switch {
	case c.PPQ == 0 || c.PPQ > 0x7FFF:
		return fmt.Errorf("ppq %d out of range 1..32767", c.PPQ)
	case c.BPM <= 0:
		return fmt.Errorf("bpm must be positive, got %v", c.BPM)
	case c.Indent < 1:
		return fmt.Errorf("indent must be at least 1, got %d", c.Indent)
	case c.Jobs < 0:
		return fmt.Errorf("jobs must not be negative, got %d", c.Jobs)
	}
	return nil
}

// Timing is the tempo and resolution assumed for microsecond timestamps.
func (c Config) Timing() koji.Timing {
	return koji.Timing{BPM: c.BPM, PPQ: c.PPQ}
}

func (c Config) IndentString() string {
	return strings.Repeat(" ", c.Indent)
}

// Workers is the number of files to convert at once.
func (c Config) Workers() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	return runtime.NumCPU()
}
