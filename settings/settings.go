// Package settings holds the daemon configuration: which devices to grab,
// where the bindings live, how output is injected and what to run after a
// reload. The bindings themselves are a separate text file, see package
// config.
package settings

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml"

	"chordmap/scancodes"
)

const DefaultPath = "/etc/chordmap/chordmap.toml"

// Output drivers.
const (
	DriverUinput = "uinput"
	DriverKeybd  = "keybd"
)

type Devices struct {
	Search  string `toml:"search" default:"/dev/input/event*"`
	Bypass  string `toml:"bypass" default:"(?i)Video|Camera|Mouse|chordmap"`
	Respawn int    `toml:"respawn" default:"30"` // seconds between rescans while nothing is grabbed
	Test    string `toml:"test"`                 // single device for test mode, empty = all matching

	BypassRE *regexp.Regexp `toml:"-"`
}

type Bindings struct {
	Path     string `toml:"path" default:"/etc/chordmap/chordmap.txt"`
	Watch    bool   `toml:"watch" default:"true"`
	Debounce int    `toml:"debounce" default:"200"` // ms
	Requeue  bool   `toml:"requeue" default:"true"` // a change during a load triggers one more
}

type Keys struct {
	Mode   string `toml:"mode" default:"ScrollLock"`
	Params string `toml:"params" default:"H"`
	State  string `toml:"state" default:"J"`

	ModeCode   scancodes.Code `toml:"-"`
	ParamsCode scancodes.Code `toml:"-"`
	StateCode  scancodes.Code `toml:"-"`
}

type Output struct {
	Driver string `toml:"driver" default:"uinput"`
	Name   string `toml:"name" default:"chordmap virtual keyboard"`
}

type Reload struct {
	Hook    string `toml:"hook"`
	Timeout int    `toml:"timeout" default:"5000"` // ms
}

type Status struct {
	Clipboard bool `toml:"clipboard"`
}

type Settings struct {
	Devices  Devices
	Bindings Bindings
	Keys     Keys
	Output   Output
	Reload   Reload
	Status   Status
}

// Default returns the settings used when no file is present.
func Default() *Settings {
	s, err := Parse(nil)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Settings) Debounce() time.Duration {
	return time.Duration(s.Bindings.Debounce) * time.Millisecond
}

func (s *Settings) HookTimeout() time.Duration {
	return time.Duration(s.Reload.Timeout) * time.Millisecond
}

func (s *Settings) RespawnInterval() time.Duration {
	return time.Duration(s.Devices.Respawn) * time.Second
}

// Load reads and parses the file at path. A missing file is reported with
// an error wrapping os.ErrNotExist.
func Load(path string) (*Settings, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	defer fh.Close()

	b, err := io.ReadAll(fh)
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	s, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes one TOML document section by section. Keys missing from a
// section, and whole missing sections, take the `default` tags.
func Parse(b []byte) (*Settings, error) {
	var (
		conf map[string]interface{}
		s    Settings
	)
	if err := toml.Unmarshal(b, &conf); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	sections := map[string]interface{}{
		"devices":  &s.Devices,
		"bindings": &s.Bindings,
		"keys":     &s.Keys,
		"output":   &s.Output,
		"reload":   &s.Reload,
		"status":   &s.Status,
	}
	given := make(map[string][]byte, len(conf))
	for key, value := range conf {
		name := strings.ToLower(key)
		if _, ok := sections[name]; !ok {
			return nil, fmt.Errorf("settings: unknown section [%s]", key)
		}
		if _, ok := value.(map[string]interface{}); !ok {
			return nil, fmt.Errorf("settings: [%s] must be a table", key)
		}
		section, err := toml.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("settings: [%s]: %w", key, err)
		}
		given[name] = section
	}
	for name, dst := range sections {
		if err := toml.Unmarshal(given[name], dst); err != nil {
			return nil, fmt.Errorf("settings: [%s]: %w", name, err)
		}
	}

	s.fallback()
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// fallback repairs values set empty or out of range.
func (s *Settings) fallback() {
	def := func(v *string, d string) {
		if strings.TrimSpace(*v) == "" {
			*v = d
		}
	}
	def(&s.Devices.Search, "/dev/input/event*")
	def(&s.Devices.Bypass, "(?i)Video|Camera|Mouse|chordmap")
	def(&s.Bindings.Path, "/etc/chordmap/chordmap.txt")
	def(&s.Keys.Mode, "ScrollLock")
	def(&s.Keys.Params, "H")
	def(&s.Keys.State, "J")
	def(&s.Output.Driver, DriverUinput)
	def(&s.Output.Name, "chordmap virtual keyboard")

	if s.Devices.Respawn <= 0 {
		s.Devices.Respawn = 30
	}
	if s.Bindings.Debounce < 0 {
		s.Bindings.Debounce = 200
	}
	if s.Reload.Timeout <= 0 {
		s.Reload.Timeout = 5000
	}
}

func (s *Settings) validate() error {
	var err error
	if s.Devices.BypassRE, err = regexp.Compile(s.Devices.Bypass); err != nil {
		return fmt.Errorf("settings: [devices] invalid regexp for \"bypass\": %w", err)
	}

	keys := []struct {
		what string
		name string
		dst  *scancodes.Code
	}{
		{"mode", s.Keys.Mode, &s.Keys.ModeCode},
		{"params", s.Keys.Params, &s.Keys.ParamsCode},
		{"state", s.Keys.State, &s.Keys.StateCode},
	}
	for _, k := range keys {
		c, ok := scancodes.Lookup(k.name)
		if !ok || c == 0 {
			return fmt.Errorf("settings: [keys] unknown key %q for %q", k.name, k.what)
		}
		*k.dst = c
	}

	switch strings.ToLower(s.Output.Driver) {
	case DriverUinput, DriverKeybd:
		s.Output.Driver = strings.ToLower(s.Output.Driver)
	default:
		return fmt.Errorf("settings: [output] unknown driver %q", s.Output.Driver)
	}
	return nil
}

// IsNotExist reports whether err came from a missing settings file.
func IsNotExist(err error) bool { return errors.Is(err, os.ErrNotExist) }
