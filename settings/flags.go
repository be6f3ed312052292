package settings

import (
	"os"

	flag "github.com/spf13/pflag"
)

// Flags are the command line switches. Each one can also be preset from
// the environment: CONFIG, BINDINGS, DEBUG, VERBOSE, TEST.
type Flags struct {
	Config   string
	Bindings string
	Debug    bool
	Verbose  bool
	Test     bool
}

// ParseFlags reads the environment first, then args (without the program
// name). pflag.ErrHelp is returned for -h.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{Config: DefaultPath}

	if env, ok := os.LookupEnv("CONFIG"); ok {
		f.Config = env
	}
	if env, ok := os.LookupEnv("BINDINGS"); ok {
		f.Bindings = env
	}
	_, f.Debug = os.LookupEnv("DEBUG")
	_, f.Verbose = os.LookupEnv("VERBOSE")
	_, f.Test = os.LookupEnv("TEST")

	F := flag.NewFlagSet("chordmap", flag.ContinueOnError)
	F.StringVarP(&f.Config, "conf", "c", f.Config, "Non-default config location")
	F.StringVarP(&f.Bindings, "bindings", "b", f.Bindings, "Bindings file, overrides [bindings] path")
	F.BoolVarP(&f.Debug, "debug", "d", f.Debug, "Debug log level")
	F.BoolVarP(&f.Verbose, "verbose", "v", f.Verbose, "Increase log level to INFO")
	F.BoolVarP(&f.Test, "test", "t", f.Test, "Only output all key events to STDERR. No actions.")
	if err := F.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// Apply copies command line overrides into s.
func (f *Flags) Apply(s *Settings) {
	if f.Bindings != "" {
		s.Bindings.Path = f.Bindings
	}
}
