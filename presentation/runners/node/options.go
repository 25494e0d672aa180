package node

import (
	"flag"
	"io"
)

// Options are the command line switches of the node mode.
type Options struct {
	ConfigPath string
	Verbose    bool
	Dashboard  bool
}

// ParseOptions parses the arguments following the mode argument.
func ParseOptions(arguments []string, output io.Writer) (Options, error) {
	var options Options
	fs := flag.NewFlagSet("node", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&options.ConfigPath, "config", "", "path to the node configuration file")
	fs.BoolVar(&options.Verbose, "v", false, "log handshake and packet level events")
	fs.BoolVar(&options.Dashboard, "tui", false, "show the live status dashboard")
	if err := fs.Parse(arguments); err != nil {
		return Options{}, err
	}
	return options, nil
}
