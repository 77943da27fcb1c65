// Package output centralizes rlg's global output/logging flags and exit
// codes, so every command and library entry point renders consistently.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Exit codes.
const (
	ExitSuccess  = 0
	ExitError    = 1
	ExitLinkDown = 2
	ExitTimeout  = 3
	ExitNotFound = 4
)

var (
	flagJSON    bool
	flagQuiet   bool
	flagVerbose bool
)

// SetFlags is called by the root command's PersistentPreRun to propagate
// flag values, and to reconfigure the shared logger's level to match.
func SetFlags(jsonMode, quiet, verbose bool) {
	flagJSON = jsonMode
	flagQuiet = quiet
	flagVerbose = verbose

	switch {
	case verbose:
		Logger.SetLevel(logrus.DebugLevel)
	case quiet:
		Logger.SetLevel(logrus.ErrorLevel)
	default:
		Logger.SetLevel(logrus.InfoLevel)
	}
}

// IsJSON returns true when --json mode is active.
func IsJSON() bool { return flagJSON }

// IsQuiet returns true when --quiet mode is active.
func IsQuiet() bool { return flagQuiet }

// IsVerbose returns true when --verbose mode is active.
func IsVerbose() bool { return flagVerbose }

// Logger is the process-wide structured logger. Packages that need logging
// take a *logrus.Logger (or *logrus.Entry) explicitly rather than reaching
// for a package-level global, so tests can inject their own; Logger is the
// one session.Connect passes to dwarfgraph.Build.
var Logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// PrintJSON marshals v as JSON and writes it to w.
func PrintJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// PrintError writes a JSON error envelope to w.
func PrintError(w io.Writer, code string, message string) error {
	return PrintJSON(w, map[string]string{
		"error":   code,
		"message": message,
	})
}
