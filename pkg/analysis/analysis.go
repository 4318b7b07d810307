package analysis

import (
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// Analyzer draws the behavioral figures onto a plot.Plotter.
type Analyzer struct {
	// ExpType selects the stimulus axis wording and the difficulty scale.
	ExpType ExpType
	// Names maps recorded animal names to display names.
	Names map[string]string
	// Logger receives session statistics and skipped-data notices.
	Logger *log.Logger
}

// New returns an Analyzer for RDK sessions.
func New(logger *log.Logger) *Analyzer {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Analyzer{ExpType: RDK, Logger: logger}
}

// DisplayName returns the remapped name of an animal.
func (a *Analyzer) DisplayName(name string) string {
	if n, ok := a.Names[name]; ok {
		return n
	}
	return name
}

// commaInt formats n with thousands separators.
func commaInt(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
