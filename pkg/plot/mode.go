package plot

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/afcplot/pkg/errors"
)

// Mode selects the rendering backend for the whole process.
type Mode int32

const (
	ModeUnset Mode = iota
	ModeStatic
	ModeInteractive
)

// String returns the backend name used on the command line and in config files.
func (m Mode) String() string {
	switch m {
	case ModeStatic:
		return "static"
	case ModeInteractive:
		return "interactive"
	}
	return "unset"
}

// ParseMode parses a backend name ("static" or "interactive").
func ParseMode(s string) (Mode, error) {
	if err := errors.ValidateBackend(strings.ToLower(s)); err != nil {
		return ModeUnset, err
	}
	if strings.EqualFold(s, "static") {
		return ModeStatic, nil
	}
	return ModeInteractive, nil
}

var currentMode atomic.Int32

// SetMode selects the process-wide backend. It must be called once at startup
// before any Plotter is created. Changing it afterwards is not supported.
func SetMode(m Mode) {
	currentMode.Store(int32(m))
}

// CurrentMode returns the process-wide backend selection.
func CurrentMode() Mode {
	return Mode(currentMode.Load())
}

// BackendConfig carries the settings a [Factory] needs to build a canvas.
type BackendConfig struct {
	Logger *log.Logger
	Width  int
	Height int
}

// Factory creates a fresh chart canvas for one mode.
type Factory func(cfg BackendConfig) Backend

var (
	registryMu sync.RWMutex
	registry   = map[Mode]Factory{}
)

// Register makes a backend available for a mode. Backend packages call it
// from init.
func Register(m Mode, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if f == nil {
		panic(fmt.Sprintf("plot: nil factory for mode %s", m))
	}
	registry[m] = f
}

func lookupFactory(m Mode) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[m]
	return f, ok
}
