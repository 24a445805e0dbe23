package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	gethlog "github.com/ethereum/go-ethereum/log"
)

const (
	VMExec    = "vm_exec"   // dispatch loop events (halt, unknown opcode, error opcode)
	VMTrace   = "vm_trace"  // one line per executed instruction
	VMEngine  = "vm_engine" // image loading and run lifecycle
	CacheMod  = "cache"     // result cache
	CLIModule = "cli"
)

var root atomic.Value

func init() {
	root.Store(NewLogger(gethlog.DiscardHandler()))
}

func ParseLevel(lvl string) (slog.Level, error) {
	switch strings.ToUpper(lvl) {
	case "MAX", "MAXVERBOSITY":
		return levelMaxVerbosity, nil
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "CRIT", "CRITICAL":
		return LevelCrit, nil
	default:
		return 0, fmt.Errorf("invalid level: %s", lvl)
	}
}

// InitLogger installs a terminal logger on stderr at the given level.
func InitLogger(logLevel string) error {
	return InitLoggerTo(os.Stderr, logLevel, true)
}

func InitLoggerTo(w io.Writer, logLevel string, useColor bool) error {
	logLvl, err := ParseLevel(logLevel)
	if err != nil {
		return err
	}
	SetDefault(NewLogger(gethlog.NewTerminalHandlerWithLevel(w, logLvl, useColor)))
	return nil
}

// SetDefault sets the default global logger
func SetDefault(l Logger) {
	root.Store(l)
}

// Root returns the root logger
func Root() Logger {
	return root.Load().(Logger)
}

var defaultKnownModules = []string{VMExec, VMTrace, VMEngine, CacheMod, CLIModule}

// --- Module management ---
// moduleEnabled keeps track of whether a module's logging is enabled.
var (
	moduleMu      sync.RWMutex
	moduleEnabled = initModules(defaultKnownModules)
)

func initModules(moduleList []string) map[string]bool {
	moduleMap := make(map[string]bool, len(moduleList))
	for _, module := range moduleList {
		moduleMap[module] = false
	}
	return moduleMap
}

// EnableModule enables logging for the specified module.
func EnableModule(module string) {
	moduleMu.Lock()
	moduleEnabled[module] = true
	moduleMu.Unlock()
}

// EnableModules enables a comma separated list of modules. "all" enables every known module.
func EnableModules(csv string) {
	for _, m := range strings.Split(csv, ",") {
		m = strings.TrimSpace(m)
		switch m {
		case "":
		case "all":
			for _, known := range defaultKnownModules {
				EnableModule(known)
			}
		default:
			EnableModule(m)
		}
	}
}

// DisableModule disables logging for the specified module.
func DisableModule(module string) {
	moduleMu.Lock()
	moduleEnabled[module] = false
	moduleMu.Unlock()
}

// IsModuleEnabled checks if logging is enabled for the given module.
func IsModuleEnabled(module string) bool {
	moduleMu.RLock()
	defer moduleMu.RUnlock()
	enabled, ok := moduleEnabled[module]
	return ok && enabled
}

// Trace logs a message at the trace level for a specific module.
func Trace(module string, msg string, ctx ...interface{}) {
	if !IsModuleEnabled(module) {
		return
	}
	// Prepend the module name into the context.
	newCtx := append([]interface{}{"module", module}, ctx...)
	Root().Write(LevelTrace, module, msg, newCtx...)
}

// Debug logs a message at the debug level for a specific module.
func Debug(module string, msg string, ctx ...interface{}) {
	if !IsModuleEnabled(module) {
		return
	}
	Root().Write(slog.LevelDebug, module, msg, ctx...)
}

// The rest of the logging functions (Info, Warn, Error, Crit, New) dont filter on module
func Info(module string, msg string, ctx ...interface{}) {
	Root().Write(slog.LevelInfo, module, msg, ctx...)
}

func Warn(module string, msg string, ctx ...interface{}) {
	Root().Write(slog.LevelWarn, module, msg, ctx...)
}

func Error(module string, msg string, ctx ...interface{}) {
	Root().Write(slog.LevelError, module, msg, ctx...)
}

func Crit(module string, msg string, ctx ...interface{}) {
	Root().Write(LevelCrit, module, msg, ctx...)
	os.Exit(1)
}

func New(ctx ...interface{}) Logger {
	return Root().With(ctx...)
}
