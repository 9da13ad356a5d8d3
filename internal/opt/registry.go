package opt

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownMethod is returned when no factory is registered for a name
	ErrUnknownMethod = errors.New("unknown optimization method")

	// ErrNoCallback is returned for methods that cannot report per-iteration
	// progress and therefore cannot be stepped
	ErrNoCallback = errors.New("method does not provide per-iteration callbacks")
)

// noCallback lists method names known to lack an iteration hook
var noCallback = map[string]bool{
	"cobyla": true,
	"anneal": true,
}

// MethodConfig is the immutable description of one optimizer instance.
type MethodConfig struct {
	Name   string
	Lower  []float64
	Upper  []float64
	Params map[string]float64
	Seed   int64
}

// Param returns a per-method parameter or def when it is not set
func (c MethodConfig) Param(key string, def float64) float64 {
	if v, ok := c.Params[key]; ok {
		return v
	}
	return def
}

// Dim returns the dimension implied by the bounding box
func (c MethodConfig) Dim() int {
	return len(c.Lower)
}

// Method is a resolved method: exactly one of Optimizer and Restarter is set.
type Method struct {
	Name      string
	Optimizer Optimizer
	Restarter RestartOptimizer
}

// Factory builds a plain optimizer from its configuration
type Factory func(cfg MethodConfig) (Optimizer, error)

// RestartFactory builds a restarting optimizer from its configuration
type RestartFactory func(cfg MethodConfig) (RestartOptimizer, error)

type entry struct {
	plain   Factory
	restart RestartFactory
}

var (
	registryMu sync.RWMutex
	registry   = map[string]entry{}
)

// Register makes a plain optimizer available under name
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = entry{plain: f}
}

// RegisterRestart makes a restarting optimizer available under name
func RegisterRestart(name string, f RestartFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = entry{restart: f}
}

// Names returns all registered method names in sorted order
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check validates a method name without building it
func Check(name string) error {
	key := strings.ToLower(name)
	if noCallback[key] {
		return fmt.Errorf("%s: %w", name, ErrNoCallback)
	}

	registryMu.RLock()
	_, ok := registry[key]
	registryMu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownMethod)
	}
	return nil
}

// Resolve builds the method described by cfg
func Resolve(cfg MethodConfig) (Method, error) {
	if err := Check(cfg.Name); err != nil {
		return Method{}, err
	}
	if len(cfg.Lower) == 0 || len(cfg.Lower) != len(cfg.Upper) {
		return Method{}, fmt.Errorf("%s: invalid bounding box (%d lower, %d upper)", cfg.Name, len(cfg.Lower), len(cfg.Upper))
	}

	registryMu.RLock()
	e := registry[strings.ToLower(cfg.Name)]
	registryMu.RUnlock()

	m := Method{Name: cfg.Name}
	var err error
	if e.restart != nil {
		m.Restarter, err = e.restart(cfg)
	} else {
		m.Optimizer, err = e.plain(cfg)
	}
	if err != nil {
		return Method{}, fmt.Errorf("failed to build method %s: %w", cfg.Name, err)
	}
	return m, nil
}
