package credit

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Assigner turns current population values into fresh credit.
type Assigner interface {
	Assign(values []float64) []float64
}

// Accruer blends fresh credit into a member's history. history is the
// number of credits already accrued and is at least 1.
type Accruer interface {
	Accrue(old float64, history int, fresh float64) float64
}

// AssignFunc adapts a function to Assigner
type AssignFunc func(values []float64) []float64

func (f AssignFunc) Assign(values []float64) []float64 { return f(values) }

// AccrueFunc adapts a function to Accruer
type AccrueFunc func(old float64, history int, fresh float64) float64

func (f AccrueFunc) Accrue(old float64, history int, fresh float64) float64 {
	return f(old, history, fresh)
}

// Raw copies values as credit
func Raw(values []float64) []float64 {
	return append([]float64(nil), values...)
}

// Ranked assigns rank/(K-1) by ascending value, ties resolved in favour of
// the lower index. A single member gets credit 0.
func Ranked(values []float64) []float64 {
	k := len(values)
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	credit := make([]float64, k)
	if k == 1 {
		return credit
	}
	for rank, i := range idx {
		credit[i] = float64(rank) / float64(k-1)
	}
	return credit
}

// Latest keeps no history
func Latest(_ float64, _ int, fresh float64) float64 { return fresh }

// Average is the running mean over the history
func Average(old float64, history int, fresh float64) float64 {
	return old + (fresh-old)/float64(history)
}

// Adapt returns an exponentially discounting average with constant alpha
func Adapt(alpha float64) AccrueFunc {
	return func(old float64, _ int, fresh float64) float64 {
		return old + (fresh-old)*alpha
	}
}

// AssignFactory builds an assignment policy; arg is the part of the name
// following the registered prefix.
type AssignFactory func(arg string) (Assigner, error)

// AccrualFactory builds an accrual policy; arg is the part of the name
// following the registered prefix.
type AccrualFactory func(arg string) (Accruer, error)

var (
	registryMu sync.RWMutex
	assigners  = map[string]AssignFactory{
		"raw":    noArg[Assigner]("raw", AssignFunc(Raw)),
		"ranked": noArg[Assigner]("ranked", AssignFunc(Ranked)),
	}
	accruals = map[string]AccrualFactory{
		"latest":  noArg[Accruer]("latest", AccrueFunc(Latest)),
		"average": noArg[Accruer]("average", AccrueFunc(Average)),
		"adapt":   newAdapt,
	}
)

func noArg[T any](name string, policy T) func(string) (T, error) {
	return func(arg string) (T, error) {
		if arg != "" {
			var zero T
			return zero, fmt.Errorf("%s takes no parameter, got %q", name, arg)
		}
		return policy, nil
	}
}

func newAdapt(arg string) (Accruer, error) {
	alpha, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return nil, fmt.Errorf("adapt: invalid alpha %q: %w", arg, err)
	}
	if !(alpha > 0 && alpha <= 1) {
		return nil, fmt.Errorf("adapt: alpha %v outside (0,1]", alpha)
	}
	return Adapt(alpha), nil
}

// RegisterAssign makes an assignment policy available under a name prefix
func RegisterAssign(prefix string, f AssignFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	assigners[prefix] = f
}

// RegisterAccrual makes an accrual policy available under a name prefix
func RegisterAccrual(prefix string, f AccrualFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	accruals[prefix] = f
}

// ResolveAssign looks up an assignment policy by name
func ResolveAssign(name string) (Assigner, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, arg, ok := lookup(assigners, name)
	if !ok {
		return nil, fmt.Errorf("unknown credit assignment policy: %s", name)
	}
	return f(arg)
}

// ResolveAccrual looks up an accrual policy by name. A trailing "r"
// (e.g. "adapt0.6r") requests that history be reset when a member restarts.
func ResolveAccrual(name string) (a Accruer, resetOnRestart bool, err error) {
	if base, ok := strings.CutSuffix(name, "r"); ok {
		name, resetOnRestart = base, true
	}

	registryMu.RLock()
	defer registryMu.RUnlock()

	f, arg, ok := lookup(accruals, name)
	if !ok {
		return nil, false, fmt.Errorf("unknown credit accrual policy: %s", name)
	}
	a, err = f(arg)
	return a, resetOnRestart, err
}

// lookup prefers an exact name and otherwise the longest matching prefix
func lookup[F any](registry map[string]F, name string) (F, string, bool) {
	if f, ok := registry[name]; ok {
		return f, "", true
	}
	best := ""
	for prefix := range registry {
		if strings.HasPrefix(name, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		var zero F
		return zero, "", false
	}
	return registry[best], name[len(best):], true
}

// AssignNames returns the registered assignment policy names
func AssignNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedKeys(assigners)
}

// AccrualNames returns the registered accrual policy prefixes
func AccrualNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedKeys(accruals)
}

func sortedKeys[F any](m map[string]F) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
