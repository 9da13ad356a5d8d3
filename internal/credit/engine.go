// Package credit turns population values into a persistent per-member
// fitness signal. Smaller credit is better.
package credit

import (
	"log/slog"
	"math"
)

// Sentinel replaces non-finite member values before assignment
const Sentinel = 1e9

// Population is the view of a population the engine needs.
type Population interface {
	Len() int
	Values() []float64
	// Steps must never decrease for a given member index
	Steps(i int) int
}

// Record is the credit state of one member.
type Record struct {
	Credit float64
	// History counts accrued credits; it is the accrual denominator
	History int
}

// Engine maintains credit records for a population. It implements
// population.Listener so restarts and additions arrive as events.
type Engine struct {
	pop            Population
	assign         Assigner
	accrue         Accruer
	resetOnRestart bool

	records   []Record
	seen      []int
	restarted []bool
}

// New creates an engine for pop using the named assignment and accrual
// policies.
func New(pop Population, assign, accrual string) (*Engine, error) {
	a, err := ResolveAssign(assign)
	if err != nil {
		return nil, err
	}
	acc, reset, err := ResolveAccrual(accrual)
	if err != nil {
		return nil, err
	}
	return NewWith(pop, a, acc, reset), nil
}

// NewWith creates an engine from policy values.
func NewWith(pop Population, assign Assigner, accrue Accruer, resetOnRestart bool) *Engine {
	e := &Engine{
		pop:            pop,
		assign:         assign,
		accrue:         accrue,
		resetOnRestart: resetOnRestart,
	}
	for i := 0; i < pop.Len(); i++ {
		e.records = append(e.records, Record{Credit: 1})
		e.seen = append(e.seen, pop.Steps(i))
		e.restarted = append(e.restarted, false)
	}
	return e
}

// ResetOnRestart reports whether history is dropped when a member restarts
func (e *Engine) ResetOnRestart() bool { return e.resetOnRestart }

// MemberRestarted marks member i as restarted. The next update recomputes
// its credit even if it has not stepped since, dropping its history first
// when reset-on-restart is enabled.
func (e *Engine) MemberRestarted(i int) {
	if i < len(e.restarted) {
		e.restarted[i] = true
	}
}

// MemberAdded extends the engine to cover a newly added member
func (e *Engine) MemberAdded(i int) {
	for len(e.records) <= i {
		e.Add()
	}
}

// Add appends a record with credit 1 and empty history
func (e *Engine) Add() {
	n := len(e.records)
	e.records = append(e.records, Record{Credit: 1})
	e.restarted = append(e.restarted, false)
	steps := 0
	if n < e.pop.Len() {
		steps = e.pop.Steps(n)
	}
	e.seen = append(e.seen, steps)
}

// Update assigns fresh credit from current values and accrues it for every
// member that stepped or restarted since the previous update. Call it once
// per portfolio iteration.
func (e *Engine) Update() {
	values := e.pop.Values()
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			slog.Debug("Sanitized non-finite member value", "member", i, "value", v)
			values[i] = Sentinel
		}
	}
	fresh := e.assign.Assign(values)

	for i := range values {
		if i >= len(e.records) {
			e.Add()
		}
		steps := e.pop.Steps(i)
		if steps == e.seen[i] && !e.restarted[i] {
			continue
		}
		e.seen[i] = steps

		r := &e.records[i]
		if e.restarted[i] && e.resetOnRestart {
			r.History = 0
		}
		e.restarted[i] = false

		if r.History > 0 {
			r.Credit = e.accrue.Accrue(r.Credit, r.History, fresh[i])
		} else {
			r.Credit = fresh[i]
		}
		r.History++
	}
}

// Len returns the number of tracked members
func (e *Engine) Len() int { return len(e.records) }

// Credit returns the credit of member i
func (e *Engine) Credit(i int) float64 { return e.records[i].Credit }

// Record returns the full credit record of member i
func (e *Engine) Record(i int) Record { return e.records[i] }

// Credits returns a copy of every member's credit
func (e *Engine) Credits() []float64 {
	credits := make([]float64, len(e.records))
	for i, r := range e.records {
		credits[i] = r.Credit
	}
	return credits
}

// Best returns the index of the member with the lowest credit, the lowest
// index on ties
func (e *Engine) Best() int {
	best := 0
	for i, r := range e.records {
		if r.Credit < e.records[best].Credit {
			best = i
		}
	}
	return best
}
