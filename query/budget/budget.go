/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package budget contains the budget manager which bounds the cost of a query.

A budget is a tuple of limits for node visits, edge visits, produced rows and
elapsed time. The executor charges the budget for every entity it touches.
If a limit is exceeded the executor stops and returns the rows it produced so
far together with a truncation flag. A limit of 0 means no limit.

The elapsed time is only checked every PollInterval charges. Counting limits
are therefore deterministic: the same query on the same graph is always
truncated at the same point.
*/
package budget

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

/*
Kind is a kind of cost which is charged to a budget.
*/
type Kind string

/*
Known cost kinds
*/
const (
	NodeVisits   Kind = "node_visits"
	EdgeVisits   Kind = "edge_visits"
	ElapsedTime  Kind = "elapsed_time"
	RowsProduced Kind = "rows_produced"
)

/*
PollInterval is the number of charges between two checks of the elapsed time.
*/
var PollInterval = 64

/*
Spec is a named tuple of limits. A limit of 0 means no limit.
*/
type Spec struct {
	Name       string        `mapstructure:"name" json:"name"`
	NodeVisits int64         `mapstructure:"node_visits" json:"node_visits"`
	EdgeVisits int64         `mapstructure:"edge_visits" json:"edge_visits"`
	Rows       int64         `mapstructure:"rows" json:"rows"`
	Timeout    time.Duration `mapstructure:"timeout" json:"timeout"`
}

/*
String returns a string representation of this spec.
*/
func (s Spec) String() string {
	limit := func(v int64) string {
		if v == 0 {
			return "-"
		}
		return fmt.Sprint(v)
	}

	timeout := "-"
	if s.Timeout > 0 {
		timeout = s.Timeout.String()
	}

	return fmt.Sprintf("Budget %v (nodes: %v edges: %v rows: %v time: %v)", s.Name,
		limit(s.NodeVisits), limit(s.EdgeVisits), limit(s.Rows), timeout)
}

/*
Limit returns the limit of a given kind. The elapsed time limit is returned
in milliseconds.
*/
func (s Spec) Limit(kind Kind) int64 {
	switch kind {
	case NodeVisits:
		return s.NodeVisits
	case EdgeVisits:
		return s.EdgeVisits
	case RowsProduced:
		return s.Rows
	case ElapsedTime:
		return s.Timeout.Milliseconds()
	}
	return 0
}

/*
Built-in presets
*/
var (
	Strict = Spec{Name: "strict", NodeVisits: 10000, EdgeVisits: 50000, Rows: 1000,
		Timeout: 100 * time.Millisecond}
	Moderate = Spec{Name: "moderate", NodeVisits: 1000000, EdgeVisits: 5000000, Rows: 100000,
		Timeout: 5 * time.Second}
	Permissive = Spec{Name: "permissive", NodeVisits: 100000000, EdgeVisits: 500000000, Rows: 10000000,
		Timeout: time.Minute}
	Unlimited = Spec{Name: "unlimited"}
)

/*
presets holds all known presets
*/
var presets = map[string]Spec{
	Strict.Name:     Strict,
	Moderate.Name:   Moderate,
	Permissive.Name: Permissive,
	Unlimited.Name:  Unlimited,
}

/*
presetsLock guards the presets map
*/
var presetsLock = &sync.RWMutex{}

/*
RegisterPreset registers a named preset. An existing preset with the same name
is replaced.
*/
func RegisterPreset(spec Spec) error {
	if spec.Name == "" {
		return fmt.Errorf("Budget preset needs a name")
	}

	if spec.NodeVisits < 0 || spec.EdgeVisits < 0 || spec.Rows < 0 || spec.Timeout < 0 {
		return fmt.Errorf("Budget preset %v has negative limits", spec.Name)
	}

	presetsLock.Lock()
	defer presetsLock.Unlock()

	presets[spec.Name] = spec

	return nil
}

/*
Preset looks up a named preset.
*/
func Preset(name string) (Spec, error) {
	presetsLock.RLock()
	defer presetsLock.RUnlock()

	spec, ok := presets[strings.ToLower(name)]
	if !ok {
		spec, ok = presets[name]
	}

	if !ok {
		return Spec{}, fmt.Errorf("Unknown budget preset: %v", name)
	}

	return spec, nil
}

/*
Presets returns the names of all known presets.
*/
func Presets() []string {
	presetsLock.RLock()
	defer presetsLock.RUnlock()

	var ret []string
	for name := range presets {
		ret = append(ret, name)
	}

	sort.Strings(ret)

	return ret
}

/*
ExceededError is returned by Charge if a limit was exceeded.
*/
type ExceededError struct {
	Kind  Kind  // Exceeded limit
	Limit int64 // Value of the limit
	Used  int64 // Used amount
}

/*
Error returns a human-readable string representation of this error.
*/
func (e *ExceededError) Error() string {
	return fmt.Sprintf("Budget exceeded: %v (limit: %v used: %v)", e.Kind, e.Limit, e.Used)
}

/*
Manager tracks the usage of a budget during the execution of one query. A
manager is not safe for concurrent use.
*/
type Manager struct {
	spec     Spec             // Limits
	used     map[Kind]int64   // Used amounts
	start    time.Time        // Start time of the query
	charges  int              // Number of charges since the last time check
	exceeded *ExceededError   // First exceeded limit
	now      func() time.Time // Clock
}

/*
NewManager creates a new budget manager for a given spec. The elapsed time is
measured from this call.
*/
func NewManager(spec Spec) *Manager {
	return newManagerWithClock(spec, time.Now)
}

/*
newManagerWithClock creates a new budget manager with a given clock.
*/
func newManagerWithClock(spec Spec, now func() time.Time) *Manager {
	return &Manager{spec, make(map[Kind]int64), now(), 0, nil, now}
}

/*
Spec returns the limits of this manager.
*/
func (m *Manager) Spec() Spec {
	return m.spec
}

/*
Charge charges an amount of a given kind. Returns an ExceededError if the
limit of the kind (or the time limit) is exceeded. Once a limit was exceeded
every further charge fails.
*/
func (m *Manager) Charge(kind Kind, amount int64) error {

	if m.exceeded != nil {
		return m.exceeded
	}

	m.used[kind] += amount

	if limit := m.spec.Limit(kind); kind != ElapsedTime && limit > 0 && m.used[kind] > limit {
		m.exceeded = &ExceededError{kind, limit, m.used[kind]}
		return m.exceeded
	}

	m.charges++

	if m.charges >= PollInterval {
		return m.Poll()
	}

	return nil
}

/*
Poll checks the elapsed time.
*/
func (m *Manager) Poll() error {

	if m.exceeded != nil {
		return m.exceeded
	}

	m.charges = 0

	elapsed := m.now().Sub(m.start)
	m.used[ElapsedTime] = elapsed.Milliseconds()

	if m.spec.Timeout > 0 && elapsed > m.spec.Timeout {
		m.exceeded = &ExceededError{ElapsedTime, m.spec.Timeout.Milliseconds(), elapsed.Milliseconds()}
		return m.exceeded
	}

	return nil
}

/*
Used returns the used amount of a given kind.
*/
func (m *Manager) Used(kind Kind) int64 {
	if kind == ElapsedTime {
		return m.now().Sub(m.start).Milliseconds()
	}
	return m.used[kind]
}

/*
Exceeded returns the first exceeded limit or nil.
*/
func (m *Manager) Exceeded() *ExceededError {
	return m.exceeded
}
