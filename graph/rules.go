/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/util"
)

/*
ErrEventHandled is a special error which an event handler can return to
notify the emitter that it has handled the event. The graph manager does not
treat it as an error.
*/
var ErrEventHandled = errors.New("Event handled")

/*
graphRulesManager data structure
*/
type graphRulesManager struct {
	gm       *Manager                           // GraphManager which provides events
	rules    map[string]Rule                    // Map of graph rules
	eventMap map[data.EventKind]map[string]Rule // Map of events to graph rules
	mutex    *sync.RWMutex                      // Mutex to protect the rule maps
}

/*
Rule models a graph rule. Rules are called while a transaction is built up
and can add further changes to the transaction.
*/
type Rule interface {

	/*
	   Name returns the name of the rule.
	*/
	Name() string

	/*
		Handles returns a list of events which are handled by this rule.
	*/
	Handles() []data.EventKind

	/*
		Handle handles an event. The function should write all changes to the
		given transaction.
	*/
	Handle(gm *Manager, trans Trans, event data.EventKind, ed ...interface{}) error
}

/*
newGraphRulesManager creates a new rules manager.
*/
func newGraphRulesManager(gm *Manager) *graphRulesManager {
	return &graphRulesManager{gm, make(map[string]Rule),
		make(map[data.EventKind]map[string]Rule), &sync.RWMutex{}}
}

/*
graphEvent main event handler which receives all graph related events.
*/
func (gr *graphRulesManager) graphEvent(trans Trans, event data.EventKind, ed ...interface{}) error {
	var errs []string

	gr.mutex.RLock()

	var rules []Rule
	for _, name := range sortedRuleNames(gr.eventMap[event]) {
		rules = append(rules, gr.eventMap[event][name])
	}

	gr.mutex.RUnlock()

	for _, rule := range rules {

		// Handle the event

		if err := rule.Handle(gr.gm, trans, event, ed...); err != nil && err != ErrEventHandled {
			errs = append(errs, err.Error())
		}
	}

	if errs != nil {
		return &util.GraphError{Type: util.ErrRule, Detail: strings.Join(errs, ";")}
	}

	return nil
}

/*
SetGraphRule sets a GraphRule.
*/
func (gr *graphRulesManager) SetGraphRule(rule Rule) {
	gr.mutex.Lock()
	defer gr.mutex.Unlock()

	gr.rules[rule.Name()] = rule

	for _, handledEvent := range rule.Handles() {

		rules, ok := gr.eventMap[handledEvent]
		if !ok {
			rules = make(map[string]Rule)
			gr.eventMap[handledEvent] = rules
		}

		rules[rule.Name()] = rule
	}
}

/*
GraphRules returns a list of all available graph rules.
*/
func (gr *graphRulesManager) GraphRules() []string {
	gr.mutex.RLock()
	defer gr.mutex.RUnlock()

	return sortedRuleNames(gr.rules)
}

/*
sortedRuleNames returns the names of a rule map in ascending order.
*/
func sortedRuleNames(rules map[string]Rule) []string {
	ret := make([]string, 0, len(rules))

	for rule := range rules {
		ret = append(ret, rule)
	}

	sort.StringSlice(ret).Sort()

	return ret
}

// System rule SystemRuleDeleteNodeEdges
// =====================================

/*
SystemRuleDeleteNodeEdges is a system rule to delete all edges when a node is
deleted.
*/
type SystemRuleDeleteNodeEdges struct {
}

/*
Name returns the name of the rule.
*/
func (r *SystemRuleDeleteNodeEdges) Name() string {
	return "system.deletenodeedges"
}

/*
Handles returns a list of events which are handled by this rule.
*/
func (r *SystemRuleDeleteNodeEdges) Handles() []data.EventKind {
	return []data.EventKind{data.EventNodeDeleted}
}

/*
Handle handles an event.
*/
func (r *SystemRuleDeleteNodeEdges) Handle(gm *Manager, trans Trans, event data.EventKind, ed ...interface{}) error {
	node := ed[0].(*data.Node)

	// Get all relationships which are visible to the transaction

	edges, err := trans.Traverse(node.ID, data.DirectionBoth)
	if err != nil {
		return err
	}

	for _, edge := range edges {
		if err := trans.DeleteEdge(edge.ID); err != nil && !util.IsNotFound(err) {
			return err
		}
	}

	return nil
}
