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
Package index contains the secondary indexes of the graph.

Index Manager

The Manager maintains index structures which map property values to sets of
entity identifiers:

	ordered   - single property, equality and range lookups (B-tree)
	composite - tuple of properties, equality lookups
	fulltext  - inverted index from words to entities with word positions
	reltype   - relationship type to edge identifiers

Indexes are derived data. The graph calls OnChange for every committed change
inside its commit critical section so there is never a window where a reader
can see a committed change without the corresponding index update. The graph
holds its own write lock while calling OnChange; the lock order is always
graph before index.

Rebuild and Verify scan the graph and compare the result with the current
index content. Any difference is reported as an IndexInconsistencyError since
it indicates an error in the update hook.
*/
package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/krotik/common/errorutil"
	"github.com/krotik/common/logutil"
	"github.com/krotik/common/stringutil"
	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/util"
	"golang.org/x/sync/errgroup"
)

var logger = logutil.GetLogger("eliasgraph.index")

/*
EntitySource provides all entities of a consistent graph state.
*/
type EntitySource interface {

	/*
		ForEachNode calls a function for every node.
	*/
	ForEachNode(fn func(*data.Node) error) error

	/*
		ForEachEdge calls a function for every edge.
	*/
	ForEachEdge(fn func(*data.Edge) error) error
}

/*
Manager data structure
*/
type Manager struct {
	indexes   map[string]Index  // Indexes by name
	canonical map[string]string // Canonical spec to name
	mutex     *sync.RWMutex     // Mutex to protect the indexes
	lookups   func(kind Kind)   // Callback for every lookup (e.g. metrics)
}

/*
NewManager creates a new index manager.
*/
func NewManager() *Manager {
	return &Manager{make(map[string]Index), make(map[string]string), &sync.RWMutex{}, nil}
}

/*
SetLookupCallback sets a function which is called on every index lookup.
*/
func (m *Manager) SetLookupCallback(fn func(kind Kind)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.lookups = fn
}

/*
Create creates a new index and builds it by scanning all matching entities.
Returns ErrIndexExists if an index with the same name or the same spec exists.
*/
func (m *Manager) Create(spec Spec, src EntitySource) (Handle, error) {

	if err := spec.Validate(); err != nil {
		return "", err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if name, ok := m.canonical[spec.Canonical()]; ok {
		return "", &util.GraphError{Type: util.ErrIndexExists, Detail: fmt.Sprintf("%v (as %v)", spec.Canonical(), name)}
	}

	if _, ok := m.indexes[spec.Name]; ok {
		return "", &util.GraphError{Type: util.ErrIndexExists, Detail: spec.Name}
	}

	idx, err := build(&spec, src)
	if err != nil {
		return "", err
	}

	m.indexes[spec.Name] = idx
	m.canonical[spec.Canonical()] = spec.Name

	logger.Info(fmt.Sprintf("Created %v (%v keys)", spec.String(), idx.Keys()))

	return Handle(spec.Name), nil
}

/*
build creates a new index structure from a given entity source.
*/
func build(spec *Spec, src EntitySource) (Index, error) {
	idx := newIndex(spec)

	add := func(e data.Entity) error {
		if spec.Applies(e) {
			idx.Add(e)
		}
		return nil
	}

	if src == nil {
		return idx, nil
	}

	var err error

	if spec.Target == TargetNodes {
		err = src.ForEachNode(func(n *data.Node) error { return add(n) })
	} else {
		err = src.ForEachEdge(func(e *data.Edge) error { return add(e) })
	}

	if err != nil {
		return nil, &util.GraphError{Type: util.ErrIndexError, Detail: "Could not build " + spec.Name, Cause: err}
	}

	return idx, nil
}

/*
Restore replaces all indexes with new indexes for the given specs. The
indexes are built in parallel from the given entity source. No index is
changed if one of the specs is invalid or a build fails.
*/
func (m *Manager) Restore(specs []Spec, src EntitySource) error {
	built := make([]Index, len(specs))
	canonical := make(map[string]string)

	for i := range specs {
		spec := &specs[i]

		if err := spec.Validate(); err != nil {
			return err
		}

		if name, ok := canonical[spec.Canonical()]; ok {
			return &util.GraphError{Type: util.ErrIndexExists, Detail: fmt.Sprintf("%v (as %v)", spec.Canonical(), name)}
		}

		canonical[spec.Canonical()] = spec.Name
	}

	var g errgroup.Group

	for i := range specs {
		i := i
		g.Go(func() error {
			idx, err := build(&specs[i], src)
			built[i] = idx
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.indexes = make(map[string]Index)
	m.canonical = canonical

	for _, idx := range built {
		m.indexes[idx.Spec().Name] = idx
	}

	if len(built) > 0 {
		logger.Info(fmt.Sprintf("Restored %v index definition%v", len(built), stringutil.Plural(len(built))))
	}

	return nil
}

/*
Drop removes an index.
*/
func (m *Manager) Drop(h Handle) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	idx, ok := m.indexes[string(h)]
	if !ok {
		return &util.GraphError{Type: util.ErrUnknownIndex, Detail: string(h)}
	}

	delete(m.indexes, string(h))
	delete(m.canonical, idx.Spec().Canonical())

	logger.Info(fmt.Sprintf("Dropped %v", idx.Spec().String()))

	return nil
}

/*
Spec returns a copy of the spec of an index.
*/
func (m *Manager) Spec(h Handle) (*Spec, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	idx, ok := m.indexes[string(h)]
	if !ok {
		return nil, &util.GraphError{Type: util.ErrUnknownIndex, Detail: string(h)}
	}

	return copySpec(idx.Spec()), nil
}

/*
Specs returns copies of all index specs sorted by name.
*/
func (m *Manager) Specs() []*Spec {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ret := make([]*Spec, 0, len(m.indexes))

	for _, idx := range m.indexes {
		ret = append(ret, copySpec(idx.Spec()))
	}

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Name < ret[j].Name
	})

	return ret
}

/*
copySpec returns a copy of a spec.
*/
func copySpec(s *Spec) *Spec {
	ret := *s
	ret.Properties = append([]string(nil), s.Properties...)
	return &ret
}

/*
get returns an index by its handle. Must be called with at least a read lock.
*/
func (m *Manager) get(h Handle) (Index, error) {
	idx, ok := m.indexes[string(h)]
	if !ok {
		return nil, &util.GraphError{Type: util.ErrUnknownIndex, Detail: string(h)}
	}

	if m.lookups != nil {
		m.lookups(idx.Spec().Kind)
	}

	return idx, nil
}

/*
unsupported returns an error for an operation which is not supported by an index.
*/
func unsupported(op string, idx Index) error {
	return &util.GraphError{Type: util.ErrUnsupportedIndexOp,
		Detail: fmt.Sprintf("%v on %v", op, idx.Spec().String())}
}

/*
Lookup returns the identifiers of all entities with a given key in ascending
order. The key is a scalar for ordered indexes, a list of scalars for composite
indexes, a word for full-text indexes and a relationship type for relationship
type indexes.
*/
func (m *Manager) Lookup(h Handle, key interface{}) ([]uint64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	idx, err := m.get(h)
	if err != nil {
		return nil, err
	}

	switch i := idx.(type) {

	case *orderedIndex:
		return i.Lookup(key), nil

	case *compositeIndex:
		if tuple, ok := key.([]interface{}); ok {
			return i.Lookup(tuple), nil
		}

	case *fullTextIndex:
		if word, ok := key.(string); ok {
			return i.Lookup(word), nil
		}

	case *relTypeIndex:
		if etype, ok := key.(string); ok {
			return i.Lookup(etype), nil
		}
	}

	return nil, &util.GraphError{Type: util.ErrIndexError,
		Detail: fmt.Sprintf("Invalid key %v for %v", key, idx.Spec().String())}
}

/*
Range returns an iterator over all entities with a key in the given bounds in
key order. Only supported by ordered indexes.
*/
func (m *Manager) Range(h Handle, lower, upper *Bound) (*IDIterator, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	idx, err := m.get(h)
	if err != nil {
		return nil, err
	}

	oi, ok := idx.(*orderedIndex)
	if !ok {
		return nil, unsupported("Range", idx)
	}

	return NewIDIterator(oi.Range(lower, upper)), nil
}

/*
Search runs a full-text search on an attribute of a full-text index.
*/
func (m *Manager) Search(h Handle, attr string, text string) ([]Hit, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	idx, err := m.get(h)
	if err != nil {
		return nil, err
	}

	fi, ok := idx.(*fullTextIndex)
	if !ok {
		return nil, unsupported("Search", idx)
	}

	return fi.Search(attr, text), nil
}

/*
Phrase returns all entities where an attribute of a full-text index contains
a given phrase.
*/
func (m *Manager) Phrase(h Handle, attr string, phrase string) ([]uint64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	idx, err := m.get(h)
	if err != nil {
		return nil, err
	}

	fi, ok := idx.(*fullTextIndex)
	if !ok {
		return nil, unsupported("Phrase", idx)
	}

	return fi.Phrase(attr, phrase), nil
}

/*
OnChange updates all indexes for a committed change. This is the update hook
which the graph calls inside its commit critical section.
*/
func (m *Manager) OnChange(c *data.Change) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, idx := range m.indexes {
		spec := idx.Spec()

		if c.Old != nil && spec.Applies(c.Old) {
			idx.Remove(c.Old)
		}

		if c.New != nil && spec.Applies(c.New) {
			idx.Add(c.New)
		}
	}
}

/*
Verify compares an index with the current state of the graph. Returns an
IndexInconsistencyError listing all differences.
*/
func (m *Manager) Verify(h Handle, src EntitySource) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	idx, err := m.get(h)
	if err != nil {
		return err
	}

	fresh, err := build(idx.Spec(), src)
	if err != nil {
		return err
	}

	return compare(idx, fresh)
}

/*
Rebuild rescans the graph and replaces an index. If the old index content
differed from the rescan an IndexInconsistencyError is returned after the
index was replaced.
*/
func (m *Manager) Rebuild(h Handle, src EntitySource) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	idx, err := m.get(h)
	if err != nil {
		return err
	}

	fresh, err := build(idx.Spec(), src)
	if err != nil {
		return err
	}

	err = compare(idx, fresh)

	m.indexes[string(h)] = fresh

	if err != nil {
		logger.Error(err)
	} else {
		logger.Info(fmt.Sprintf("Rebuilt %v (%v keys)", idx.Spec().String(), fresh.Keys()))
	}

	return err
}

/*
compare compares the content of two indexes.
*/
func compare(current Index, expected Index) error {
	cdump := current.Dump()
	edump := expected.Dump()

	cerr := errorutil.NewCompositeError()

	missing := func(a, b map[string]*roaring64.Bitmap, msg string) {
		keys := make([]string, 0, len(a))
		for k := range a {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			diff := a[k].Clone()
			if other, ok := b[k]; ok {
				diff.AndNot(other)
			}
			if !diff.IsEmpty() {
				cerr.Add(fmt.Errorf("%v %v for key %q", msg, diff.ToArray(), k))
			}
		}
	}

	missing(edump, cdump, "entities missing in index")
	missing(cdump, edump, "stale entities in index")

	if cerr.HasErrors() {
		return &util.GraphError{Type: util.ErrIndexInconsistency,
			Detail: fmt.Sprintf("%v: %v", current.Spec().Name, cerr.Error())}
	}

	return nil
}

/*
IDIterator iterates over a materialized list of entity identifiers.
*/
type IDIterator struct {
	ids []uint64
	pos int
}

/*
NewIDIterator creates a new iterator over a list of identifiers.
*/
func NewIDIterator(ids []uint64) *IDIterator {
	return &IDIterator{ids, 0}
}

/*
HasNext returns if there is a next identifier.
*/
func (it *IDIterator) HasNext() bool {
	return it.pos < len(it.ids)
}

/*
Next returns the next identifier.
*/
func (it *IDIterator) Next() uint64 {
	if it.pos >= len(it.ids) {
		return 0
	}
	ret := it.ids[it.pos]
	it.pos++
	return ret
}

/*
Len returns the total number of identifiers.
*/
func (it *IDIterator) Len() int {
	return len(it.ids)
}
