/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package index

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/krotik/common/bitutil"
	"github.com/krotik/common/sortutil"
	"github.com/krotik/common/stringutil"
	"github.com/krotik/eliasgraph/graph/data"
)

/*
CaseSensitiveWordIndex is a flag to indicate if the index should be case sensitive.
*/
var CaseSensitiveWordIndex = false

/*
Hit is a result of a full-text search.
*/
type Hit struct {
	ID    uint64  // Entity identifier
	Score float64 // Term frequency score
}

/*
fullTextIndex is an inverted index from words to entities. For every entity
the positions of a word inside a property value are kept so phrases can be
found.
*/
type fullTextIndex struct {
	spec  *Spec
	words map[string]map[string]map[uint64]string // Attribute to word to entity to packed positions
}

/*
newFullTextIndex creates a new full-text index.
*/
func newFullTextIndex(spec *Spec) *fullTextIndex {
	words := make(map[string]map[string]map[uint64]string)

	for _, p := range spec.Properties {
		words[p] = make(map[string]map[uint64]string)
	}

	return &fullTextIndex{spec, words}
}

/*
Spec returns the spec of the index.
*/
func (fi *fullTextIndex) Spec() *Spec {
	return fi.spec
}

/*
Add adds an entity to the index.
*/
func (fi *fullTextIndex) Add(e data.Entity) {
	id := e.EntityID()
	obj := e.IndexMap()

	for _, attr := range fi.spec.Properties {
		text, ok := obj[attr]
		if !ok {
			continue
		}

		for word, pos := range extractWords(text).set {
			entry, ok := fi.words[attr][word]
			if !ok {
				entry = make(map[uint64]string)
				fi.words[attr][word] = entry
			}
			entry[id] = bitutil.PackList(pos, pos[len(pos)-1])
		}
	}
}

/*
Remove removes an entity from the index.
*/
func (fi *fullTextIndex) Remove(e data.Entity) {
	id := e.EntityID()
	obj := e.IndexMap()

	for _, attr := range fi.spec.Properties {
		text, ok := obj[attr]
		if !ok {
			continue
		}

		for word := range extractWords(text).set {
			if entry, ok := fi.words[attr][word]; ok {
				delete(entry, id)
				if len(entry) == 0 {
					delete(fi.words[attr], word)
				}
			}
		}
	}
}

/*
LookupWord finds all entities where an attribute contains a certain word. This
call returns a map which maps entity identifiers to a list of word positions.
*/
func (fi *fullTextIndex) LookupWord(attr, word string) map[uint64][]uint64 {
	if !CaseSensitiveWordIndex {
		word = strings.ToLower(word)
	}

	entry := fi.words[attr][word]
	ret := make(map[uint64][]uint64, len(entry))

	for id, packed := range entry {
		ret[id] = bitutil.UnpackList(packed)
	}

	return ret
}

/*
Lookup returns all entities which contain a given word in any of the indexed
attributes.
*/
func (fi *fullTextIndex) Lookup(word string) []uint64 {
	bm := roaring64.New()

	if !CaseSensitiveWordIndex {
		word = strings.ToLower(word)
	}

	for _, attr := range fi.spec.Properties {
		for id := range fi.words[attr][word] {
			bm.Add(id)
		}
	}

	return bm.ToArray()
}

/*
Search finds all entities where an attribute contains at least one word of a
given text. Every hit is scored with the number of occurrences of the search
words. Hits are ordered by descending score and ascending identifier.
*/
func (fi *fullTextIndex) Search(attr, text string) []Hit {
	scores := make(map[uint64]float64)

	for word := range extractWords(text).set {
		for id, packed := range fi.words[attr][word] {
			scores[id] += float64(len(bitutil.UnpackList(packed)))
		}
	}

	ret := make([]Hit, 0, len(scores))
	for id, score := range scores {
		ret = append(ret, Hit{id, score})
	}

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Score != ret[j].Score {
			return ret[i].Score > ret[j].Score
		}
		return ret[i].ID < ret[j].ID
	})

	return ret
}

/*
Phrase finds all entities where an attribute contains a certain phrase. This
call returns a sorted list of identifiers which contain the phrase at least
once.
*/
func (fi *fullTextIndex) Phrase(attr, phrase string) []uint64 {

	// Chop up the phrase into words

	phraseWords := splitWords(phrase)

	if len(phraseWords) == 0 {
		return nil
	}

	// Lookup every phrase word

	results := make([]map[uint64][]uint64, len(phraseWords))

	for i, phraseWord := range phraseWords {
		results[i] = fi.LookupWord(attr, phraseWord)
	}

	ret := make([]uint64, 0, len(results[0]))

	// Go through all found entities and try to find a path

	path := make([]uint64, 0, len(phraseWords))

	for id := range results[0] {

		path = path[:0]

		if findPhrasePath(id, 0, path, phraseWords, results) == len(phraseWords) {

			// Add entity to results if a path was found

			ret = append(ret, id)
		}
	}

	// Guarantee a stable result

	sortutil.UInt64s(ret)

	return ret
}

/*
findPhrasePath tries to find a phrase in a given set of lookup results.
*/
func findPhrasePath(id uint64, index int, path []uint64,
	phraseWords []string, results []map[uint64][]uint64) int {

	// Get the results for this word index

	result := results[index]

	// Check if there is a result for the given entity

	if posArr, ok := result[id]; ok {

		// Check if any of the positions is at the right place

		if index > 0 {

			// Check with previous result

			for _, pos := range posArr {

				// Check if the position array contains the expected next word position

				if pos == path[index-1]+1 {
					path = append(path, pos)
					break
				}

				// Abort if the expected position cannot be there

				if pos > path[index-1]+1 {
					return len(path)
				}
			}

			// Do the next iteration if a position was found and
			// there are more words in the phrase to match

			if len(path) == index+1 && index < len(phraseWords)-1 {
				return findPhrasePath(id, index+1, path, phraseWords, results)
			}

			return len(path)
		}

		// Try every position as start position in the first iteration

		for _, pos := range posArr {

			path = path[:0]
			path = append(path, pos)

			// Test if the phrase only contained one word

			if len(phraseWords) == 1 {
				return 1
			}

			// Find the rest

			ret := findPhrasePath(id, 1, path, phraseWords, results)

			if ret == len(phraseWords) {
				return ret
			}
		}
	}

	return len(path)
}

/*
Dump returns all index entries. The key of an entry contains the attribute,
the word and the word positions.
*/
func (fi *fullTextIndex) Dump() map[string]*roaring64.Bitmap {
	ret := make(map[string]*roaring64.Bitmap)

	for attr, words := range fi.words {
		for word, entry := range words {
			for id, packed := range entry {
				addToPosting(ret, fmt.Sprintf("%v\x00%v\x00%v", attr, word,
					bitutil.UnpackList(packed)), id)
			}
		}
	}

	return ret
}

/*
Keys returns the number of distinct words.
*/
func (fi *fullTextIndex) Keys() int {
	ret := 0
	for _, words := range fi.words {
		ret += len(words)
	}
	return ret
}

/*
isWordSeparator checks if a rune separates two words.
*/
func isWordSeparator(r rune) bool {
	return !stringutil.IsAlphaNumeric(string(r)) &&
		(unicode.IsSpace(r) || unicode.IsControl(r) || unicode.IsPunct(r))
}

/*
splitWords splits a text into a list of words.
*/
func splitWords(s string) []string {
	if !CaseSensitiveWordIndex {
		s = strings.ToLower(s)
	}
	return strings.FieldsFunc(s, isWordSeparator)
}

/*
extractWords extracts all words from a given string and return a wordSet which contains
all words and their positions.
*/
func extractWords(s string) *wordSet {

	var text string

	if CaseSensitiveWordIndex {
		text = s
	} else {
		text = strings.ToLower(s)
	}

	initArrCap := int(math.Ceil(float64(len(text)) * 0.01))
	if initArrCap < 4 {
		initArrCap = 4
	}

	ws := newWordSet(initArrCap)

	var pos uint64
	wstart := -1

	for i, r := range text {

		if isWordSeparator(r) {

			if wstart >= 0 {
				ws.Add(text[wstart:i], pos+1)
				pos++
				wstart = -1
			}

		} else if wstart == -1 {
			wstart = i
		}
	}

	if wstart >= 0 {
		ws.Add(text[wstart:], pos+1)
	}

	return ws
}

/*
Internal data structure for sets of words and their positions.
*/
type wordSet struct {
	set        map[string][]uint64 // Map which holds the data
	initArrCap int                 // Initial capacity for the position array
}

/*
newWordSet creates a new word set.
*/
func newWordSet(initArrCap int) *wordSet {
	return &wordSet{make(map[string][]uint64), initArrCap}
}

/*
Add adds a word to the word set. Returns true if the word was added and false
if an existing entry was updated.
*/
func (ws *wordSet) Add(s string, pos uint64) bool {
	v, ok := ws.set[s]

	if !ok {
		ws.set[s] = make([]uint64, 1, ws.initArrCap)
		ws.set[s][0] = pos

	} else {

		// Make sure the largest entry is always last

		l := len(ws.set[s])

		if ws.set[s][l-1] < pos {
			ws.set[s] = append(v, pos)
		} else {

			// Make sure there is no double entry

			for _, ex := range v {
				if ex == pos {
					return !ok
				}
			}

			ws.set[s] = append(v, pos)
			sortutil.UInt64s(ws.set[s])
		}
	}

	return !ok
}

/*
String returns a string representation of this word set.
*/
func (ws *wordSet) String() string {
	var buf bytes.Buffer
	c := make([]string, 0, len(ws.set))

	for s := range ws.set {
		c = append(c, s)
	}

	sort.StringSlice(c).Sort()

	buf.WriteString("WordSet:\n")

	for _, k := range c {
		buf.WriteString(fmt.Sprintf("    %v %v\n", k, ws.set[k]))
	}

	return buf.String()
}

/*
MatchesText checks if a value contains at least one word of a given text. This
is the per-entity form of Search.
*/
func MatchesText(value, text string) bool {
	words := extractWords(value).set

	for word := range extractWords(text).set {
		if _, ok := words[word]; ok {
			return true
		}
	}

	return false
}
