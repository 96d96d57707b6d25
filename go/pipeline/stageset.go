/*
Copyright 2026 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package pipeline

import (
	"fmt"
	"math/bits"
	"unsafe"
)

// StageSet is an immutable set of stage IDs stored as a bitset. Every
// operation that changes the set returns a new one, so a StageSet can be
// compared with == and used as a map key.
type StageSet string

const wordBits = 8

func toStageSet(words []byte) StageSet {
	for len(words) > 0 && words[len(words)-1] == 0 {
		words = words[:len(words)-1]
	}
	if len(words) == 0 {
		return ""
	}
	// words is never written to after this point.
	return StageSet(unsafe.String(&words[0], len(words)))
}

// StageSetOf builds a set holding the given IDs.
func StageSetOf(ids ...int) StageSet {
	if len(ids) == 0 {
		return ""
	}
	highest := 0
	for _, id := range ids {
		highest = max(highest, id)
	}
	words := make([]byte, highest/wordBits+1)
	for _, id := range ids {
		words[id/wordBits] |= 1 << (id % wordBits)
	}
	return toStageSet(words)
}

// Has reports whether id is in the set.
func (ss StageSet) Has(id int) bool {
	w := id / wordBits
	return id >= 0 && w < len(ss) && ss[w]&(1<<(id%wordBits)) != 0
}

// With returns a copy of the set with id added.
func (ss StageSet) With(id int) StageSet {
	if ss.Has(id) {
		return ss
	}
	words := make([]byte, max(len(ss), id/wordBits+1))
	copy(words, ss)
	words[id/wordBits] |= 1 << (id % wordBits)
	return toStageSet(words)
}

// Without returns a copy of the set with id removed.
func (ss StageSet) Without(id int) StageSet {
	if !ss.Has(id) {
		return ss
	}
	words := []byte(ss)
	words[id/wordBits] &^= 1 << (id % wordBits)
	return toStageSet(words)
}

// Union returns the IDs present in either set.
func (ss StageSet) Union(other StageSet) StageSet {
	if len(ss) < len(other) {
		ss, other = other, ss
	}
	if len(other) == 0 {
		return ss
	}
	words := []byte(ss)
	for i := 0; i < len(other); i++ {
		words[i] |= other[i]
	}
	return toStageSet(words)
}

// Len returns the number of IDs in the set.
func (ss StageSet) Len() (n int) {
	for i := 0; i < len(ss); i++ {
		n += bits.OnesCount8(ss[i])
	}
	return n
}

// IsEmpty reports whether the set has no IDs.
func (ss StageSet) IsEmpty() bool {
	return len(ss) == 0
}

// ForEach calls fn for every ID in ascending order.
func (ss StageSet) ForEach(fn func(id int)) {
	for i := 0; i < len(ss); i++ {
		word := ss[i]
		for word != 0 {
			fn(i*wordBits + bits.TrailingZeros8(word))
			word &= word - 1
		}
	}
}

// IDs returns the IDs in ascending order.
func (ss StageSet) IDs() []int {
	ids := make([]int, 0, ss.Len())
	ss.ForEach(func(id int) {
		ids = append(ids, id)
	})
	return ids
}

// Format formats the StageSet.
func (ss StageSet) Format(f fmt.State, _ rune) {
	fmt.Fprint(f, "StageSet{")
	for i, id := range ss.IDs() {
		if i > 0 {
			fmt.Fprint(f, ",")
		}
		fmt.Fprintf(f, "%d", id)
	}
	fmt.Fprint(f, "}")
}
