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
	"encoding/json"
	"strings"

	"github.com/emirpasic/gods/sets/linkedhashset"
)

// FieldSet is an insertion ordered set of dot separated field paths.
type FieldSet struct {
	set *linkedhashset.Set
}

// NewFieldSet returns a set holding the given fields.
func NewFieldSet(fields ...string) *FieldSet {
	fs := &FieldSet{set: linkedhashset.New()}
	fs.Add(fields...)
	return fs
}

// Add inserts fields that are not in the set yet.
func (fs *FieldSet) Add(fields ...string) {
	for _, f := range fields {
		fs.set.Add(f)
	}
}

// AddAll inserts every field of other.
func (fs *FieldSet) AddAll(other *FieldSet) {
	if other == nil {
		return
	}
	fs.Add(other.Values()...)
}

// Contains reports whether field is in the set.
func (fs *FieldSet) Contains(field string) bool {
	return fs != nil && fs.set.Contains(field)
}

// Len returns the number of fields.
func (fs *FieldSet) Len() int {
	if fs == nil {
		return 0
	}
	return fs.set.Size()
}

// Values returns the fields in insertion order.
func (fs *FieldSet) Values() []string {
	if fs == nil {
		return nil
	}
	values := make([]string, 0, fs.set.Size())
	for _, v := range fs.set.Values() {
		values = append(values, v.(string))
	}
	return values
}

// Filter returns a new set with the fields for which keep returns true.
func (fs *FieldSet) Filter(keep func(string) bool) *FieldSet {
	out := NewFieldSet()
	for _, f := range fs.Values() {
		if keep(f) {
			out.Add(f)
		}
	}
	return out
}

// Collides reports whether any field of fs collides with any field of other.
func (fs *FieldSet) Collides(other *FieldSet) bool {
	if fs.Len() == 0 || other.Len() == 0 {
		return false
	}
	heads := make(map[string]struct{}, fs.Len())
	for _, f := range fs.Values() {
		heads[FirstSegment(f)] = struct{}{}
	}
	for _, f := range other.Values() {
		if _, ok := heads[FirstSegment(f)]; ok {
			return true
		}
	}
	return false
}

func (fs *FieldSet) String() string {
	return "[" + strings.Join(fs.Values(), ", ") + "]"
}

// MarshalJSON encodes the set as an array in insertion order.
func (fs *FieldSet) MarshalJSON() ([]byte, error) {
	values := fs.Values()
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

// FirstSegment returns the part of a field path before the first dot.
func FirstSegment(field string) string {
	if i := strings.IndexByte(field, '.'); i >= 0 {
		return field[:i]
	}
	return field
}

// Collide reports whether two field paths are equal or share their first
// segment. "user.name" and "user.email" collide; "user" and "username" do not.
func Collide(a, b string) bool {
	return a == b || FirstSegment(a) == FirstSegment(b)
}
