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

package pipelineio

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
)

// DecodeJSON parses a JSON array of stages. Object key order is kept.
// Integer literals become int64 and other numbers float64. The extended
// JSON forms {"$oid": ...} and {"$date": ...} are turned into object ids and
// dates.
func DecodeJSON(data []byte) ([]bson.D, error) {
	if !gjson.ValidBytes(data) {
		return nil, malformed("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, malformed("pipeline must be a JSON array")
	}
	var items []any
	var err error
	root.ForEach(func(_, value gjson.Result) bool {
		var v any
		v, err = jsonValue(value)
		items = append(items, v)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return stages(items)
}

func jsonValue(r gjson.Result) (any, error) {
	switch r.Type {
	case gjson.Null:
		return nil, nil
	case gjson.True:
		return true, nil
	case gjson.False:
		return false, nil
	case gjson.String:
		return r.Str, nil
	case gjson.Number:
		return jsonNumber(r)
	}

	if r.IsArray() {
		arr := bson.A{}
		var err error
		r.ForEach(func(_, item gjson.Result) bool {
			var v any
			v, err = jsonValue(item)
			arr = append(arr, v)
			return err == nil
		})
		return arr, err
	}

	doc := bson.D{}
	var err error
	r.ForEach(func(key, item gjson.Result) bool {
		var v any
		v, err = jsonValue(item)
		doc = append(doc, bson.E{Key: key.Str, Value: v})
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return extendedJSON(doc)
}

func jsonNumber(r gjson.Result) (any, error) {
	if !strings.ContainsAny(r.Raw, ".eE") {
		if n, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
			return n, nil
		}
	}
	return r.Num, nil
}

// extendedJSON converts single key {"$oid": hex} and {"$date": ...}
// documents. Other documents are returned as they are.
func extendedJSON(doc bson.D) (any, error) {
	if len(doc) != 1 {
		return doc, nil
	}
	switch doc[0].Key {
	case "$oid":
		s, ok := doc[0].Value.(string)
		if !ok {
			return nil, malformed("$oid must be a string")
		}
		b, err := hex.DecodeString(s)
		if err != nil || len(b) != len(bson.ObjectID{}) {
			return nil, malformed("invalid object id %q", s)
		}
		var id bson.ObjectID
		copy(id[:], b)
		return id, nil
	case "$date":
		switch v := doc[0].Value.(type) {
		case string:
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, malformed("invalid date %q", v)
			}
			return t.UTC(), nil
		case int64:
			return time.UnixMilli(v).UTC(), nil
		}
		return nil, malformed("$date must be a string or milliseconds since the epoch")
	}
	return doc, nil
}
