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

package expr

import "github.com/liqd-js/mongodb-query-optimizer/go/bson"

// opKind is the closed set of operator shapes the walker understands. Every
// key of an expression document is classified into exactly one of them
// before it is walked.
type opKind int8

const (
	opUnsupported opKind = iota
	opPlainKey
	opArrayOperand
	opIgnored
	opLogical
	opExpr
	opIterate
	opMergeObjects
	opCond
	opAddToSet
	opArrayElemAt
	opFunction
	opSwitch
	opMath
	opDate
	opAccumulator
)

var operators = map[string]opKind{
	"$and": opLogical,
	"$or":  opLogical,
	"$nor": opLogical,

	"$exists":  opIgnored,
	"$literal": opIgnored,

	"$expr":         opExpr,
	"$map":          opIterate,
	"$filter":       opIterate,
	"$reduce":       opIterate,
	"$mergeObjects": opMergeObjects,
	"$cond":         opCond,
	"$addToSet":     opAddToSet,
	"$arrayElemAt":  opArrayElemAt,
	"$function":     opFunction,
	"$switch":       opSwitch,

	"$size":  opAccumulator,
	"$push":  opAccumulator,
	"$first": opAccumulator,
	"$last":  opAccumulator,
}

var mathOperators = []string{
	"$sum", "$subtract", "$multiply", "$divide", "$mod", "$abs", "$ceil",
	"$floor", "$ln", "$log", "$log10", "$pow", "$sqrt", "$trunc", "$exp",
	"$round",
	"$sin", "$cos", "$tan", "$asin", "$acos", "$atan", "$atan2", "$asinh",
	"$acosh", "$atanh", "$sinh", "$cosh", "$tanh", "$degreesToRadians",
	"$radiansToDegrees",
	"$avg", "$min", "$max",
	"$gt", "$gte", "$lt", "$lte", "$eq", "$ne",
}

var dateOperators = []string{
	"$dayOfYear", "$dayOfMonth", "$dayOfWeek", "$year", "$month", "$week",
	"$hour", "$minute", "$second", "$millisecond", "$dateToString",
}

func init() {
	for _, op := range mathOperators {
		operators[op] = opMath
	}
	for _, op := range dateOperators {
		operators[op] = opDate
	}
}

// classifyKey returns the shape of key. Keys that are not known operators
// fall back to the generic array and plain key rules; any other sigil key is
// unsupported.
func classifyKey(key string, value any) opKind {
	if kind, ok := operators[key]; ok {
		return kind
	}
	if _, ok := bson.AsArray(value); ok {
		if isFieldRef(key) {
			return opArrayOperand
		}
		return opPlainKey
	}
	if isFieldRef(key) {
		return opUnsupported
	}
	return opPlainKey
}
