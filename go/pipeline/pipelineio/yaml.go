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
	"time"

	"gopkg.in/yaml.v3"

	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
)

// DecodeYAML parses a YAML sequence of stages. Mapping key order is kept.
func DecodeYAML(data []byte) ([]bson.D, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, malformed("invalid YAML: %v", err)
	}
	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.SequenceNode {
		return nil, malformed("pipeline must be a YAML sequence")
	}
	v, err := yamlValue(node)
	if err != nil {
		return nil, err
	}
	return stages(v.(bson.A))
}

func yamlValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.SequenceNode:
		arr := make(bson.A, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := yamlValue(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.MappingNode:
		doc := make(bson.D, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := yamlValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			doc = append(doc, bson.E{Key: n.Content[i].Value, Value: v})
		}
		return extendedJSON(doc)
	case yaml.ScalarNode:
		return yamlScalar(n)
	}
	return nil, malformed("unsupported YAML node at line %d", n.Line)
}

func yamlScalar(n *yaml.Node) (any, error) {
	var err error
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		err = n.Decode(&b)
		return b, err
	case "!!int":
		var i int64
		err = n.Decode(&i)
		return i, err
	case "!!float":
		var f float64
		err = n.Decode(&f)
		return f, err
	case "!!timestamp":
		var t time.Time
		err = n.Decode(&t)
		return t.UTC(), err
	}
	return n.Value, nil
}
