// Copyright 2026 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"go.chromium.org/luci/common/errors"

	"go.chromium.org/dsaccess/service/datastore"
)

// parseKey parses `Parent:name/Child:123`. The last element may omit its id
// to make an incomplete key. Names that look like numbers or contain ':' or
// '/' are written Go-quoted: `Book:"42"`.
func parseKey(s string) (*datastore.Key, error) {
	if s == "" {
		return nil, errors.New("empty key")
	}
	var key *datastore.Key
	rest := s
	for rest != "" {
		if key != nil && key.IsIncomplete() {
			return nil, errors.Reason("key %q: only the last element may be incomplete", s).Err()
		}
		kind := rest
		if i := strings.IndexAny(rest, ":/"); i >= 0 {
			kind, rest = rest[:i], rest[i:]
		} else {
			rest = ""
		}
		if kind == "" {
			return nil, errors.Reason("key %q: empty kind", s).Err()
		}

		el := datastore.NewKey(kind)
		if strings.HasPrefix(rest, ":") {
			rest = rest[1:]
			var id string
			if strings.HasPrefix(rest, `"`) {
				q, err := strconv.QuotedPrefix(rest)
				if err != nil {
					return nil, errors.Annotate(err, "key %q: bad quoted name", s).Err()
				}
				rest = rest[len(q):]
				name, _ := strconv.Unquote(q)
				el = el.WithName(name)
			} else {
				id, rest, _ = strings.Cut(rest, "/")
				rest = "/" + rest
				if n, err := strconv.ParseInt(id, 10, 64); err == nil {
					el = el.WithID(n)
				} else {
					el = el.WithName(id)
				}
			}
		}
		switch {
		case rest == "" || rest == "/":
			rest = ""
		case rest[0] == '/':
			rest = rest[1:]
		default:
			return nil, errors.Reason("key %q: unexpected %q", s, rest).Err()
		}
		key = el.WithParent(key)
	}
	return key, nil
}

// formatKey is the inverse of parseKey.
func formatKey(k *datastore.Key) string {
	sb := strings.Builder{}
	for i, el := range k.Path() {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(el.Kind())
		switch el.Variant() {
		case datastore.Named:
			sb.WriteByte(':')
			sb.WriteString(formatName(el.Name()))
		case datastore.Numeric:
			fmt.Fprintf(&sb, ":%d", el.ID())
		}
	}
	return sb.String()
}

func formatName(name string) string {
	if _, err := strconv.ParseInt(name, 10, 64); err == nil || name == "" || strings.ContainsAny(name, `:/"`) {
		return strconv.Quote(name)
	}
	return name
}

// parseValue decodes a property value written in YAML. Strings of the form
// `key(...)` are keys in parseKey syntax.
func parseValue(s string) (datastore.Value, error) {
	var raw any
	if err := yaml.Unmarshal([]byte(s), &raw); err != nil {
		return datastore.Value{}, errors.Annotate(err, "bad value %q", s).Err()
	}
	return toValue(raw)
}

func toValue(raw any) (datastore.Value, error) {
	switch v := raw.(type) {
	case nil:
		return datastore.Null(), nil
	case bool:
		return datastore.Bool(v), nil
	case int:
		return datastore.Int(int64(v)), nil
	case int64:
		return datastore.Int(v), nil
	case float64:
		return datastore.Float(v), nil
	case string:
		if strings.HasPrefix(v, "key(") && strings.HasSuffix(v, ")") {
			k, err := parseKey(v[len("key(") : len(v)-1])
			if err != nil {
				return datastore.Value{}, err
			}
			return datastore.KeyValue(k), nil
		}
		return datastore.String(v), nil
	case []any:
		els := make([]datastore.Value, len(v))
		for i, el := range v {
			var err error
			if els[i], err = toValue(el); err != nil {
				return datastore.Value{}, err
			}
		}
		return datastore.Array(els...), nil
	}
	return datastore.Value{}, errors.Reason("unsupported value of type %T", raw).Err()
}

// fromValue is the inverse of toValue, for rendering.
func fromValue(v datastore.Value) any {
	switch v.Type() {
	case datastore.NullType:
		return nil
	case datastore.IntegerType:
		i, _ := v.AsInt()
		return i
	case datastore.BooleanType:
		b, _ := v.AsBool()
		return b
	case datastore.StringType:
		s, _ := v.AsString()
		return s
	case datastore.FloatType:
		f, _ := v.AsFloat()
		return f
	case datastore.KeyType:
		k, _ := v.AsKey()
		return "key(" + formatKey(k) + ")"
	case datastore.ArrayType:
		els, _ := v.AsArray()
		ret := make([]any, len(els))
		for i, el := range els {
			ret[i] = fromValue(el)
		}
		return ret
	}
	return v.String()
}

// parseProperty parses `name=value`.
func parseProperty(s string) (string, datastore.Value, error) {
	name, val, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", datastore.Value{}, errors.Reason("property %q is not name=value", s).Err()
	}
	v, err := parseValue(val)
	return name, v, err
}

var filterOps = []struct {
	token string
	make  func(string, datastore.Value) *datastore.Filter
}{
	// Two character operators first.
	{">=", datastore.Gte},
	{"<=", datastore.Lte},
	{"!=", datastore.Ne},
	{"=", datastore.Eq},
	{"<", datastore.Lt},
	{">", datastore.Gt},
}

// parseFilter parses `name<op>value`, e.g. `pages>=100`.
func parseFilter(s string) (*datastore.Filter, error) {
	for _, op := range filterOps {
		if i := strings.Index(s, op.token); i > 0 {
			name := strings.TrimSpace(s[:i])
			v, err := parseValue(strings.TrimSpace(s[i+len(op.token):]))
			if err != nil {
				return nil, err
			}
			return op.make(name, v), nil
		}
	}
	return nil, errors.Reason("filter %q has no operator", s).Err()
}

// parseOrder parses `name` or `-name` for a descending order.
func parseOrder(s string) datastore.PropertyOrder {
	if name, ok := strings.CutPrefix(s, "-"); ok {
		return datastore.Desc(name)
	}
	return datastore.Asc(s)
}

// entityDoc renders an entity as an ordered YAML mapping.
func entityDoc(e *datastore.Entity) yaml.MapSlice {
	props := yaml.MapSlice{}
	var unindexed []string
	for _, name := range e.Names() {
		v, _ := e.Value(name)
		props = append(props, yaml.MapItem{Key: name, Value: fromValue(v)})
		if !e.IsIndexed(name) {
			unindexed = append(unindexed, name)
		}
	}
	doc := yaml.MapSlice{{Key: "key", Value: formatKey(e.Key())}}
	if len(props) > 0 {
		doc = append(doc, yaml.MapItem{Key: "properties", Value: props})
	}
	if len(unindexed) > 0 {
		doc = append(doc, yaml.MapItem{Key: "unindexed", Value: unindexed})
	}
	return doc
}
