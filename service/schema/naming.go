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

package schema

import (
	"strings"

	"github.com/iancoleman/strcase"
)

// RenameRule turns a Go field name into a property name.
type RenameRule func(string) string

// DefaultRenameRule is the rule of structs without a `$rename` meta field.
const DefaultRenameRule = "camelCase"

var renameRules = map[string]RenameRule{
	"camelCase":            strcase.ToLowerCamel,
	"PascalCase":           strcase.ToCamel,
	"snake_case":           strcase.ToSnake,
	"SCREAMING_SNAKE_CASE": strcase.ToScreamingSnake,
	"kebab-case":           strcase.ToKebab,
	"lowercase":            strings.ToLower,
	"UPPERCASE":            strings.ToUpper,
	"none":                 func(s string) string { return s },
}

// LookupRenameRule returns the rule with the given name.
func LookupRenameRule(name string) (RenameRule, bool) {
	r, ok := renameRules[name]
	return r, ok
}
