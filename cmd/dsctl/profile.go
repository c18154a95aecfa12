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
	"os"

	"gopkg.in/yaml.v2"

	"go.chromium.org/luci/common/errors"

	"go.chromium.org/dsaccess/impl/shell"
)

// profile is a YAML file with connection settings, e.g.
//
//	project: my-proj
//	database: staging
//	lookup_batch_size: 500
type profile struct {
	Project         string `yaml:"project"`
	Database        string `yaml:"database"`
	Emulator        string `yaml:"emulator"`
	LookupBatchSize int    `yaml:"lookup_batch_size"`
	ReadRetries     int    `yaml:"read_retries"`
}

func loadProfile(path string) (*profile, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "reading profile").Err()
	}
	p := &profile{}
	if err := yaml.UnmarshalStrict(blob, p); err != nil {
		return nil, errors.Annotate(err, "parsing profile %q", path).Err()
	}
	return p, nil
}

// apply fills the options not already set by flags or the environment.
func (p *profile) apply(o *shell.Options) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&o.ProjectID, p.Project)
	fill(&o.DatabaseID, p.Database)
	fill(&o.EmulatorHost, p.Emulator)
	if o.LookupBatchSize == 0 {
		o.LookupBatchSize = p.LookupBatchSize
	}
	if o.ReadRetries == 0 {
		o.ReadRetries = p.ReadRetries
	}
}
