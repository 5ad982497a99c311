// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package probes

import (
	"context"
	"path/filepath"

	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"
)

// varLogGlobs are the host log files worth bundling. Most hosts only have
// a subset; absence is normal (syslog vs messages differs by distro).
var varLogGlobs = []string{
	"messages*",
	"syslog*",
	"cloud-init.log*",
	"cloud-init-output.log*",
	"kube-proxy.log*",
}

// varLogDirs are log directories copied wholesale when present.
var varLogDirs = []string{
	"aws-routed-eni",
	"containers",
	"pods",
}

// varLogProbe copies the interesting host logs into the bundle.
// Unreadable files degrade the probe to partial; files that simply do not
// exist on this distro are not an error.
func varLogProbe(deps Deps) probe.Probe {
	return probe.Probe{
		Name:     "var-log",
		Category: probe.CategoryVarLog,
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			copied := 0
			failed := 0

			for _, pattern := range varLogGlobs {
				matches, err := filepath.Glob(filepath.Join(deps.VarLog, pattern))
				if err != nil {
					failed++
					continue
				}
				for _, src := range matches {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					if err := copyFile(src, dir); err != nil {
						failed++
						continue
					}
					copied++
				}
			}

			for _, sub := range varLogDirs {
				src := filepath.Join(deps.VarLog, sub)
				if !dirExists(src) {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err := copyTree(src, dir); err != nil {
					failed++
					continue
				}
				copied++
			}

			if failed > 0 {
				return probe.Partialf("copied %d log sources, %d unreadable", copied, failed)
			}
			return nil
		},
	}
}
