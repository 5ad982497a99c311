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

	"github.com/awslabs/eks-log-collector/pkg/cmdexec"
	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"
)

// storageCaptures maps artifact names to the commands producing them.
// LVM tools are frequently absent; those sub-steps degrade to partial.
var storageCaptures = []struct {
	file     string
	cmd      string
	args     []string
	optional bool
}{
	{"mounts.txt", "mount", nil, false},
	{"df.txt", "df", []string{"-h"}, false},
	{"lsblk.txt", "lsblk", nil, true},
	{"lvs.txt", "lvs", nil, true},
	{"pvs.txt", "pvs", nil, true},
	{"vgs.txt", "vgs", nil, true},
}

// storageProbe captures the mount table, filesystem usage, and block
// device layout.
func storageProbe() probe.Probe {
	return probe.Probe{
		Name:     "storage",
		Category: probe.CategoryStorage,
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			missed := 0
			for _, capture := range storageCaptures {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if capture.optional && !cmdexec.Available(capture.cmd) {
					continue
				}
				err := cmdexec.RunToFile(ctx, filepath.Join(dir, capture.file), capture.cmd, capture.args...)
				if err != nil {
					if !capture.optional {
						return err
					}
					missed++
				}
			}
			if missed > 0 {
				return probe.Partialf("%d optional storage captures failed", missed)
			}
			return nil
		},
	}
}
