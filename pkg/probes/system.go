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
	"os"
	"path/filepath"

	"github.com/awslabs/eks-log-collector/pkg/cmdexec"
	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"
)

const osReleasePath = "/etc/os-release"

// systemProbe captures the cheap universal host facts: instance identity,
// hostname, OS release, and the process list.
func systemProbe() probe.Probe {
	return probe.Probe{
		Name:     "system",
		Category: probe.CategorySystem,
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			failures := 0

			if err := writeFile(dir, "instance-id.txt", []byte(rc.InstanceID+"\n")); err != nil {
				return err
			}

			hostname, err := os.Hostname()
			if err == nil {
				if err := writeFile(dir, "hostname.txt", []byte(hostname+"\n")); err != nil {
					return err
				}
			} else {
				failures++
			}

			if err := copyFile(osReleasePath, dir); err != nil {
				failures++
			}

			if err := cmdexec.RunToFile(ctx, filepath.Join(dir, "ps.txt"), "ps", "auxww"); err != nil {
				return err
			}

			if failures > 0 {
				return probe.Partialf("%d system facts unavailable", failures)
			}
			return nil
		},
	}
}
