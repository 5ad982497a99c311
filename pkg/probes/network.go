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

// iptablesProbe captures the packet-filter state. Separate from the
// general networking probe because iptables requires root and its absence
// is a fatal preflight condition, not a probe-level skip.
func iptablesProbe() probe.Probe {
	return probe.Probe{
		Name:     "iptables",
		Category: probe.CategoryNetworking,
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			if err := cmdexec.RunToFile(ctx, filepath.Join(dir, "iptables.txt"), "iptables", "-nvL"); err != nil {
				return err
			}
			if err := cmdexec.RunToFile(ctx, filepath.Join(dir, "iptables-save.txt"), "iptables-save"); err != nil {
				return probe.Partialf("iptables-save unavailable: %v", err)
			}
			return nil
		},
	}
}

// networkingProbe captures interface, route, and resolver state plus the
// listening socket table.
func networkingProbe(deps Deps) probe.Probe {
	captures := []struct {
		file string
		args []string
	}{
		{"ip-addr.txt", []string{"addr", "show"}},
		{"ip-route.txt", []string{"route", "show", "table", "all"}},
		{"ip-rule.txt", []string{"rule", "show"}},
		{"ip-link.txt", []string{"-s", "link", "show"}},
	}

	return probe.Probe{
		Name:     "networking",
		Category: probe.CategoryNetworking,
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			for _, capture := range captures {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err := cmdexec.RunToFile(ctx, filepath.Join(dir, capture.file), "ip", capture.args...); err != nil {
					return err
				}
			}

			missed := 0
			if cmdexec.Available("ss") {
				if err := cmdexec.RunToFile(ctx, filepath.Join(dir, "sockets.txt"), "ss", "-tunap"); err != nil {
					missed++
				}
			}
			if err := copyFile(deps.ResolvConf, dir); err != nil {
				missed++
			}

			if missed > 0 {
				return probe.Partialf("%d networking captures unavailable", missed)
			}
			return nil
		},
	}
}
