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
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/awslabs/eks-log-collector/pkg/cmdexec"
	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
)

// servicesSystemdProbe dumps the systemd unit table over the manager's
// D-Bus API instead of shelling out to systemctl.
func servicesSystemdProbe() probe.Probe {
	return probe.Probe{
		Name:     "services-systemd",
		Category: probe.CategorySystem,
		Requires: &probe.Requirement{Init: []envinfo.InitKind{envinfo.InitSystemd}},
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			conn, err := sddbus.NewWithContext(ctx)
			if err != nil {
				return fmt.Errorf("failed to connect to systemd: %w", err)
			}
			defer conn.Close()

			units, err := conn.ListUnitsContext(ctx)
			if err != nil {
				return fmt.Errorf("failed to list units: %w", err)
			}

			lines := make([]string, 0, len(units))
			for _, u := range units {
				lines = append(lines, fmt.Sprintf("%s\t%s\t%s\t%s\t%s",
					u.Name, u.LoadState, u.ActiveState, u.SubState, u.Description))
			}
			sort.Strings(lines)

			return writeFile(dir, "services.txt", []byte(strings.Join(lines, "\n")+"\n"))
		},
	}
}

// servicesUpstartProbe lists jobs on upstart and other non-systemd hosts.
func servicesUpstartProbe() probe.Probe {
	return probe.Probe{
		Name:     "services-upstart",
		Category: probe.CategorySystem,
		Requires: &probe.Requirement{Init: []envinfo.InitKind{envinfo.InitOther}},
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			return cmdexec.RunToFile(ctx, filepath.Join(dir, "services.txt"), "initctl", "list")
		},
	}
}
