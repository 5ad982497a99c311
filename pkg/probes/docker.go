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
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/awslabs/eks-log-collector/pkg/cmdexec"
	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"

	"github.com/docker/docker/api/types/container"
	"golang.org/x/time/rate"
)

// inspectRate paces container inspection so the slow probe cannot hammer
// a degraded daemon; the whole probe is still bounded by its timeout.
const inspectRate = rate.Limit(20)

// dockerSupported probes the daemon socket once and caches nothing; each
// runtime probe re-checks because the daemon may die mid-run.
func dockerSupported(deps Deps) func(ctx context.Context, rc *envinfo.RunContext) (bool, string) {
	return func(ctx context.Context, rc *envinfo.RunContext) (bool, string) {
		cli, err := deps.NewDocker()
		if err != nil {
			return false, fmt.Sprintf("docker client unavailable: %v", err)
		}
		if _, err := cli.Ping(ctx); err != nil {
			return false, fmt.Sprintf("docker daemon unreachable: %v", err)
		}
		return true, ""
	}
}

// dockerInfoProbe captures daemon configuration and the container table.
func dockerInfoProbe(deps Deps) probe.Probe {
	return probe.Probe{
		Name:      "docker-info",
		Category:  probe.CategoryDocker,
		Supported: dockerSupported(deps),
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			cli, err := deps.NewDocker()
			if err != nil {
				return fmt.Errorf("failed to create docker client: %w", err)
			}

			info, err := cli.Info(ctx)
			if err != nil {
				return fmt.Errorf("failed to query docker info: %w", err)
			}
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			if err := writeFile(dir, "docker-info.json", data); err != nil {
				return err
			}

			containers, err := cli.ContainerList(ctx, container.ListOptions{All: true})
			if err != nil {
				return probe.Partialf("daemon info captured, container list failed: %v", err)
			}
			data, err = json.MarshalIndent(containers, "", "  ")
			if err != nil {
				return err
			}
			return writeFile(dir, "docker-ps.json", data)
		},
	}
}

// dockerLogsProbe pulls the runtime daemon journals. Only meaningful under
// systemd, where the journal exists.
func dockerLogsProbe() probe.Probe {
	return probe.Probe{
		Name:     "docker-logs",
		Category: probe.CategoryDocker,
		Requires: &probe.Requirement{Init: []envinfo.InitKind{envinfo.InitSystemd}},
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			since := rc.StartedAt.Add(-rc.LogWindow).Format("2006-01-02 15:04:05")

			err := cmdexec.RunToFile(ctx, filepath.Join(dir, "docker.log"),
				"journalctl", "-u", "docker", "--since", since, "--no-pager")
			if err != nil {
				return err
			}
			err = cmdexec.RunToFile(ctx, filepath.Join(dir, "containerd.log"),
				"journalctl", "-u", "containerd", "--since", since, "--no-pager")
			if err != nil {
				return probe.Partialf("containerd journal unavailable: %v", err)
			}
			return nil
		},
	}
}

// dockerInspectProbe dumps the full inspect document for every container,
// running or not. This is the slowest probe in the set and always runs
// last; inspection is rate-limited and the registry caps it at 75s.
func dockerInspectProbe(deps Deps) probe.Probe {
	return probe.Probe{
		Name:      "docker-inspect",
		Category:  probe.CategoryDocker,
		Timeout:   inspectTimeout,
		Supported: dockerSupported(deps),
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			cli, err := deps.NewDocker()
			if err != nil {
				return fmt.Errorf("failed to create docker client: %w", err)
			}

			containers, err := cli.ContainerList(ctx, container.ListOptions{All: true})
			if err != nil {
				return fmt.Errorf("failed to list containers: %w", err)
			}

			limiter := rate.NewLimiter(inspectRate, 1)
			inspected := make([]container.InspectResponse, 0, len(containers))
			failed := 0
			for _, c := range containers {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
				detail, err := cli.ContainerInspect(ctx, c.ID)
				if err != nil {
					failed++
					continue
				}
				inspected = append(inspected, detail)
			}

			data, err := json.MarshalIndent(inspected, "", "  ")
			if err != nil {
				return err
			}
			if err := writeFile(dir, "docker-inspect.json", data); err != nil {
				return err
			}

			if failed > 0 {
				return probe.Partialf("inspected %d containers, %d failed", len(inspected), failed)
			}
			return nil
		},
	}
}
