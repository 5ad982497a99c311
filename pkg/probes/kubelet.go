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
	"os"
	"path/filepath"

	"github.com/awslabs/eks-log-collector/pkg/cmdexec"
	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// kubeletLogsProbe pulls the kubelet journal within the run's log window.
func kubeletLogsProbe() probe.Probe {
	return probe.Probe{
		Name:     "kubelet-logs",
		Category: probe.CategoryKubelet,
		Requires: &probe.Requirement{Init: []envinfo.InitKind{envinfo.InitSystemd}},
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			since := rc.StartedAt.Add(-rc.LogWindow).Format("2006-01-02 15:04:05")
			return cmdexec.RunToFile(ctx, filepath.Join(dir, "kubelet.log"),
				"journalctl", "-u", "kubelet", "--since", since, "--no-pager")
		},
	}
}

// kubeletNodeProbe queries the API server with the node's own kubelet
// credentials and records the node object and server version. Skipped on
// hosts that never joined a cluster.
func kubeletNodeProbe(deps Deps) probe.Probe {
	return probe.Probe{
		Name:     "kubelet-node",
		Category: probe.CategoryKubelet,
		Supported: func(ctx context.Context, rc *envinfo.RunContext) (bool, string) {
			if _, err := os.Stat(deps.Kubeconfig); err != nil {
				return false, fmt.Sprintf("kubeconfig not found at %s", deps.Kubeconfig)
			}
			return true, ""
		},
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			if err := copyFile(deps.Kubeconfig, dir); err != nil {
				return fmt.Errorf("failed to copy kubeconfig: %w", err)
			}

			cs, err := deps.NewK8sClient()
			if err != nil {
				return fmt.Errorf("failed to build kubernetes client: %w", err)
			}

			ver, err := cs.Discovery().ServerVersion()
			if err != nil {
				return probe.Partialf("api server unreachable: %v", err)
			}
			if err := writeFile(dir, "server-version.txt", []byte(ver.String()+"\n")); err != nil {
				return err
			}

			hostname, err := os.Hostname()
			if err != nil {
				return probe.Partialf("server version captured, hostname lookup failed: %v", err)
			}
			node, err := cs.CoreV1().Nodes().Get(ctx, hostname, metav1.GetOptions{})
			if err != nil {
				return probe.Partialf("server version captured, node %s not fetched: %v", hostname, err)
			}

			data, err := yaml.Marshal(node)
			if err != nil {
				return err
			}
			return writeFile(dir, "node.yaml", data)
		},
	}
}
