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
	"io"
	"net/http"

	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"
)

// ipamdEndpoints are the introspection documents the node IP address
// manager exposes on its local diagnostics port.
var ipamdEndpoints = []struct {
	file string
	path string
}{
	{"enis.json", "/v1/enis"},
	{"pods.json", "/v1/pods"},
	{"networkutils-env-settings.json", "/v1/networkutils-env-settings"},
	{"ipamd-env-settings.json", "/v1/ipamd-env-settings"},
	{"eni-configs.json", "/v1/eni-configs"},
}

// maxAgentBody caps local agent responses; the pod document can be large
// but anything past this is a misbehaving agent.
const maxAgentBody = 32 << 20

// ipamdProbe snapshots the IP address manager's introspection endpoints
// and its prometheus metrics. Skipped when the agent is not listening,
// which is normal on nodes running other CNI plugins.
func ipamdProbe(deps Deps) probe.Probe {
	return probe.Probe{
		Name:     "ipamd",
		Category: probe.CategoryIpamd,
		Supported: func(ctx context.Context, rc *envinfo.RunContext) (bool, string) {
			_, err := fetchAgent(ctx, deps.HTTPClient, deps.IpamdBase+"/v1/enis")
			if err != nil {
				return false, fmt.Sprintf("ipamd introspection unreachable: %v", err)
			}
			return true, ""
		},
		Run: func(ctx context.Context, rc *envinfo.RunContext, dir string) error {
			failed := 0
			for _, ep := range ipamdEndpoints {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				body, err := fetchAgent(ctx, deps.HTTPClient, deps.IpamdBase+ep.path)
				if err != nil {
					failed++
					continue
				}
				if err := writeFile(dir, ep.file, body); err != nil {
					return err
				}
			}

			body, err := fetchAgent(ctx, deps.HTTPClient, deps.IpamdMetricsBase+"/metrics")
			if err != nil {
				failed++
			} else if err := writeFile(dir, "metrics.txt", body); err != nil {
				return err
			}

			if failed > 0 {
				return probe.Partialf("%d ipamd endpoints unavailable", failed)
			}
			return nil
		},
	}
}

// fetchAgent performs one bounded GET against a local agent endpoint.
func fetchAgent(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxAgentBody))
}
