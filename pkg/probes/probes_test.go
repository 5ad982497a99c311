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
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/probe"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	k8sfake "k8s.io/client-go/kubernetes/fake"
)

func testRunContext() *envinfo.RunContext {
	return &envinfo.RunContext{
		RunID:      "test-run",
		InitKind:   envinfo.InitSystemd,
		PkgKind:    envinfo.PkgRpm,
		InstanceID: "i-0abc",
		StartedAt:  time.Now(),
		LogWindow:  envinfo.DefaultLogWindow,
	}
}

func TestBuildRegistry(t *testing.T) {
	t.Parallel()

	set := BuildRegistry(DefaultDeps()).ForMode(probe.ModeCollect)
	require.NotEmpty(t, set)

	// The slow full inspection must be the final probe.
	assert.Equal(t, "docker-inspect", set[len(set)-1].Name)
	assert.Equal(t, inspectTimeout, set[len(set)-1].Timeout)

	seen := make(map[string]bool, len(set))
	for _, p := range set {
		assert.False(t, seen[p.Name], "duplicate probe %s", p.Name)
		seen[p.Name] = true
		assert.Contains(t, probe.Categories(), p.Category, "probe %s", p.Name)
	}
	assert.True(t, seen["system"])
	assert.True(t, seen["ipamd"])
	assert.True(t, seen["kubelet-node"])
}

func TestSysctlProbe(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "net", "ipv4"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "net", "ipv4", "ip_forward"), []byte("1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "kernel.panic"), []byte("0\n"), 0o644))

	dir := t.TempDir()
	p := sysctlProbe(Deps{SysctlRoot: root})
	require.NoError(t, p.Run(context.Background(), testRunContext(), dir))

	data, err := os.ReadFile(filepath.Join(dir, "sysctls.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "net.ipv4.ip_forward = 1")
	assert.Contains(t, string(data), "kernel.panic = 0")
}

func TestVarLogProbe(t *testing.T) {
	t.Parallel()

	varLog := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(varLog, "messages"), []byte("boot\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(varLog, "containers"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(varLog, "containers", "app.log"), []byte("hi\n"), 0o644))

	dir := t.TempDir()
	p := varLogProbe(Deps{VarLog: varLog})
	require.NoError(t, p.Run(context.Background(), testRunContext(), dir))

	assert.FileExists(t, filepath.Join(dir, "messages"))
	assert.FileExists(t, filepath.Join(dir, "containers", "app.log"))
}

func TestIpamdProbe(t *testing.T) {
	t.Parallel()

	intro := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/eni-configs" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer intro.Close()

	metrics := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("awscni_total 1\n"))
	}))
	defer metrics.Close()

	deps := Deps{
		HTTPClient:       intro.Client(),
		IpamdBase:        intro.URL,
		IpamdMetricsBase: metrics.URL,
	}
	p := ipamdProbe(deps)

	ok, _ := p.Supported(context.Background(), testRunContext())
	require.True(t, ok)

	dir := t.TempDir()
	err := p.Run(context.Background(), testRunContext(), dir)
	require.Error(t, err)
	assert.True(t, probe.IsPartial(err))

	assert.FileExists(t, filepath.Join(dir, "enis.json"))
	assert.FileExists(t, filepath.Join(dir, "pods.json"))
	assert.FileExists(t, filepath.Join(dir, "metrics.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "eni-configs.json"))
}

func TestIpamdProbeNotListening(t *testing.T) {
	t.Parallel()

	deps := Deps{
		HTTPClient: &http.Client{Timeout: 100 * time.Millisecond},
		IpamdBase:  "http://127.0.0.1:1",
	}
	ok, reason := ipamdProbe(deps).Supported(context.Background(), testRunContext())
	assert.False(t, ok)
	assert.Contains(t, reason, "unreachable")
}

type fakeDocker struct {
	pingErr    error
	containers []container.Summary
	inspectErr map[string]error
}

func (f *fakeDocker) Ping(ctx context.Context) (types.Ping, error) {
	return types.Ping{APIVersion: "1.44"}, f.pingErr
}

func (f *fakeDocker) Info(ctx context.Context) (system.Info, error) {
	return system.Info{ID: "test-daemon", Containers: len(f.containers)}, nil
}

func (f *fakeDocker) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	return f.containers, nil
}

func (f *fakeDocker) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	if err := f.inspectErr[containerID]; err != nil {
		return container.InspectResponse{}, err
	}
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{ID: containerID},
	}, nil
}

func dockerDeps(fake *fakeDocker) Deps {
	return Deps{NewDocker: func() (DockerAPI, error) { return fake, nil }}
}

func TestDockerInfoProbe(t *testing.T) {
	t.Parallel()

	fake := &fakeDocker{containers: []container.Summary{{ID: "c1"}}}
	p := dockerInfoProbe(dockerDeps(fake))

	ok, _ := p.Supported(context.Background(), testRunContext())
	require.True(t, ok)

	dir := t.TempDir()
	require.NoError(t, p.Run(context.Background(), testRunContext(), dir))
	assert.FileExists(t, filepath.Join(dir, "docker-info.json"))
	assert.FileExists(t, filepath.Join(dir, "docker-ps.json"))
}

func TestDockerSupportedDaemonDown(t *testing.T) {
	t.Parallel()

	fake := &fakeDocker{pingErr: errors.New("connection refused")}
	ok, reason := dockerInfoProbe(dockerDeps(fake)).Supported(context.Background(), testRunContext())
	assert.False(t, ok)
	assert.Contains(t, reason, "unreachable")
}

func TestDockerInspectProbe(t *testing.T) {
	t.Parallel()

	fake := &fakeDocker{
		containers: []container.Summary{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}},
		inspectErr: map[string]error{"c2": errors.New("gone")},
	}
	p := dockerInspectProbe(dockerDeps(fake))

	dir := t.TempDir()
	err := p.Run(context.Background(), testRunContext(), dir)
	require.Error(t, err)
	assert.True(t, probe.IsPartial(err))

	data, err := os.ReadFile(filepath.Join(dir, "docker-inspect.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "c1")
	assert.Contains(t, string(data), "c3")
	assert.NotContains(t, string(data), `"c2"`)
}

func TestKubeletNodeProbe(t *testing.T) {
	t.Parallel()

	kubeconfig := filepath.Join(t.TempDir(), "kubeconfig")
	require.NoError(t, os.WriteFile(kubeconfig, []byte("apiVersion: v1\nkind: Config\n"), 0o600))

	hostname, err := os.Hostname()
	require.NoError(t, err)

	cs := k8sfake.NewSimpleClientset(&corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: hostname},
	})
	deps := Deps{
		Kubeconfig:   kubeconfig,
		NewK8sClient: func() (kubernetes.Interface, error) { return cs, nil },
	}
	p := kubeletNodeProbe(deps)

	ok, _ := p.Supported(context.Background(), testRunContext())
	require.True(t, ok)

	dir := t.TempDir()
	require.NoError(t, p.Run(context.Background(), testRunContext(), dir))
	assert.FileExists(t, filepath.Join(dir, "kubeconfig"))
	assert.FileExists(t, filepath.Join(dir, "server-version.txt"))

	node, err := os.ReadFile(filepath.Join(dir, "node.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(node), hostname)
}

func TestKubeletNodeProbeNoKubeconfig(t *testing.T) {
	t.Parallel()

	p := kubeletNodeProbe(Deps{Kubeconfig: filepath.Join(t.TempDir(), "missing")})
	ok, reason := p.Supported(context.Background(), testRunContext())
	assert.False(t, ok)
	assert.Contains(t, reason, "not found")
}

func TestCNIConfigProbe(t *testing.T) {
	t.Parallel()

	confDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(confDir, "10-aws.conflist"), []byte(`{"name":"aws-cni"}`), 0o644))

	p := cniConfigProbe(Deps{CNIConfDir: confDir})
	ok, _ := p.Supported(context.Background(), testRunContext())
	require.True(t, ok)

	dir := t.TempDir()
	require.NoError(t, p.Run(context.Background(), testRunContext(), dir))
	assert.FileExists(t, filepath.Join(dir, filepath.Base(confDir), "10-aws.conflist"))

	ok, reason := cniConfigProbe(Deps{CNIConfDir: "/does/not/exist"}).Supported(context.Background(), testRunContext())
	assert.False(t, ok)
	assert.Contains(t, reason, "no CNI configuration")
}

func TestPackageProbeRequirements(t *testing.T) {
	t.Parallel()

	rc := testRunContext() // rpm host

	ok, _ := packagesRpmProbe().Requires.Satisfied(rc)
	assert.True(t, ok)

	ok, reason := packagesDebProbe().Requires.Satisfied(rc)
	assert.False(t, ok)
	assert.Contains(t, reason, "deb")
}

func TestSystemProbe(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rc := testRunContext()
	require.NoError(t, systemProbe().Run(context.Background(), rc, dir))

	id, err := os.ReadFile(filepath.Join(dir, "instance-id.txt"))
	require.NoError(t, err)
	assert.Equal(t, rc.InstanceID+"\n", string(id))
	assert.FileExists(t, filepath.Join(dir, "hostname.txt"))
	assert.FileExists(t, filepath.Join(dir, "ps.txt"))
}
