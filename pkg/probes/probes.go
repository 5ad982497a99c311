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

// Package probes defines the built-in collection probe set. The registry
// order is curated cheapest/most-universal first, with the slow full
// container inspection last.
package probes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/awslabs/eks-log-collector/pkg/probe"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/system"
	"github.com/docker/docker/client"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// DockerAPI is the slice of the Docker Engine API the runtime probes use.
// *client.Client satisfies it; tests supply fakes.
type DockerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	Info(ctx context.Context) (system.Info, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
}

// Deps carries the external collaborators probes talk to, injectable for
// testing. DefaultDeps returns the production wiring.
type Deps struct {
	// NewDocker connects to the container runtime daemon.
	NewDocker func() (DockerAPI, error)

	// NewK8sClient builds a Kubernetes client from the node kubeconfig.
	NewK8sClient func() (kubernetes.Interface, error)

	// HTTPClient performs local agent introspection queries.
	HTTPClient *http.Client

	// IpamdBase is the ipamd introspection endpoint.
	IpamdBase string
	// IpamdMetricsBase is the ipamd prometheus metrics endpoint.
	IpamdMetricsBase string

	// Kubeconfig is the node's kubelet kubeconfig path.
	Kubeconfig string

	// VarLog is the host log directory probes copy from.
	VarLog string
	// CNIConfDir is the CNI configuration directory.
	CNIConfDir string
	// SysctlRoot is the kernel parameter tree root.
	SysctlRoot string
	// ResolvConf is the resolver configuration path.
	ResolvConf string
}

const (
	defaultIpamdBase        = "http://localhost:61679"
	defaultIpamdMetricsBase = "http://localhost:61678"
	defaultKubeconfig       = "/var/lib/kubelet/kubeconfig"
	defaultVarLog           = "/var/log"
	defaultCNIConfDir       = "/etc/cni/net.d"
	defaultSysctlRoot       = "/proc/sys"
	defaultResolvConf       = "/etc/resolv.conf"

	// agentTimeout bounds each local agent introspection query.
	agentTimeout = 3 * time.Second

	// inspectTimeout bounds the slow full container inspection probe.
	inspectTimeout = 75 * time.Second
)

// DefaultDeps returns production collaborators.
func DefaultDeps() Deps {
	return Deps{
		NewDocker: func() (DockerAPI, error) {
			return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		},
		NewK8sClient: func() (kubernetes.Interface, error) {
			cfg, err := clientcmd.BuildConfigFromFlags("", defaultKubeconfig)
			if err != nil {
				return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
			}
			return kubernetes.NewForConfig(cfg)
		},
		HTTPClient:       &http.Client{Timeout: agentTimeout},
		IpamdBase:        defaultIpamdBase,
		IpamdMetricsBase: defaultIpamdMetricsBase,
		Kubeconfig:       defaultKubeconfig,
		VarLog:           defaultVarLog,
		CNIConfDir:       defaultCNIConfDir,
		SysctlRoot:       defaultSysctlRoot,
		ResolvConf:       defaultResolvConf,
	}
}

// BuildRegistry constructs the static collect-mode registry in curated
// execution order.
func BuildRegistry(deps Deps) *probe.Registry {
	r := probe.NewRegistry()

	r.MustRegister(probe.ModeCollect, systemProbe())
	r.MustRegister(probe.ModeCollect, varLogProbe(deps))
	r.MustRegister(probe.ModeCollect, kernelProbe())
	r.MustRegister(probe.ModeCollect, storageProbe())
	r.MustRegister(probe.ModeCollect, iptablesProbe())
	r.MustRegister(probe.ModeCollect, networkingProbe(deps))
	r.MustRegister(probe.ModeCollect, sysctlProbe(deps))
	r.MustRegister(probe.ModeCollect, packagesRpmProbe())
	r.MustRegister(probe.ModeCollect, packagesDebProbe())
	r.MustRegister(probe.ModeCollect, servicesSystemdProbe())
	r.MustRegister(probe.ModeCollect, servicesUpstartProbe())
	r.MustRegister(probe.ModeCollect, dockerInfoProbe(deps))
	r.MustRegister(probe.ModeCollect, dockerLogsProbe())
	r.MustRegister(probe.ModeCollect, ipamdProbe(deps))
	r.MustRegister(probe.ModeCollect, kubeletLogsProbe())
	r.MustRegister(probe.ModeCollect, kubeletNodeProbe(deps))
	r.MustRegister(probe.ModeCollect, cniConfigProbe(deps))
	// Full container inspection is the slowest probe; it always runs last
	// so a hang cannot starve cheaper captures.
	r.MustRegister(probe.ModeCollect, dockerInspectProbe(deps))

	return r
}

// writeFile writes an artifact into the probe's category directory.
func writeFile(dir, name string, data []byte) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// copyFile copies one host file into the category directory, preserving
// the base name.
func copyFile(src, dstDir string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(filepath.Join(dstDir, filepath.Base(src)))
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}

// copyTree recursively copies a host directory into dstDir/<base>.
// Symlinks and non-regular files are skipped; they are not portable.
func copyTree(src, dstDir string) error {
	base := filepath.Base(src)
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dstDir, base, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return copyFileTo(path, target)
	})
}

// dirExists reports whether path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func copyFileTo(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
