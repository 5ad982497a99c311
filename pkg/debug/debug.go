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

// Package debug toggles the container runtime's debug mode. This is the
// only mode of the collector that mutates host state, so it is gated
// behind an explicit operator confirmation.
package debug

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/errors"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
)

const (
	// defaultSysconfigPath is the docker daemon option file on rpm hosts.
	defaultSysconfigPath = "/etc/sysconfig/docker"

	dockerUnit = "docker.service"
	debugFlag  = "-D"
)

// Toggler enables docker daemon debug logging. Collaborators are
// injectable for testing; NewToggler returns the production wiring.
type Toggler struct {
	// Confirm is the stream the operator's answer is read from.
	Confirm io.Reader

	// Prompt is where the confirmation question is written.
	Prompt io.Writer

	// SysconfigPath is the daemon option file edited on rpm hosts.
	SysconfigPath string

	// RestartDocker restarts the docker unit after the option change.
	RestartDocker func(ctx context.Context) error
}

// NewToggler returns a Toggler wired to stdin/stderr and systemd.
func NewToggler() *Toggler {
	return &Toggler{
		Confirm:       os.Stdin,
		Prompt:        os.Stderr,
		SysconfigPath: defaultSysconfigPath,
		RestartDocker: restartDockerUnit,
	}
}

// Enable turns on docker daemon debug logging. The operator must confirm
// before any mutation; declining returns ErrCodeDeclined with zero
// changes made. On deb and unknown package variants the option file
// location is not predictable, so the toggle is a warning no-op.
func (t *Toggler) Enable(ctx context.Context, rc *envinfo.RunContext) error {
	confirmed, err := t.confirm()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to read confirmation", err)
	}
	if !confirmed {
		return errors.New(errors.ErrCodeDeclined, "debug enablement declined by operator")
	}

	if rc.PkgKind != envinfo.PkgRpm {
		slog.Warn("docker debug toggle is only automated on rpm-based hosts; no changes made",
			"packageManager", rc.PkgKind.String())
		return nil
	}

	changed, err := enableDebugOption(t.SysconfigPath)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to update docker options", err)
	}
	if !changed {
		slog.Info("docker debug flag already set", "path", t.SysconfigPath)
	} else {
		slog.Info("docker debug flag enabled", "path", t.SysconfigPath)
	}

	slog.Info("restarting docker", "unit", dockerUnit)
	if err := t.RestartDocker(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to restart docker", err)
	}
	return nil
}

// confirm asks the operator and reports whether they answered yes.
func (t *Toggler) confirm() (bool, error) {
	fmt.Fprint(t.Prompt, "This will enable debug logging and restart the Docker daemon. Proceed? (y/N): ")

	line, err := bufio.NewReader(t.Confirm).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// enableDebugOption adds -D to the OPTIONS line of the daemon option
// file, appending the line when absent. Returns false when the flag was
// already present.
func enableDebugOption(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	found := false
	changed := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "OPTIONS=") {
			continue
		}
		found = true
		if strings.Contains(trimmed, debugFlag) {
			continue
		}
		lines[i] = addFlag(trimmed)
		changed = true
	}
	if !found {
		lines = append(lines, fmt.Sprintf("OPTIONS=%q", debugFlag))
		changed = true
	}
	if !changed {
		return false, nil
	}

	out := strings.Join(lines, "\n") + "\n"
	if len(data) == 0 {
		out = strings.TrimLeft(out, "\n")
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// addFlag inserts the debug flag inside the OPTIONS value, preserving
// existing quoting.
func addFlag(line string) string {
	value := strings.TrimPrefix(line, "OPTIONS=")
	unquoted := strings.Trim(value, `"`)
	if unquoted == "" {
		return fmt.Sprintf("OPTIONS=%q", debugFlag)
	}
	return fmt.Sprintf("OPTIONS=%q", unquoted+" "+debugFlag)
}

// restartDockerUnit restarts docker through the systemd manager API and
// waits for the job to finish.
func restartDockerUnit(ctx context.Context) error {
	conn, err := sddbus.NewWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	done := make(chan string, 1)
	if _, err := conn.RestartUnitContext(ctx, dockerUnit, "replace", done); err != nil {
		return fmt.Errorf("failed to restart %s: %w", dockerUnit, err)
	}

	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("restart of %s finished with result %q", dockerUnit, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
