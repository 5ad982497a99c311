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

// Package cmdexec runs external commands under a cancellable context with
// guaranteed termination: when the context ends, the whole process group is
// killed and reaped rather than abandoned, so timed-out probes never leak
// child processes or file descriptors.
package cmdexec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// waitDelay bounds how long Wait blocks on I/O pipes after the process
// group has been killed.
const waitDelay = 2 * time.Second

// Command builds an *exec.Cmd bound to ctx that kills its entire process
// group on cancellation. Shelled-out tools like journalctl spawn children;
// killing only the parent would leave them holding the journal.
func Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative pid targets the process group.
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = waitDelay
	return cmd
}

// Run executes the command and returns its combined output. Context
// cancellation or expiry surfaces as the context's error wrapped with the
// command name.
func Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := Command(ctx, name, args...)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return buf.Bytes(), fmt.Errorf("%s: %w", name, ctxErr)
		}
		return buf.Bytes(), fmt.Errorf("%s: %w", name, err)
	}

	return buf.Bytes(), nil
}

// RunToFile executes the command streaming combined output into path.
// A partial file is left in place on failure; best-effort capture is
// preferred over all-or-nothing.
func RunToFile(ctx context.Context, path, name string, args ...string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	cmd := Command(ctx, name, args...)
	cmd.Stdout = f
	cmd.Stderr = f

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", name, ctxErr)
		}
		return fmt.Errorf("%s: %w", name, err)
	}

	return nil
}

// Available reports whether the named tool resolves on PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
