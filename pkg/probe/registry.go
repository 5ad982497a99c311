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

package probe

import "fmt"

// Mode selects which probe set a run executes.
type Mode string

const (
	// ModeCollect runs every data-gathering probe and archives the result.
	ModeCollect Mode = "collect"
	// ModeEnableDebug toggles the container runtime debug flag; it does
	// not draw probes from the registry.
	ModeEnableDebug Mode = "enable_debug"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCollect, ModeEnableDebug:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unrecognized mode %q (expected %q or %q)", s, ModeCollect, ModeEnableDebug)
	}
}

// Registry holds the ordered probe list per mode. Registration order is
// execution order; it determines output layout reproducibility, not
// correctness, since no probe depends on another probe's output.
type Registry struct {
	probes map[Mode][]Probe
	names  map[Mode]map[string]struct{}
}

// NewRegistry creates an empty probe registry.
func NewRegistry() *Registry {
	return &Registry{
		probes: make(map[Mode][]Probe),
		names:  make(map[Mode]map[string]struct{}),
	}
}

// Register appends a probe to the mode's ordered list. Probe names must be
// unique within a mode and the probe must declare a known category.
func (r *Registry) Register(mode Mode, p Probe) error {
	if p.Name == "" {
		return fmt.Errorf("probe name is required")
	}
	if p.Run == nil {
		return fmt.Errorf("probe %q has no action", p.Name)
	}
	if !knownCategory(p.Category) {
		return fmt.Errorf("probe %q declares unknown category %q", p.Name, p.Category)
	}

	if r.names[mode] == nil {
		r.names[mode] = make(map[string]struct{})
	}
	if _, dup := r.names[mode][p.Name]; dup {
		return fmt.Errorf("probe %q already registered for mode %q", p.Name, mode)
	}

	r.names[mode][p.Name] = struct{}{}
	r.probes[mode] = append(r.probes[mode], p)
	return nil
}

// MustRegister registers the probe and panics on error. Intended for the
// static built-in registry constructed at startup.
func (r *Registry) MustRegister(mode Mode, p Probe) {
	if err := r.Register(mode, p); err != nil {
		panic(err)
	}
}

// ForMode returns the ordered probe sequence for the mode. The returned
// slice is a copy; callers cannot reorder the registry.
func (r *Registry) ForMode(mode Mode) []Probe {
	src := r.probes[mode]
	out := make([]Probe, len(src))
	copy(out, src)
	return out
}

func knownCategory(c string) bool {
	for _, known := range Categories() {
		if known == c {
			return true
		}
	}
	return false
}
