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

// Package logging provides structured logging for the log collector.
//
// It wraps the standard library slog package with collector-specific
// defaults: JSON output to stderr, module/version context on every record,
// LOG_LEVEL environment fallback, and source location on debug records.
//
// Typical use, early in main:
//
//	logging.SetDefaultStructuredLogger("eks-log-collector", version)
//	slog.Info("starting collection", "mode", mode)
//
// The LOG_LEVEL environment variable (debug, info, warn, error) controls
// verbosity when no explicit level is given; the default is info.
package logging
