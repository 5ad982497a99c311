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

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuredError(t *testing.T) {
	err := New(ErrCodePrecondition, "insufficient disk space")
	assert.Equal(t, "[PRECONDITION_FAILED] insufficient disk space", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestStructuredErrorWrap(t *testing.T) {
	cause := fmt.Errorf("statfs failed")
	err := Wrap(ErrCodeInternal, "preflight check", cause)

	assert.Contains(t, err.Error(), "statfs failed")
	assert.True(t, stderrors.Is(err, cause))
}

func TestNewWithContext(t *testing.T) {
	err := NewWithContext(ErrCodeNotFound, "missing tool", map[string]any{
		"tool": "iptables",
	})
	assert.Equal(t, "iptables", err.Context["tool"])
}

func TestIsCode(t *testing.T) {
	err := New(ErrCodeDeclined, "operator declined")
	assert.True(t, IsCode(err, ErrCodeDeclined))
	assert.False(t, IsCode(err, ErrCodeTimeout))
	assert.False(t, IsCode(fmt.Errorf("plain"), ErrCodeDeclined))
}
