/*
Copyright © 2025 SUSE LLC
SPDX-License-Identifier: Apache-2.0

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sys

import (
	"fmt"
	"strings"
)

// ExternalToolError is returned when an external program exits with an error.
// It keeps the tool's own output so it can be shown to the user.
type ExternalToolError struct {
	Command string
	Args    []string
	Output  string
	Err     error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("'%s %s' failed: %v", e.Command, strings.Join(e.Args, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg = fmt.Sprintf("%s: %s", msg, out)
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

// RunTool runs the given command with the system runner and wraps any failure
// into an ExternalToolError carrying the command output.
func RunTool(s *System, command string, args ...string) ([]byte, error) {
	out, err := s.Runner().Run(command, args...)
	if err != nil {
		s.Logger().Error("%s failed with: %s", command, strings.TrimSpace(string(out)))
		return out, &ExternalToolError{Command: command, Args: args, Output: string(out), Err: err}
	}
	return out, nil
}
