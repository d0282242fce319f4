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

package provision

import (
	"fmt"
)

// ResourceError reports a destination that cannot be used: not found,
// not writable, busy or too small, or missing privileges.
type ResourceError struct {
	Resource string
	Reason   string
	Err      error
}

func (e *ResourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot use '%s': %s: %v", e.Resource, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot use '%s': %s", e.Resource, e.Reason)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

func resourceErr(resource string, err error, format string, args ...any) error {
	return &ResourceError{Resource: resource, Reason: fmt.Sprintf(format, args...), Err: err}
}
