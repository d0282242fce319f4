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

package cleanstack

import (
	"errors"
)

const (
	always = iota
	errorOnly
	successOnly
)

// CleanJob is a cleanup callback together with the condition it runs on
type CleanJob struct {
	callback func() error
	jobType  int
}

// Run executes the cleanup callback
func (cj CleanJob) Run() error {
	return cj.callback()
}

// CleanStack is a LIFO stack of cleanup jobs. It is meant to be deferred right after
// its creation so that acquired resources (loop devices, mountpoints, temporary
// directories) are released in reverse acquisition order on every exit path.
type CleanStack struct {
	jobs []*CleanJob
}

func NewCleanStack() *CleanStack {
	return &CleanStack{}
}

// Push adds a job that always runs on cleanup
func (clean *CleanStack) Push(callback func() error) {
	clean.jobs = append(clean.jobs, &CleanJob{callback: callback, jobType: always})
}

// PushErrorOnly adds a job that only runs if cleanup is reached with an error
func (clean *CleanStack) PushErrorOnly(callback func() error) {
	clean.jobs = append(clean.jobs, &CleanJob{callback: callback, jobType: errorOnly})
}

// PushSuccessOnly adds a job that only runs if cleanup is reached without errors
func (clean *CleanStack) PushSuccessOnly(callback func() error) {
	clean.jobs = append(clean.jobs, &CleanJob{callback: callback, jobType: successOnly})
}

// Pop removes and returns the last added job, nil if the stack is empty
func (clean *CleanStack) Pop() *CleanJob {
	if len(clean.jobs) == 0 {
		return nil
	}
	job := clean.jobs[len(clean.jobs)-1]
	clean.jobs = clean.jobs[:len(clean.jobs)-1]
	return job
}

// Cleanup runs all the jobs in reverse order. The given error is kept and any
// error returned by the jobs is joined to it. Error only and success only jobs
// are evaluated against the accumulated error at the time they are popped.
func (clean *CleanStack) Cleanup(err error) error {
	for job := clean.Pop(); job != nil; job = clean.Pop() {
		switch job.jobType {
		case errorOnly:
			if err == nil {
				continue
			}
		case successOnly:
			if err != nil {
				continue
			}
		}
		if cErr := job.Run(); cErr != nil {
			err = errors.Join(err, cErr)
		}
	}
	return err
}
