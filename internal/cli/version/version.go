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


package version

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var (
	version = "v0.0.1"
	// gitCommit is the git sha1
	gitCommit = ""
)

const License = `Copyright © 2025 SUSE LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
`

func Version() string {
	commit := gitCommit
	if len(commit) > 7 {
		commit = gitCommit[:7]
	}
	return fmt.Sprintf("%s+g%s", version, commit)
}

func NewVersionCommand(appName string) *cli.Command {
	return &cli.Command{
		Name:      "version",
		Usage:     "Inspect program version",
		UsageText: fmt.Sprintf("%s version", appName),
		Action: func(ctx *cli.Context) error {
			_, err := fmt.Fprintln(ctx.App.Writer, Version())
			return err
		},
	}
}

// ShowLicense prints the license if requested by the --license flag and the
// help otherwise.
func ShowLicense(ctx *cli.Context) error {
	if ctx.Bool("license") {
		_, err := fmt.Fprintf(ctx.App.Writer, "%s %s\n\n%s", ctx.App.Name, Version(), License)
		return err
	}
	return cli.ShowAppHelp(ctx)
}
