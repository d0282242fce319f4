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


package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/suse/sdimage/pkg/log"
	"github.com/suse/sdimage/pkg/sys"
)

const Usage = "Partition, format and populate SD card images with erase block aligned partitions"

func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Report progress of every step",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Set logging at debug level",
		},
		&cli.BoolFlag{
			Name:  "license",
			Usage: "Show the license and exit",
		},
	}
}

func Setup(ctx *cli.Context) error {
	if ctx.App.Metadata == nil {
		ctx.App.Metadata = map[string]any{}
	}
	// a system injected beforehand is kept
	if _, ok := ctx.App.Metadata["system"].(*sys.System); ok {
		return nil
	}

	s, err := sys.NewSystem(sys.WithLogger(log.New(log.WithLevel(log.LevelFromFlags(ctx.Bool("verbose"), ctx.Bool("debug"))))))
	if err != nil {
		return err
	}
	ctx.App.Metadata["system"] = s
	return nil
}
