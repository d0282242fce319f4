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
	"fmt"

	"github.com/urfave/cli/v2"
)

type LayoutFlags struct {
	Device       string
	Image        string
	Source       string
	ConfigFile   string
	Size         string
	EraseSize    string
	FirstSector  uint64
	BootMin      string
	BootMax      string
	RootMin      string
	RootMax      string
	NoAlign      bool
	NoAlignFirst bool
	Create       bool
	Yes          bool
}

var LayoutArgs LayoutFlags

func layoutFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "device",
			Aliases:     []string{"d"},
			Usage:       "Block device to partition, its size and erase block size are read from sysfs",
			Destination: &LayoutArgs.Device,
		},
		&cli.StringFlag{
			Name:        "image",
			Aliases:     []string{"i"},
			Usage:       "Image file to create instead of partitioning a device",
			Destination: &LayoutArgs.Image,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Layout description file",
			Destination: &LayoutArgs.ConfigFile,
		},
		&cli.StringFlag{
			Name:        "size",
			Usage:       "Volume size, e.g. 2GiB",
			Destination: &LayoutArgs.Size,
		},
		&cli.StringFlag{
			Name:        "erase-size",
			Usage:       "Erase block size, e.g. 4MiB",
			Destination: &LayoutArgs.EraseSize,
		},
		&cli.Uint64Flag{
			Name:        "first-sector",
			Usage:       "First usable sector of the volume",
			Destination: &LayoutArgs.FirstSector,
		},
		&cli.StringFlag{
			Name:        "boot-min",
			Usage:       "Minimum size of the boot partition",
			Destination: &LayoutArgs.BootMin,
		},
		&cli.StringFlag{
			Name:        "boot-max",
			Usage:       "Maximum size of the boot partition, 0 takes the whole volume",
			Destination: &LayoutArgs.BootMax,
		},
		&cli.StringFlag{
			Name:        "root-min",
			Usage:       "Minimum size of the root partition",
			Destination: &LayoutArgs.RootMin,
		},
		&cli.StringFlag{
			Name:        "root-max",
			Usage:       "Maximum size of the root partition, 0 takes the rest of the volume",
			Destination: &LayoutArgs.RootMax,
		},
		&cli.BoolFlag{
			Name:        "no-align",
			Usage:       "Do not align partitions to the erase block size",
			Destination: &LayoutArgs.NoAlign,
		},
		&cli.BoolFlag{
			Name:        "no-align-first",
			Usage:       "Start the boot partition at the first usable sector",
			Destination: &LayoutArgs.NoAlignFirst,
		},
	}
}

func NewLayoutCommand(appName string, action func(*cli.Context) error) *cli.Command {
	return &cli.Command{
		Name:      "layout",
		Usage:     "Print the partition layout without touching any device",
		UsageText: fmt.Sprintf("%s layout [OPTIONS]", appName),
		Action:    action,
		Flags: append(layoutFlags(),
			&cli.BoolFlag{
				Name:        "create",
				Usage:       "Create the layout right away, same as the create command",
				Destination: &LayoutArgs.Create,
			},
			&cli.StringFlag{
				Name:        "source",
				Aliases:     []string{"s"},
				Usage:       "Disk image, directory or tar archive to copy, requires --create",
				Destination: &LayoutArgs.Source,
			},
			&cli.BoolFlag{
				Name:        "yes",
				Aliases:     []string{"y"},
				Usage:       "Do not ask for confirmation, requires --create",
				Destination: &LayoutArgs.Yes,
			},
		),
	}
}

func NewCreateCommand(appName string, action func(*cli.Context) error) *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Partition and format a device or an image, then copy content into it",
		UsageText: fmt.Sprintf("%s create [OPTIONS]", appName),
		Action:    action,
		Flags: append(layoutFlags(),
			&cli.StringFlag{
				Name:        "source",
				Aliases:     []string{"s"},
				Usage:       "Disk image, directory or tar archive to copy",
				Destination: &LayoutArgs.Source,
			},
			&cli.BoolFlag{
				Name:        "yes",
				Aliases:     []string{"y"},
				Usage:       "Do not ask for confirmation",
				Destination: &LayoutArgs.Yes,
			},
		),
	}
}
