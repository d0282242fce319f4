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


package action

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/suse/sdimage/internal/cli/cmd"
	"github.com/suse/sdimage/internal/config"
	"github.com/suse/sdimage/pkg/layout"
	"github.com/suse/sdimage/pkg/populate"
	"github.com/suse/sdimage/pkg/provision"
	"github.com/suse/sdimage/pkg/sys"
)

func system(ctx *cli.Context) (*sys.System, error) {
	if ctx.App.Metadata == nil || ctx.App.Metadata["system"] == nil {
		return nil, fmt.Errorf("error setting up initial configuration")
	}
	return ctx.App.Metadata["system"].(*sys.System), nil
}

// Layout prints the partition layout. With --create it behaves like Create.
func Layout(ctx *cli.Context) error {
	args := &cmd.LayoutArgs
	if args.Create {
		return Create(ctx)
	}

	s, err := system(ctx)
	if err != nil {
		return err
	}
	if args.Source != "" || args.Yes {
		s.Logger().Warn("--source and --yes are ignored without --create")
	}

	plan, err := planLayout(ctx, s, args)
	if err != nil {
		return err
	}
	return plan.WriteReport(ctx.App.Writer)
}

// Create plans the layout, checks and confirms the destination, partitions
// and formats it and finally copies the source content, if any.
func Create(ctx *cli.Context) (err error) {
	args := &cmd.LayoutArgs
	s, err := system(ctx)
	if err != nil {
		return err
	}

	var dest string
	var opts []provision.Opts
	switch {
	case args.Device != "" && args.Image != "":
		return fmt.Errorf("--device and --image can't be used together")
	case args.Device != "":
		dest = args.Device
	case args.Image != "":
		dest = args.Image
		opts = append(opts, provision.WithImage())
	default:
		return fmt.Errorf("either --device or --image is required")
	}

	s.Logger().Info("Starting create action with args: %+v", args)

	plan, err := planLayout(ctx, s, args)
	if err != nil {
		return err
	}
	if err = plan.WriteReport(ctx.App.Writer); err != nil {
		return err
	}

	p := provision.New(s, dest, opts...)
	if err = p.Check(plan); err != nil {
		s.Logger().Error("Destination '%s' can't be used", dest)
		return err
	}

	if !args.Yes {
		if err = confirm(ctx.App.Reader, ctx.App.Writer, dest); err != nil {
			return err
		}
	}

	ctxCancel, stop := signal.NotifyContext(ctx.Context, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	res, err := p.Apply(ctxCancel, plan)
	if err != nil {
		s.Logger().Error("Failed creating the layout on '%s'", dest)
		return err
	}
	defer func() {
		if e := p.Close(); e != nil && err == nil {
			err = e
		}
	}()

	s.Logger().Info("Created %s filesystem '%s' on %s with id %s", res.Boot.FileSystem, res.Boot.Label, res.Boot.Device, res.Boot.ID)
	s.Logger().Info("Created %s filesystem '%s' on %s with id %s", res.Root.FileSystem, res.Root.Label, res.Root.Device, res.Root.ID)

	if args.Source == "" {
		return nil
	}
	copier := populate.NewCopier(s, populate.WithVolumeIDs(res.Root.ID, res.Boot.ID))
	err = copier.Copy(ctxCancel, args.Source, res.Root.Device, res.Boot.Device)
	if errors.Is(err, populate.ErrUnknownSource) {
		s.Logger().Warn("Skipped copying '%s': %v", args.Source, err)
		return nil
	}
	if err != nil {
		s.Logger().Error("Failed copying '%s' to '%s'", args.Source, dest)
		return err
	}

	s.Logger().Info("Finished creating '%s'", dest)
	return nil
}

func planLayout(ctx *cli.Context, s *sys.System, args *cmd.LayoutFlags) (*layout.PartitionPlan, error) {
	l := config.Default()
	if args.ConfigFile != "" {
		var err error
		if l, err = config.Load(s.FS(), args.ConfigFile); err != nil {
			return nil, err
		}
	}
	l.Merge(overrides(ctx, args))

	settings, err := l.Resolve(s.FS(), args.Device)
	if err != nil {
		return nil, err
	}
	return layout.Plan(settings.Geometry, settings.Boot, settings.Root, settings.PlanOptions()...)
}

func overrides(ctx *cli.Context, args *cmd.LayoutFlags) *config.Layout {
	o := &config.Layout{
		Size:      args.Size,
		EraseSize: args.EraseSize,
		Boot:      config.Constraint{Min: args.BootMin, Max: args.BootMax},
		Root:      config.Constraint{Min: args.RootMin, Max: args.RootMax},
	}
	if ctx.IsSet("first-sector") {
		first := args.FirstSector
		o.FirstSector = &first
	}
	if args.NoAlign {
		o.Align = new(bool)
	}
	if args.NoAlignFirst {
		o.AlignFirst = new(bool)
	}
	return o
}

func confirm(r io.Reader, w io.Writer, dest string) error {
	_, err := fmt.Fprintf(w, "All data on '%s' will be lost. Type 'yes' to continue: ", dest)
	if err != nil {
		return err
	}
	answer, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if strings.TrimSpace(answer) != "yes" {
		return fmt.Errorf("aborted, '%s' left untouched", dest)
	}
	return nil
}
