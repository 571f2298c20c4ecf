package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	screenpilot "github.com/menta2k/screen-pilot"
	"github.com/menta2k/screen-pilot/pkg/fleet"
)

func newHuntCmd(a *app) *cobra.Command {
	var level int
	cmd := &cobra.Command{
		Use:   "hunt",
		Short: "Dispatch fleets against radar targets until fuel runs low",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("level") {
				a.cfg.Hunt.Level = level
			}
			p, err := a.newPilot()
			if err != nil {
				return err
			}
			defer p.Close()

			rep, err := p.Hunt(cmd.Context())
			return a.finish(cmd.Context(), cmd.OutOrStdout(), p, rep, err)
		},
	}
	cmd.Flags().IntVar(&level, "level", 0, "target level (overrides hunt.level)")
	return cmd
}

func newGatherCmd(a *app) *cobra.Command {
	var (
		category string
		level    int
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "gather",
		Short: "Send fleets to resource sites",
		Long: `Searches the radar for the configured resource and deploys fleets to it.
With --all every free queue slot is filled once; otherwise fleets are
scheduled against the fuel budget like hunting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if category != "" {
				a.cfg.Gather.Category = category
			}
			if cmd.Flags().Changed("level") {
				a.cfg.Gather.Level = level
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			p, err := a.newPilot()
			if err != nil {
				return err
			}
			defer p.Close()

			if all {
				sent, err := p.GatherAll(cmd.Context())
				for i, d := range sent {
					fmt.Fprintf(cmd.OutOrStdout(), "fleet %d: travel %s\n", i+1, d)
				}
				return err
			}
			rep, err := p.Gather(cmd.Context())
			return a.finish(cmd.Context(), cmd.OutOrStdout(), p, rep, err)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "resource: grain, oil, steel, mineral or gold")
	cmd.Flags().IntVar(&level, "level", 0, "starting level (overrides gather.level)")
	cmd.Flags().BoolVar(&all, "all", false, "fill every free queue slot once instead of scheduling")
	return cmd
}

func newEliteCmd(a *app) *cobra.Command {
	var maxBattles int
	cmd := &cobra.Command{
		Use:   "elite",
		Short: "Fight the remaining elite battles from the alliance menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("max") {
				a.cfg.Elite.MaxBattles = maxBattles
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			p, err := a.newPilot()
			if err != nil {
				return err
			}
			defer p.Close()

			n, err := p.Elite(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "fought %d elite battles\n", n)
			if err != nil && cmd.Context().Err() == nil {
				if rerr := p.Console().ResetToHome(cmd.Context()); rerr != nil {
					a.logger.Warn("failed to reset to home screen", zap.Error(rerr))
				}
			}
			return err
		},
	}
	cmd.Flags().IntVar(&maxBattles, "max", 0, "fight at most this many battles (overrides elite.max_battles)")
	return cmd
}

func newRewardsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rewards",
		Short: "Collect the reward badge shown on the home screen",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.newPilot()
			if err != nil {
				return err
			}
			defer p.Close()

			ok, err := p.CollectRewards(cmd.Context())
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintln(cmd.OutOrStdout(), "rewards collected")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "no rewards available")
			}
			return nil
		},
	}
}

// finish prints the run report. An aborted run is logged with its
// snapshot and the client is walked back to the home screen.
func (a *app) finish(ctx context.Context, w io.Writer, p *screenpilot.Pilot, rep fleet.Report, err error) error {
	var re *fleet.RunError
	if errors.As(err, &re) && ctx.Err() == nil {
		a.logger.Error("run aborted", zap.String("snapshot", re.Snapshot), zap.Error(re.Err))
		if rerr := p.Console().ResetToHome(ctx); rerr != nil {
			a.logger.Warn("failed to reset to home screen", zap.Error(rerr))
		}
	}
	data, merr := json.MarshalIndent(rep, "", "  ")
	if merr != nil {
		return errors.Join(err, merr)
	}
	fmt.Fprintln(w, string(data))
	return err
}
