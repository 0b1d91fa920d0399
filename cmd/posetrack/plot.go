package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/LdDl/mot-pose/recorder"
	"github.com/LdDl/mot-pose/report"
)

type plotOptions struct {
	dbPath   string
	run      string
	out      string
	smoothed bool
}

func plotCmd() *cobra.Command {
	opts := plotOptions{}
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Plot recorded track trails into an image",
		Long: `Plot center paths of every track of a recorded run.

Examples:
  posetrack plot --db run.db --out trails.png
  posetrack plot --db run.db --run 5f0c... --out trails.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := plotRun(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.New(color.FgGreen).Sprint("saved"), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "recorder database")
	cmd.Flags().StringVar(&opts.run, "run", "latest", "run ID or 'latest'")
	cmd.Flags().StringVar(&opts.out, "out", "trails.png", "output image (png, svg, pdf)")
	cmd.Flags().BoolVar(&opts.smoothed, "smoothed", false, "plot Kalman-smoothed centers")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func plotRun(ctx context.Context, opts plotOptions) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := recorder.Open(opts.dbPath)
	if err != nil {
		return "", err
	}
	defer store.Close()

	var run recorder.Run
	if opts.run == "" || opts.run == "latest" {
		run, err = store.LatestRun(ctx)
	} else {
		runID, parseErr := uuid.Parse(opts.run)
		if parseErr != nil {
			return "", fmt.Errorf("parse run id: %w", parseErr)
		}
		run, err = store.GetRun(ctx, runID)
	}
	if err != nil {
		return "", err
	}

	trails, err := store.Trails(ctx, run.ID, opts.smoothed)
	if err != nil {
		return "", err
	}
	trackTrails := make([]report.TrackTrail, 0, len(trails))
	for _, trail := range trails {
		trackTrails = append(trackTrails, report.TrackTrail{TrackID: trail.TrackID, Points: trail.Points})
	}
	title := fmt.Sprintf("%s (%d tracks)", run.Input, len(trackTrails))
	if err := report.PlotTrails(opts.out, title, trackTrails); err != nil {
		return "", err
	}
	return opts.out, nil
}
