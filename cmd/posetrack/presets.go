package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LdDl/mot-pose/mot"
)

func presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List keypoint presets usable as --preset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPresets(cmd.OutOrStdout())
		},
	}
}

func printPresets(w io.Writer) error {
	name := color.New(color.FgCyan)
	for _, preset := range mot.PresetNames() {
		n, _ := mot.PresetMinPoints(preset)
		if _, err := fmt.Fprintf(w, "%s\tfirst %d keypoints\n", name.Sprint(preset), n); err != nil {
			return err
		}
	}
	return nil
}
