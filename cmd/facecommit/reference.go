package main

import (
	"fmt"
	"os"

	"github.com/byosync/facecommit/pkg/commitment"
	"github.com/byosync/facecommit/pkg/feature"
	"github.com/byosync/facecommit/pkg/landmark"
	"github.com/spf13/cobra"
)

var (
	referenceFrames string
	referenceOut    string
)

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Build quantization thresholds from a population of frames",
	Long: "Build quantization thresholds from a population of frames, one or more per person.\n" +
		"Frames that cannot be normalized are skipped.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		frames, err := openFrames(referenceFrames)
		if err != nil {
			return err
		}

		var population []feature.Vector
		skipped := 0
		for frame, err := range frames {
			if err != nil {
				return err
			}

			m, err := landmark.Normalize(frame, landmark.Cardinality).Get()
			if err != nil {
				skipped++
				continue
			}
			v, err := feature.Extract(m.Set).Get()
			if err != nil {
				skipped++
				continue
			}
			population = append(population, v)
		}

		ref, err := commitment.BuildReference(population)
		if err != nil {
			return err
		}

		out := referenceOut
		if out == "" {
			out = cfg.Reference
		}

		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := ref.Write(f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		logger.Info("reference written", "path", out, "vectors", len(population), "skipped", skipped)
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s from %d vectors\n", out, len(population))
		return nil
	},
}

func init() {
	referenceCmd.Flags().StringVarP(&referenceFrames, "frames", "f", "-", "JSON-lines frame file, - for stdin")
	referenceCmd.Flags().StringVarP(&referenceOut, "out", "o", "", "Output path (default: the configured reference)")
	rootCmd.AddCommand(referenceCmd)
}
