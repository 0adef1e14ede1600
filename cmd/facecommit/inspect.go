package main

import (
	"encoding/hex"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/byosync/facecommit/pkg/options"
	"github.com/byosync/facecommit/pkg/pipeline"
	"github.com/byosync/facecommit/pkg/quality"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show per-frame quality or the contents of a saved enrollment",
}

var inspectFramesPath string

var inspectFramesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Run frames through an enrollment session and print the quality verdicts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ref, err := loadReference()
		if err != nil {
			return err
		}

		frames, err := openFrames(inspectFramesPath)
		if err != nil {
			return err
		}

		p := pipeline.New(pipeline.NewSession(pipeline.ModeEnrollment, enrollment.Identity{}, time.Now()), ref, cfg.Pipeline(),
			options.WithLogger(logger),
		)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "SEQ\tDISTANCE\tOVAL\tINSIDE\tPOSE\tSTORED\tPHASE\tERROR")
		fmt.Fprintln(w, "---\t--------\t----\t------\t----\t------\t-----\t-----")

		for frame, err := range frames {
			if err != nil {
				return err
			}

			out := p.ProcessFrame(ctx, frame)
			phase := out.Phase.OrElse(quality.Phase{})
			errText := "-"
			if out.Err != nil {
				errText = out.Err.Error()
			}
			fmt.Fprintf(w, "%d\t%s\t%t\t%.2f\t%t\t%t\t%s\t%s\n",
				out.Seq, out.State.Distance, out.State.OvalAligned, out.State.InsideFraction,
				out.State.PoseStable, out.Appended, phase.Kind, errText)
		}

		return w.Flush()
	},
}

var inspectStoreCmd = &cobra.Command{
	Use:   "store <user[/device]>",
	Short: "List the records of a saved enrollment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := parseIdentity(args[0])
		if err != nil {
			return err
		}

		repo, err := openRepository(ctx)
		if err != nil {
			return err
		}

		store, err := repo.Load(ctx, id)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records, salt %s, saved %s\n\n",
			id, store.Len(), hex.EncodeToString(store.Salt()), store.SavedAt.Local().Format("2006-01-02 15:04:05"))

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "INDEX\tIOD\tCAPTURED\tTOKEN")
		fmt.Fprintln(w, "-----\t---\t--------\t-----")
		for _, r := range store.Records {
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n",
				r.Index, r.IOD, r.Timestamp.Local().Format("15:04:05.000"), hex.EncodeToString(r.Token[:min(8, len(r.Token))]))
		}
		return w.Flush()
	},
}

func init() {
	inspectFramesCmd.Flags().StringVarP(&inspectFramesPath, "frames", "f", "-", "JSON-lines frame file, - for stdin")
	inspectCmd.AddCommand(inspectFramesCmd, inspectStoreCmd)
	rootCmd.AddCommand(inspectCmd)
}
