package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/byosync/facecommit/pkg/matcher"
	"github.com/byosync/facecommit/pkg/options"
	"github.com/byosync/facecommit/pkg/pipeline"
	"github.com/byosync/facecommit/pkg/sugar"
	"github.com/spf13/cobra"
)

var errRejected = errors.New("verification rejected")

var verifyFrames string

var verifyCmd = &cobra.Command{
	Use:   "verify <user[/device]>",
	Short: "Verify recorded frames against a saved enrollment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := parseIdentity(args[0])
		if err != nil {
			return err
		}

		ref, err := loadReference()
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

		frames, err := openFrames(verifyFrames)
		if err != nil {
			return err
		}

		p := pipeline.New(pipeline.NewSession(pipeline.ModeVerification, id, time.Now()), ref, cfg.Pipeline(),
			options.WithLogger(logger),
		)

		d, err := sugar.Verify(ctx, p, frames, store)
		if err != nil {
			return err
		}

		printDecision(cmd, d)
		if !d.Accepted {
			return errRejected
		}
		return nil
	},
}

func printDecision(cmd *cobra.Command, d matcher.Decision) {
	verdict := "rejected"
	if d.Accepted {
		verdict = "accepted"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d of %d frames matched (%d required)\n", verdict, d.Matched, d.Sampled, d.Required)
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyFrames, "frames", "f", "-", "JSON-lines frame file, - for stdin")
	rootCmd.AddCommand(verifyCmd)
}
