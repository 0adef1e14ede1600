package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/options"
	"github.com/byosync/facecommit/pkg/pipeline"
	"github.com/byosync/facecommit/pkg/sugar"
	"github.com/spf13/cobra"
)

var identifyFrames string

var identifyCmd = &cobra.Command{
	Use:   "identify <user[/device]>...",
	Short: "Find which of the given enrollments the recorded frames belong to",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ref, err := loadReference()
		if err != nil {
			return err
		}

		repo, err := openRepository(ctx)
		if err != nil {
			return err
		}

		candidates := make(map[enrollment.Identity]*enrollment.Store, len(args))
		for _, arg := range args {
			id, err := parseIdentity(arg)
			if err != nil {
				return err
			}

			store, err := repo.Load(ctx, id)
			if errors.Is(err, failure.ErrNoEnrollment) {
				logger.Warn("no enrollment", "identity", id.String())
				continue
			}
			if err != nil {
				return err
			}
			candidates[id] = store
		}

		frames, err := openFrames(identifyFrames)
		if err != nil {
			return err
		}

		p := pipeline.New(pipeline.NewSession(pipeline.ModeVerification, enrollment.Identity{}, time.Now()), ref, cfg.Pipeline(),
			options.WithLogger(logger),
		)
		if _, err := sugar.Replay(ctx, p, frames); err != nil {
			return err
		}

		match, err := sugar.Identify(ctx, p, candidates)
		if err != nil {
			return err
		}

		m, ok := match.Get()
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "no enrollment matched")
			return errRejected
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", m.Identity)
		printDecision(cmd, m.Decision)
		return nil
	},
}

func init() {
	identifyCmd.Flags().StringVarP(&identifyFrames, "frames", "f", "-", "JSON-lines frame file, - for stdin")
	rootCmd.AddCommand(identifyCmd)
}
