package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/byosync/facecommit/pkg/options"
	"github.com/byosync/facecommit/pkg/pipeline"
	"github.com/byosync/facecommit/pkg/sugar"
	"github.com/byosync/facecommit/pkg/upload"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type enrollOptions struct {
	FramesPath   string
	UploadDir    string
	PrintRequest bool
}

var enrollOpts enrollOptions

var enrollCmd = &cobra.Command{
	Use:   "enroll <user[/device]>",
	Short: "Capture an enrollment from recorded frames and save it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEnroll(cmd, args[0], enrollOpts)
	},
}

func init() {
	enrollCmd.Flags().StringVarP(&enrollOpts.FramesPath, "frames", "f", "-", "JSON-lines frame file, - for stdin")
	enrollCmd.Flags().StringVar(&enrollOpts.UploadDir, "upload-dir", "", "Write frame images into this directory")
	enrollCmd.Flags().BoolVar(&enrollOpts.PrintRequest, "request", false, "Print the enrollment request body on stdout")
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, identity string, opts enrollOptions) error {
	ctx := cmd.Context()

	id, err := parseIdentity(identity)
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

	frames, err := openFrames(opts.FramesPath)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.NewSession(pipeline.ModeEnrollment, id, time.Now()), ref, cfg.Pipeline(),
		options.WithLogger(logger),
	)

	var limiter *upload.Limiter
	if opts.UploadDir != "" {
		limiter = upload.NewLimiter(dirUploader(opts.UploadDir), cfg.Upload.Permits, options.WithLogger(logger), options.WithContext(ctx))
		p.WithUploads(limiter)
	}

	bar := progressbar.NewOptions(cfg.Registration.CenterQuota+cfg.Registration.MovementQuota,
		progressbar.OptionSetDescription("enrolling"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
	)

	events, unsubscribe := p.Events().Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range events {
			if e.Appended {
				_ = bar.Add(1)
			}
			if phase, ok := e.Phase.Get(); ok {
				bar.Describe("enrolling (" + phase.Kind.String() + ")")
			}
		}
	}()

	store, err := sugar.Enroll(ctx, p, frames)
	unsubscribe()
	<-done
	_ = bar.Finish()
	fmt.Fprintln(cmd.ErrOrStderr())

	if limiter != nil {
		limiter.Wait()
		if failures := limiter.Failures(); len(failures) > 0 {
			logger.Warn("some frame uploads failed", "count", len(failures))
		}
	}

	if err != nil {
		return fmt.Errorf("enrollment failed: %w", err)
	}

	if err := repo.Save(ctx, id, store); err != nil {
		return err
	}
	logger.Info("enrollment saved", "identity", id.String(), "records", store.Len(), "backend", cfg.Storage.Backend)

	if opts.PrintRequest {
		req, err := store.Request(id.UserID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(req)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "enrolled %s with %d records\n", id, store.Len())
	return nil
}

// dirUploader writes each image to dir/<session>/<frame>.jpg.
func dirUploader(dir string) upload.Uploader {
	return upload.UploaderFunc(func(ctx context.Context, item upload.Item) error {
		sessionDir := filepath.Join(dir, item.SessionID.String())
		if err := os.MkdirAll(sessionDir, 0o755); err != nil {
			return err
		}
		name := strconv.FormatUint(item.FrameIndex, 10) + ".jpg"
		return os.WriteFile(filepath.Join(sessionDir, name), item.Image, 0o644)
	})
}
