package main

import (
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/xswordsx/imgcompare"
	"github.com/xswordsx/imgcompare/internal/logging"
)

type compareOutput struct {
	ImageA   string            `json:"image_a"`
	ImageB   string            `json:"image_b"`
	Message  string            `json:"message"`
	DiffPath string            `json:"diff_path,omitempty"`
	Result   imgcompare.Result `json:"result"`
}

type compareOutcome struct {
	res imgcompare.Result
	err error
}

func newCompareCommand(ctx *commandContext) *cobra.Command {
	var diffPath string
	var jsonOutput bool
	var labelA, labelB string

	cmd := &cobra.Command{
		Use:   "compare IMAGE_A IMAGE_B",
		Short: "Score the similarity of two image files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			engine, err := ctx.newEngine()
			if err != nil {
				return err
			}
			ticker, err := cfg.Ticker()
			if err != nil {
				return err
			}

			blobA, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image A: %w", err)
			}
			blobB, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read image B: %w", err)
			}
			if strings.TrimSpace(labelA) == "" {
				labelA = filepath.Base(args[0])
			}
			if strings.TrimSpace(labelB) == "" {
				labelB = filepath.Base(args[1])
			}

			session := imgcompare.NewSession(engine, imgcompare.SessionOptions{
				Classifier: cfg.Classifier(),
				Progress:   ticker,
				Logger:     logging.NewComponentLogger(logger, "session"),
			})

			stderr := cmd.ErrOrStderr()
			progress := newProgressLine(stderr, shouldColorize(stderr), logger)
			defer progress.stop()
			session.OnProgress(progress.update)
			done := make(chan compareOutcome, 1)
			session.OnResult(func(res imgcompare.Result, err error) {
				done <- compareOutcome{res, err}
			})

			if err := session.SubmitImage(imgcompare.SlotA, blobA, labelA); err != nil {
				return err
			}
			if err := session.SubmitImage(imgcompare.SlotB, blobB, labelB); err != nil {
				return err
			}

			var out compareOutcome
			select {
			case out = <-done:
			case <-cmd.Context().Done():
				session.Reset()
				return cmd.Context().Err()
			}
			progress.stop()
			if out.err != nil {
				return out.err
			}

			written := ""
			if diffPath != "" && out.res.Diff != nil {
				if err := writeDiff(diffPath, out.res); err != nil {
					return err
				}
				written = diffPath
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(compareOutput{
					ImageA:   labelA,
					ImageB:   labelB,
					Message:  out.res.Message(),
					DiffPath: written,
					Result:   out.res,
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, renderTable(
				[]string{"Field", "Value"},
				compareRows(labelA, len(blobA), labelB, len(blobB), out.res),
			))
			fmt.Fprintln(w, out.res.Message())
			switch {
			case written != "":
				fmt.Fprintf(w, "Diff image written to %s\n", written)
			case diffPath != "" && out.res.Override:
				fmt.Fprintln(w, "No diff image for a special-case match")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&diffPath, "diff", "d", "", "Write the difference image as PNG to this path")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	cmd.Flags().StringVar(&labelA, "label-a", "", "Label for image A (defaults to its file name)")
	cmd.Flags().StringVar(&labelB, "label-b", "", "Label for image B (defaults to its file name)")
	return cmd
}

func compareRows(labelA string, sizeA int, labelB string, sizeB int, res imgcompare.Result) [][]string {
	rows := [][]string{
		{"Image A", fmt.Sprintf("%s (%s)", labelA, humanize.Bytes(uint64(sizeA)))},
		{"Image B", fmt.Sprintf("%s (%s)", labelB, humanize.Bytes(uint64(sizeB)))},
		{"Score", strconv.FormatFloat(res.Score, 'f', 2, 64) + "%"},
		{"Verdict", res.Label},
		{"Special case", yesNo(res.Override)},
	}
	if !res.Override {
		rows = append(rows,
			[]string{"Compared at", fmt.Sprintf("%dx%d", res.Width, res.Height)},
			[]string{"Mismatched pixels", humanize.Comma(int64(res.PixelsFailed))},
		)
	}
	return rows
}

func writeDiff(path string, res imgcompare.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create diff image: %w", err)
	}
	if err := png.Encode(f, res.Diff); err != nil {
		f.Close()
		return fmt.Errorf("encode diff image: %w", err)
	}
	return f.Close()
}
