package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HaiFongPan/dermascan-cli/internal/remote"
	"github.com/HaiFongPan/dermascan-cli/internal/session"
	"github.com/HaiFongPan/dermascan-cli/internal/utils"
)

var (
	scanOutput     string
	scanUploadOnly bool
	scanNoProgress bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Upload an image and analyze it without the TUI",
	Long: `Upload a lesion photo to the analysis service, run the analysis and print
the result.

Examples:
  dermascan scan lesion.jpg                 # Upload, analyze, print text
  dermascan scan lesion.jpg --output json   # Print the result as JSON
  dermascan scan lesion.jpg --upload-only   # Only upload, print the reference`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "text", "output format (text, json)")
	scanCmd.Flags().BoolVar(&scanUploadOnly, "upload-only", false, "stop after the upload")
	scanCmd.Flags().BoolVar(&scanNoProgress, "no-progress", false, "disable progress bar")
}

// scanService is what the headless scan needs from the service client
type scanService interface {
	Upload(ctx context.Context, file *session.CandidateFile) (string, error)
	Analyze(ctx context.Context, ref string) (session.Result, error)
}

type scanReport struct {
	File           string   `json:"file"`
	Reference      string   `json:"reference"`
	Classification string   `json:"classification,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"` // nil until analyzed, 0 is a real value
	ConfidenceText string   `json:"confidence_text,omitempty"`
	Description    string   `json:"description,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if scanOutput != "text" && scanOutput != "json" {
		return fmt.Errorf("invalid output format: %s (use: text, json)", scanOutput)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []remote.Option
	var bar *utils.ProgressBar
	if !scanNoProgress && !quiet {
		bar = utils.NewProgressBar(os.Stderr, fmt.Sprintf("Uploading %s", args[0]))
		opts = append(opts, remote.WithUploadProgress(bar.Update))
	}
	client := remote.NewClient(cfg.Service, opts...)

	file, err := utils.LoadCandidate(args[0], int64(cfg.Service.MaxUploadMB)<<20)
	if err != nil {
		return err
	}

	state, err := scanFile(ctx, client, file, !scanUploadOnly, func() {
		if bar != nil {
			bar.Finish()
		}
		if !quiet && !scanUploadOnly {
			fmt.Fprintf(os.Stderr, "Analyzing %s...\n", file.Name)
		}
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), state)
}

// scanFile drives one session to completion. afterUpload runs once the
// upload has settled successfully.
func scanFile(ctx context.Context, svc scanService, file *session.CandidateFile, analyze bool, afterUpload func()) (session.State, error) {
	ev := session.Select([]*session.CandidateFile{file}, utils.Validator())
	state, effects := session.State{}.Apply(ev)
	state = runEffects(ctx, svc, state, effects)
	if state.Err != nil {
		return state, state.Err
	}
	if afterUpload != nil {
		afterUpload()
	}
	if !analyze {
		return state, nil
	}

	state, effects = state.Apply(session.AnalyzeRequested{})
	state = runEffects(ctx, svc, state, effects)
	if state.Err != nil {
		return state, state.Err
	}
	return state, nil
}

// runEffects performs effects synchronously until none remain. Previews are
// not needed without a screen.
func runEffects(ctx context.Context, svc scanService, state session.State, effects []session.Effect) session.State {
	for len(effects) > 0 {
		var next []session.Effect
		for _, effect := range effects {
			var more []session.Effect
			switch e := effect.(type) {
			case session.StartUpload:
				ref, err := svc.Upload(ctx, e.File)
				state, more = state.Apply(session.UploadSettled{Generation: e.Generation, Ref: ref, Err: err})
			case session.StartAnalyze:
				result, err := svc.Analyze(ctx, e.Ref)
				state, more = state.Apply(session.AnalyzeSettled{Generation: e.Generation, Result: result, Err: err})
			default:
				logrus.Debugf("scan: skipping %T", effect)
			}
			next = append(next, more...)
		}
		effects = next
	}
	return state
}

func writeReport(w io.Writer, state session.State) error {
	report := scanReport{Reference: state.RemoteRef}
	if state.File != nil {
		report.File = state.File.Name
	}
	if state.Result != nil {
		report.Classification = state.Result.Classification
		confidence := state.Result.Confidence
		report.Confidence = &confidence
		report.ConfidenceText = state.Result.ConfidenceText()
		report.Description = state.Result.Description
	}

	if scanOutput == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(w, "File:           %s\n", report.File)
	fmt.Fprintf(w, "Reference:      %s\n", report.Reference)
	if state.Result != nil {
		fmt.Fprintf(w, "Classification: %s\n", report.Classification)
		fmt.Fprintf(w, "Confidence:     %s\n", report.ConfidenceText)
		fmt.Fprintf(w, "Description:    %s\n", report.Description)
	}
	return nil
}
