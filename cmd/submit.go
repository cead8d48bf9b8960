package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitekit/internal/config"
	"github.com/conneroisu/sitekit/internal/contact"
	"github.com/conneroisu/sitekit/internal/dispatch"
	"github.com/conneroisu/sitekit/internal/form"
	"github.com/conneroisu/sitekit/internal/logging"
	"github.com/conneroisu/sitekit/internal/tracking"
)

var (
	submitFields       form.Fields
	submitValidateOnly bool
	submitOutput       *OutputFlags
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Send one contact submission to the configured destinations",
	Long: `Send one contact submission through the same validate, dispatch, track
and present flow the site uses. Useful for checking that the webhook and
relay are reachable before going live.

Examples:
  sitekit submit --name Ada --email ada@example.com --message "Hello"
  sitekit submit --name Ada --email ada@example.com --validate-only
  sitekit submit ... --output json`,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVar(&submitFields.Name, "name", "", "Sender name")
	submitCmd.Flags().StringVar(&submitFields.Email, "email", "", "Sender email")
	submitCmd.Flags().StringVar(&submitFields.Phone, "phone", "", "Sender phone")
	submitCmd.Flags().StringVar(&submitFields.Message, "message", "", "Message body")
	submitCmd.Flags().BoolVar(&submitValidateOnly, "validate-only", false, "Check the fields without sending")
	submitOutput = AddOutputFlags(submitCmd, FormatTable)
}

// SubmitReport is the printed result of a submission.
type SubmitReport struct {
	Kind         string              `json:"kind" yaml:"kind"`
	Text         string              `json:"text" yaml:"text"`
	SubmissionID string              `json:"submission_id,omitempty" yaml:"submission_id,omitempty"`
	ConversionID string              `json:"conversion_id,omitempty" yaml:"conversion_id,omitempty"`
	Destinations []DestinationReport `json:"destinations,omitempty" yaml:"destinations,omitempty"`
	Pixel        []tracking.Command  `json:"pixel,omitempty" yaml:"pixel,omitempty"`
}

// DestinationReport is one destination's part of a SubmitReport.
type DestinationReport struct {
	Name       string `json:"name" yaml:"name"`
	Role       string `json:"role" yaml:"role"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	service := newContactService(cfg, logger)

	if submitValidateOnly {
		if err := service.Validator().Validate(submitFields); err != nil {
			return err
		}
		if !submitOutput.Quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "Fields are valid.")
		}
		return nil
	}

	pixel := tracking.NewRecorder()
	res := service.Submit(cmd.Context(), submitFields, pixel)
	report := newSubmitReport(res, pixel.Commands())

	if err := submitOutput.Write(cmd.OutOrStdout(), report, report.table); err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("submission failed: %s", res.Message.Text)
	}
	return nil
}

func newContactService(cfg *config.Config, logger logging.Logger) *contact.Service {
	d := dispatch.New(logger, cfg.Endpoints().Destinations())
	return contact.NewService(d, contact.Options{
		Policy:         cfg.Form.Policy,
		Source:         cfg.Form.Source,
		SuccessMessage: cfg.Form.SuccessMessage,
		ClearAfter:     cfg.Form.ClearAfter,
		PixelAccountID: cfg.Pixel.AccountID,
		Now:            time.Now,
	}, logger)
}

func newSubmitReport(res contact.Result, pixel []tracking.Command) SubmitReport {
	r := SubmitReport{
		Kind:         string(res.Message.Kind),
		Text:         res.Message.Text,
		ConversionID: res.ConversionID,
		Pixel:        pixel,
	}
	if res.Outcome != nil {
		r.SubmissionID = res.Outcome.SubmissionID
		for _, dr := range res.Outcome.Results {
			d := DestinationReport{
				Name:       dr.Destination,
				Role:       dr.Role.String(),
				DurationMs: dr.Duration.Milliseconds(),
			}
			if dr.Err != nil {
				d.Error = dr.Err.Error()
			}
			r.Destinations = append(r.Destinations, d)
		}
	}
	return r
}

func (r SubmitReport) table(w io.Writer) error {
	fmt.Fprintf(w, "%s: %s\n", r.Kind, r.Text)
	if r.SubmissionID != "" {
		fmt.Fprintf(w, "Submission: %s\n", r.SubmissionID)
	}
	if r.ConversionID != "" {
		fmt.Fprintf(w, "Conversion: %s\n", r.ConversionID)
	}
	if len(r.Destinations) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DESTINATION\tROLE\tRESULT\tDURATION")
	for _, d := range r.Destinations {
		result := "ok"
		if d.Error != "" {
			result = d.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%dms\n", d.Name, d.Role, result, d.DurationMs)
	}
	return tw.Flush()
}
