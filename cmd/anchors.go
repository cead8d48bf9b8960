package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitekit/internal/anchor"
)

var (
	anchorsAllowMissing bool
	anchorsTimeout      time.Duration
	anchorsOutput       *OutputFlags
)

var anchorsCmd = &cobra.Command{
	Use:   "anchors <file|url|->",
	Short: "Check that every same-page link has a target",
	Long: `Parse an HTML page and list its #hash links. Links whose target id is not
on the page are reported and make the command fail.

Examples:
  sitekit anchors index.html
  sitekit anchors http://localhost:8080/
  curl -s https://example.com | sitekit anchors -`,
	Args: cobra.ExactArgs(1),
	RunE: runAnchors,
}

func init() {
	rootCmd.AddCommand(anchorsCmd)

	anchorsCmd.Flags().BoolVar(&anchorsAllowMissing, "allow-missing", false, "Report missing targets without failing")
	anchorsCmd.Flags().DurationVar(&anchorsTimeout, "timeout", 10*time.Second, "Fetch timeout for URLs")
	anchorsOutput = AddOutputFlags(anchorsCmd, FormatTable)
}

func runAnchors(cmd *cobra.Command, args []string) error {
	body, err := openPage(cmd, args[0])
	if err != nil {
		return err
	}
	defer body.Close()

	report, err := anchor.Scan(body)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	if err := anchorsOutput.Write(cmd.OutOrStdout(), report, func(w io.Writer) error {
		return anchorTable(w, report)
	}); err != nil {
		return err
	}
	if !report.OK() && !anchorsAllowMissing {
		return fmt.Errorf("%d link target(s) missing: %v", len(report.Missing), report.Missing)
	}
	return nil
}

func openPage(cmd *cobra.Command, src string) (io.ReadCloser, error) {
	switch {
	case src == "-":
		return io.NopCloser(cmd.InOrStdin()), nil
	case isURL(src):
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		resp, err := (&http.Client{Timeout: anchorsTimeout}).Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("%s: status %d", src, resp.StatusCode)
		}
		return resp.Body, nil
	default:
		return os.Open(src)
	}
}

func anchorTable(w io.Writer, report anchor.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HREF\tTARGET\tTEXT")
	for _, l := range report.Links {
		target := "ok"
		if !l.Target {
			target = "missing"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Href, target, l.Text)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d links, %d ids, %d missing\n", len(report.Links), len(report.IDs), len(report.Missing))
	return nil
}
