package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitekit/internal/logo"
)

var (
	logoBase    string
	logoExts    []string
	logoTimeout time.Duration
	logoOutput  *OutputFlags
)

var logoCmd = &cobra.Command{
	Use:   "logo [dir|url]",
	Short: "Show which logo format loads",
	Long: `Try the logo candidates in order (svg, png, jpg, jpeg by default) against a
directory or a base URL and report the first one that loads, or that the
text logo will be shown.

Examples:
  sitekit logo                           # Check logo.dir from the config
  sitekit logo ./public
  sitekit logo https://example.com/ --output json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogo,
}

func init() {
	rootCmd.AddCommand(logoCmd)

	logoCmd.Flags().StringVar(&logoBase, "base", "", "Logo base name (default logo.base_name)")
	logoCmd.Flags().StringSliceVar(&logoExts, "ext", nil, "Extensions to try, in order (default logo.extensions)")
	logoCmd.Flags().DurationVar(&logoTimeout, "timeout", 10*time.Second, "Per-candidate timeout for URLs")
	logoOutput = AddOutputFlags(logoCmd, FormatTable)
}

// LogoReport is the printed result of a logo check.
type LogoReport struct {
	Source   string   `json:"source" yaml:"source"`
	State    string   `json:"state" yaml:"state"`
	Src      string   `json:"src,omitempty" yaml:"src,omitempty"`
	Fallback string   `json:"fallback_text,omitempty" yaml:"fallback_text,omitempty"`
	Tried    []string `json:"tried" yaml:"tried"`
}

func runLogo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source := cfg.Logo.Dir
	if len(args) == 1 {
		source = args[0]
	}
	base := cfg.Logo.BaseName
	if logoBase != "" {
		base = logoBase
	}
	exts := cfg.Logo.Extensions
	if len(logoExts) > 0 {
		exts = logoExts
	}

	loader := logo.NewLoader(base, exts)
	report := LogoReport{Source: source, Tried: []string{}}

	prober := logo.Prober(logo.DirProber{Dir: source})
	if isURL(source) {
		prober = logo.HTTPProber{BaseURL: source, Client: &http.Client{Timeout: logoTimeout}}
	}

	tracing := logo.ProberFunc(func(ctx context.Context, name string) error {
		report.Tried = append(report.Tried, name)
		return prober.Probe(ctx, name)
	})
	state, err := logo.Resolve(cmd.Context(), loader, tracing)
	if err != nil {
		return err
	}

	report.State = state.String()
	if state == logo.StateLoaded {
		report.Src, _ = loader.Current()
	} else {
		report.Fallback = cfg.Logo.FallbackText
	}
	return logoOutput.Write(cmd.OutOrStdout(), report, report.table)
}

func (r LogoReport) table(w io.Writer) error {
	fmt.Fprintf(w, "Source: %s\n", r.Source)
	fmt.Fprintf(w, "Tried:  %s\n", strings.Join(r.Tried, ", "))
	if r.Src != "" {
		fmt.Fprintf(w, "Logo:   %s\n", r.Src)
		return nil
	}
	fmt.Fprintf(w, "Logo:   text fallback %q\n", r.Fallback)
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
