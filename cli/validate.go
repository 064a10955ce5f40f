package cli

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/georgepadayatti/adesval/config"
	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/keys"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/validation"
	"github.com/georgepadayatti/adesval/validation/report"
)

// Report output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputXML  = "xml"
)

// ValidateOptions contains options for the validate command. Flags take
// precedence over the configuration file.
type ValidateOptions struct {
	ConfigFile     string
	PolicyFile     string
	TrustStores    []string
	InputFormat    string
	ValidationTime string
	Workers        int
	MetricsFile    string
	Output         string
	LogLevel       string
}

func newValidateCommand() *cobra.Command {
	var opts ValidateOptions
	cmd := &cobra.Command{
		Use:   "validate [flags] <diagnostic-data>",
		Short: "Validate the signatures of a diagnostic data document",
		Long: `Validate every signature of a diagnostic data document (JSON or CBOR, "-" reads
standard input). The exit code is 0 when every signature is TOTAL_PASSED,
2 when at least one is not, and 1 on errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, &opts, args[0])
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.ConfigFile, "config", "c", "", "Configuration file (YAML)")
	f.StringVarP(&opts.PolicyFile, "policy", "p", "", "Validation policy file (YAML or XML), the built-in policy when empty")
	f.StringArrayVarP(&opts.TrustStores, "trust-store", "t", nil, "PEM, DER or PKCS#7 file of trust anchors (repeatable)")
	f.StringVar(&opts.InputFormat, "format", "", "Diagnostic data format: json or cbor (default from the file extension)")
	f.StringVar(&opts.ValidationTime, "time", "", "Validation time (RFC 3339)")
	f.IntVarP(&opts.Workers, "workers", "w", 0, "Number of signatures validated at once (0 = one per CPU)")
	f.StringVar(&opts.MetricsFile, "metrics-file", "", "Write validation metrics to this file in the Prometheus text format")
	f.StringVarP(&opts.Output, "output", "o", OutputText, "Report format: text, json or xml")
	f.StringVar(&opts.LogLevel, "log-level", "", "Log level (overrides the configuration)")
	return cmd
}

// mergeConfig loads the configuration file, if any, and applies the flags
// that were set on the command line.
func mergeConfig(cmd *cobra.Command, opts *ValidateOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.LoadConfig(opts.ConfigFile); err != nil {
			return nil, err
		}
	}
	f := cmd.Flags()
	if f.Changed("policy") {
		cfg.Policy = opts.PolicyFile
	}
	for _, path := range opts.TrustStores {
		cfg.TrustStores = append(cfg.TrustStores, keys.TrustStore{Path: path})
	}
	if f.Changed("time") {
		cfg.ValidationTime = opts.ValidationTime
	}
	if f.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if f.Changed("metrics-file") {
		cfg.MetricsFile = opts.MetricsFile
	}
	if f.Changed("log-level") {
		cfg.Log.Level = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions, input string) error {
	switch opts.Output {
	case OutputText, OutputJSON, OutputXML:
	default:
		return fmt.Errorf("unknown output format %q", opts.Output)
	}
	cfg, err := mergeConfig(cmd, opts)
	if err != nil {
		return err
	}
	log, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	p, err := loadPolicy(cfg.Policy)
	if err != nil {
		return err
	}
	anchors, err := keys.LoadTrustAnchors(cfg.TrustStores)
	if err != nil {
		return err
	}
	d, err := readDiagnosticData(cmd.InOrStdin(), input, opts.InputFormat)
	if err != nil {
		return err
	}
	matched := d.MarkTrusted(anchors)
	log.WithFields(logrus.Fields{
		"input":   input,
		"anchors": len(anchors),
		"matched": matched,
	}).Debug("trust anchors loaded")

	execOpts := []validation.ExecutorOption{
		validation.WithWorkers(cfg.Workers),
		validation.WithLogger(log),
	}
	if vt, _ := cfg.ParsedValidationTime(); vt != nil {
		execOpts = append(execOpts, validation.WithValidationTime(*vt))
	}
	var reg *prometheus.Registry
	if cfg.MetricsFile != "" {
		reg = prometheus.NewRegistry()
		m, err := validation.NewMetrics(reg)
		if err != nil {
			return err
		}
		execOpts = append(execOpts, validation.WithMetrics(m))
	}

	rep, err := validation.NewExecutor(p, execOpts...).Validate(cmd.Context(), d)
	if err != nil {
		return err
	}
	if reg != nil {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, reg); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	if err := writeReport(cmd.OutOrStdout(), rep, opts.Output); err != nil {
		return err
	}

	for _, s := range rep.Signatures {
		if s.Indication != report.TotalPassed {
			return ErrNotPassed
		}
	}
	return nil
}

func loadPolicy(path string) (*policy.Policy, error) {
	if path == "" {
		return policy.Default()
	}
	return policy.Load(path)
}

func readDiagnosticData(stdin io.Reader, path, format string) (*diagnostic.DiagnosticData, error) {
	if format == "" && strings.EqualFold(filepath.Ext(path), ".cbor") {
		format = string(diagnostic.FormatCBOR)
	}
	if path == "-" {
		return diagnostic.Decode(stdin, diagnostic.Format(format))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open diagnostic data: %w", err)
	}
	defer f.Close()
	return diagnostic.Decode(f, diagnostic.Format(format))
}

func writeReport(w io.Writer, rep *report.Report, format string) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case OutputXML:
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	}
	writeText(w, rep)
	return nil
}

func writeText(w io.Writer, rep *report.Report) {
	fmt.Fprintf(w, "Policy:          %s\n", rep.Policy)
	fmt.Fprintf(w, "Validation time: %s\n", rep.ValidationTime.Format(time.RFC3339))
	fmt.Fprintf(w, "Signatures:      %d\n", len(rep.Signatures))
	for _, s := range rep.Signatures {
		fmt.Fprintln(w)
		verdict := string(s.Indication)
		if s.SubIndication != "" {
			verdict += "/" + string(s.SubIndication)
		}
		fmt.Fprintf(w, "%s: %s\n", s.SignatureID, verdict)
		fmt.Fprintf(w, "  Best signature time: %s\n", s.BestSignatureTime.Format(time.RFC3339))
		if s.Basic == nil {
			continue
		}
		if s.Basic.SigningCertificateID != "" {
			fmt.Fprintf(w, "  Signing certificate: %s\n", s.Basic.SigningCertificateID)
		}
		for _, m := range s.Basic.Conclusion.Errors {
			fmt.Fprintf(w, "  Error:   %s %s\n", m.Key, m.Value)
		}
		for _, m := range s.Basic.Conclusion.Warnings {
			fmt.Fprintf(w, "  Warning: %s %s\n", m.Key, m.Value)
		}
		for _, cs := range s.CounterSignatures {
			fmt.Fprintf(w, "  Counter-signature %s: %s\n", cs.TokenID, cs.Conclusion.Indication)
		}
	}
}
