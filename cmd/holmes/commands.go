package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Harshitk-cp/hyperholmes/internal/buildconfig"
	"github.com/Harshitk-cp/hyperholmes/internal/config"
	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/Harshitk-cp/hyperholmes/internal/inference"
	"github.com/Harshitk-cp/hyperholmes/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	verbose    bool
	jsonOutput bool
	rulesPath  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "holmes",
		Short:        "Reason over an investigation case file",
		SilenceUsage: true,
	}
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return config.Load()
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline progress to stderr")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")
	root.PersistentFlags().StringVar(&opts.rulesPath, "rules", "", "YAML file of extra inference rules")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newQueryCmd(opts),
		newAskCmd(opts),
		newStatusCmd(opts),
		newRulesCmd(),
		newVersionCmd(),
	)
	return root
}

func (o *options) logger() *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// loadCase builds a case service from the environment and imports the case file.
func (o *options) loadCase(path string) (*service.CaseService, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read case file: %w", err)
	}
	var cf domain.CaseFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("decode case file: %w", err)
	}

	logger := o.logger()
	cfg, err := service.ConfigFromEnv(logger)
	if err != nil {
		return nil, err
	}
	if o.rulesPath != "" {
		rules, err := inference.LoadRulesFile(o.rulesPath)
		if err != nil && len(rules) == 0 {
			return nil, err
		}
		if err != nil {
			logger.Warn("some rules were rejected", zap.String("path", o.rulesPath), zap.Error(err))
		}
		cfg.Rules = append(cfg.Rules, rules...)
	}

	svc, err := service.NewCaseService(cf.CaseID, cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, err := svc.ImportCase(cf); err != nil {
		return nil, err
	}
	return svc, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	var exportPath string
	cmd := &cobra.Command{
		Use:   "analyze <case.json>",
		Short: "Run inference, pattern detection, training and introspection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.loadCase(args[0])
			if err != nil {
				return err
			}
			report := svc.RunCompleteAnalysis()
			if exportPath != "" {
				if _, err := svc.ExportKnowledgeBase(exportPath); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, report)
			}
			s := report.Summary
			fmt.Fprintf(out, "Case %s\n", report.CaseID)
			fmt.Fprintf(out, "  atoms:             %d\n", s.TotalAtoms)
			fmt.Fprintf(out, "  inferences:        %d (%d iterations)\n", s.Inferences, report.Inference.Iterations)
			fmt.Fprintf(out, "  patterns detected: %d\n", s.PatternsDetected)
			fmt.Fprintf(out, "  patterns learned:  %d\n", s.PatternsLearned)
			fmt.Fprintf(out, "  leads:             %d (%d critical)\n", s.LeadsGenerated, s.CriticalLeads)
			fmt.Fprintf(out, "  knowledge gaps:    %d\n", s.KnowledgeGaps)
			fmt.Fprintf(out, "  coverage:          %.2f\n", report.Introspection.CoverageScore)
			if len(report.TopLeads) > 0 {
				fmt.Fprintln(out, "Top leads:")
				for _, l := range report.TopLeads {
					fmt.Fprintf(out, "  [%s] %s (%.2f)\n", l.Priority, l.Description, l.Confidence)
				}
			}
			if exportPath != "" {
				fmt.Fprintf(out, "Exported to %s\n", exportPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&exportPath, "export", "", "write the knowledge base export to this path")
	return cmd
}

func newQueryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "query <case.json> <HGNNQL command>",
		Short: "Run one HGNNQL command against the case",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.loadCase(args[0])
			if err != nil {
				return err
			}
			res := svc.QueryHGNNQL(strings.Join(args[1:], " "))
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.OK() {
				return fmt.Errorf("query failed: %s", res.Error)
			}
			return nil
		},
	}
}

func newAskCmd(opts *options) *cobra.Command {
	var infer bool
	cmd := &cobra.Command{
		Use:   "ask <case.json> <question>",
		Short: "Ask a question about the case",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.loadCase(args[0])
			if err != nil {
				return err
			}
			if infer {
				svc.RunCompleteAnalysis()
			}
			ans := svc.Reason(cmd.Context(), strings.Join(args[1:], " "))
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, ans)
			}
			fmt.Fprintln(out, ans.Answer)
			fmt.Fprintf(out, "confidence: %.2f\n", ans.Confidence)
			return nil
		},
	}
	cmd.Flags().BoolVar(&infer, "analyze", false, "run the full analysis before answering")
	return cmd
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <case.json>",
		Short: "Show component status for the imported case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.loadCase(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), svc.GetSystemStatus())
		},
	}
}

func newRulesCmd() *cobra.Command {
	rules := &cobra.Command{
		Use:   "rules",
		Short: "Work with declarative inference rule files",
	}
	rules.AddCommand(&cobra.Command{
		Use:   "validate <rules.yaml>",
		Short: "Check a rule file and list the rules it defines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := inference.LoadRulesFile(args[0])
			out := cmd.OutOrStdout()
			for _, r := range parsed {
				info := r.Info()
				fmt.Fprintf(out, "ok    %s (%s)\n", info.ID, info.Type)
			}
			if err != nil {
				fmt.Fprintf(out, "error %v\n", err)
				return fmt.Errorf("%d valid rule(s); file has errors", len(parsed))
			}
			return nil
		},
	})
	return rules
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildconfig.VersionInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "holmes %s (%s)\n", info["version"], info["commit"])
			return nil
		},
	}
}
