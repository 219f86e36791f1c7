package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Dicklesworthstone/toolguard/internal/core"
	"github.com/spf13/cobra"
)

func newPatternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect the built-in signature registry",
		Long: `Inspect the signatures used to classify tool calls.

Signatures are matched case-insensitively against the tool name and its
argument values. They are ordered from most to least severe and the first
match wins. The registry is compiled in; use 'toolguard policy' to tune the
allow and deny lists instead.`,
	}
	cmd.AddCommand(newPatternsListCmd(), newPatternsExportCmd(), newPatternsVersionCmd())
	return cmd
}

// PatternList is the output of `toolguard patterns list`.
type PatternList struct {
	Signatures []core.SignatureDetails `json:"signatures"`
}

// RenderText implements output.TextRenderer.
func (p PatternList) RenderText(w io.Writer) error {
	current := ""
	for _, s := range p.Signatures {
		if s.Level != current {
			current = s.Level
			fmt.Fprintf(w, "\n%s\n", strings.ToUpper(current))
		}
		fmt.Fprintf(w, "  %-22s %s\n  %-22s %s\n", s.Label, s.Reason, "", s.Pattern)
	}
	_, err := fmt.Fprintf(w, "\n%d signatures\n", len(p.Signatures))
	return err
}

func newPatternsListCmd() *cobra.Command {
	var level string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List signatures in match order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			filter := core.RiskLevel("")
			if level != "" {
				if filter = core.ParseRiskLevel(level); filter == "" {
					return fmt.Errorf("invalid level %q (must be critical, high, medium, low or safe)", level)
				}
			}

			list := PatternList{Signatures: []core.SignatureDetails{}}
			for _, s := range core.Export().Signatures {
				if filter == "" || core.RiskLevel(s.Level) == filter {
					list.Signatures = append(list.Signatures, s)
				}
			}
			return a.out.Write(list)
		},
	}
	cmd.Flags().StringVarP(&level, "level", "l", "", "only show one level")
	return cmd
}

func newPatternsExportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the registry for external tools",
		Long: `Export the registry with its version, SHA-256 and per-level counts.

Text output is JSON. Use --file to write it to a file instead of stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if file == "" && a.out.IsStructured() {
				return a.out.Write(core.Export())
			}

			data, err := core.ExportJSON()
			if err != nil {
				return fmt.Errorf("exporting registry: %w", err)
			}
			if file == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), data)
				return err
			}
			if err := os.WriteFile(file, []byte(data+"\n"), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", file, err)
			}
			a.out.Success(fmt.Sprintf("Exported %d signatures to %s", len(core.Signatures()), file))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "write the export to this file")
	return cmd
}

// PatternsVersion is the output of `toolguard patterns version`.
type PatternsVersion struct {
	Version        string         `json:"version"`
	SHA256         string         `json:"sha256"`
	SignatureCount int            `json:"signature_count"`
	LevelCounts    map[string]int `json:"level_counts"`
}

// RenderText implements output.TextRenderer.
func (v PatternsVersion) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "Version:    %s\n", v.Version)
	fmt.Fprintf(w, "SHA256:     %s\n", v.SHA256)
	fmt.Fprintf(w, "Signatures: %d\n", v.SignatureCount)
	for _, level := range core.RiskLevels() {
		if n := v.LevelCounts[string(level)]; n > 0 {
			fmt.Fprintf(w, "  %-9s %d\n", level, n)
		}
	}
	return nil
}

func newPatternsVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the registry version and hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			export := core.Export()
			return a.out.Write(PatternsVersion{
				Version:        export.Version,
				SHA256:         export.SHA256,
				SignatureCount: export.Metadata.SignatureCount,
				LevelCounts:    export.Metadata.LevelCounts,
			})
		},
	}
}
