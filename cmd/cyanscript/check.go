package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/CharlieHasAHeart/CyanScript/internal/cli"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/analysis"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file.docx>",
		Short: "Report split placeholders and compatibility problems in a template or output",
		Long: `check inspects a .docx without changing it.

  template  placeholders split across runs, body styles used in headers,
            footers, tables or text boxes, fields pulling external content
  output    external relationships and embedded objects
  all       both

It exits with status 2 when anything is found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modeFlag, _ := cmd.Flags().GetString("mode")
			mode, err := analysis.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			bodyStyles, _ := cmd.Flags().GetStringSlice("body-styles")
			format, _ := cmd.Flags().GetString("output-format")
			_, err = cli.Check(cli.CheckOptions{
				Path:       args[0],
				Mode:       mode,
				BodyStyles: bodyStyles,
				Format:     converter.OutputFormat(strings.ToLower(format)),
			}, commandLogger(cmd), cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().String("mode", string(analysis.ModeTemplate), "What to check: template, output or all")
	cmd.Flags().StringSlice("body-styles", nil, "Body paragraph style names (default: 正文,Normal)")
	cmd.Flags().String("output-format", string(converter.OutputFormatText), "Result format: text, json, yaml or toml")
	return cmd
}

func newFixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix <template.docx>",
		Short: "Merge split placeholders and clean the anchor paragraph of a template",
		Long: `fix writes a repaired copy of a template: placeholders Word split across
runs become single runs, and the paragraph holding the anchor is reduced to
one run containing exactly {{anchor}}. The source file is left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			anchor, _ := cmd.Flags().GetString("anchor")
			force, _ := cmd.Flags().GetBool("force")
			_, err := cli.Fix(cli.FixOptions{
				Path:   args[0],
				Out:    out,
				Anchor: anchor,
				Force:  force,
			}, commandLogger(cmd), cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().String("out", "", `Repaired copy (default: "<name>_fixed.docx" next to the source)`)
	cmd.Flags().String("anchor", converter.DefaultAnchor, "Placeholder marking the content paragraph")
	cmd.Flags().BoolP("force", "f", false, "Overwrite an existing repaired copy")
	return cmd
}
