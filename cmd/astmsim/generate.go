package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openlis/astmsim/fileout"
	"github.com/openlis/astmsim/generator"
	"github.com/openlis/astmsim/hl7"
	"github.com/openlis/astmsim/template"
)

var (
	flagGenFormat string
	flagGenSeed   int64
	flagGenOutput string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one result message and print it",
	Long: `Generate renders one result message for the configured analyzer type
without transmitting it. The astm and hl7 formats print to stdout; the
file format writes a delimited result file and prints its path.`,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&flagGenFormat, "format", "astm", "output format: astm, hl7, or file")
	f.Int64Var(&flagGenSeed, "seed", 0, "random seed for reproducible values (0 seeds from time)")
	f.StringVar(&flagGenOutput, "output", ".", "output directory for the file format")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	catalog, err := template.Load(s.TemplatesDir)
	if err != nil {
		return err
	}
	tpl := catalog.Get(s.AnalyzerType)

	rep := generator.New(tpl, generatorOptions(flagGenSeed)...).Report()

	switch strings.ToLower(flagGenFormat) {
	case "astm":
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(rep.Message().Lines(), "\n"))
	case "hl7":
		wire := strings.TrimSuffix(hl7.Render(rep), "\r")
		fmt.Fprintln(cmd.OutOrStdout(), strings.ReplaceAll(wire, "\r", "\n"))
	case "file":
		path, err := fileout.Write(flagGenOutput, rep)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	default:
		return fmt.Errorf("unknown format %q (use astm, hl7, or file)", flagGenFormat)
	}

	return nil
}
