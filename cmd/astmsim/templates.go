package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openlis/astmsim/template"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the analyzer templates in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings(cmd)
		if err != nil {
			return err
		}

		catalog, err := template.Load(s.TemplatesDir)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tANALYZER\tPROTOCOL\tFIELDS")
		for _, typ := range catalog.Types() {
			tpl := catalog.Get(typ)
			fmt.Fprintf(w, "%s\t%s\t%s %s\t%d\n",
				typ, tpl.Analyzer.Name, tpl.Protocol.Type, tpl.Protocol.Version, len(tpl.Fields))
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
