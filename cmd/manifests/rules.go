package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the effective rules as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		r, _, err := loadRules()
		if err != nil {
			return err
		}
		blob, err := r.YAML()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(blob)
		return err
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
