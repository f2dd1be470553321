package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/mediafilter/internal/filter"
	"github.com/solatis/mediafilter/internal/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate <filter.json>",
	Short: "Check a filter document against the field catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading filter: %w", err)
	}

	var options types.FilterOptions
	if err := json.Unmarshal(data, &options); err != nil {
		return fmt.Errorf("parsing filter: %w", err)
	}
	if err := filter.ValidateOptions(options); err != nil {
		return err
	}

	valid := filter.GetValidRules(options.Rules)
	fmt.Fprintf(cmd.OutOrStdout(), "ok: %d rules, %d effective\n", len(options.Rules), len(valid))
	return nil
}
