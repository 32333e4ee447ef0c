package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MauricioAndrades/react/internal/harness"
)

// validateResult is the JSON output of the validate command.
type validateResult struct {
	File  string `json:"file"`
	Name  string `json:"name,omitempty"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "validate <scenario.yaml>...",
		Short:         "Validate scenario files",
		Long:          "Parse and validate one or more scenario files without executing them.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args)
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, opts *RootOptions, paths []string) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	results := make([]validateResult, 0, len(paths))
	failed := false
	for _, path := range paths {
		res := validateOne(path)
		if !res.Valid {
			failed = true
		}
		results = append(results, res)
	}

	if opts.Format == "json" {
		if err := out.JSON(results); err != nil {
			return WrapExitError(ExitCommandError, "failed to encode results", err)
		}
	} else {
		for _, res := range results {
			if res.Valid {
				out.Textf("%s: ok (%s)\n", res.File, res.Name)
			} else {
				out.Textf("%s: invalid: %s\n", res.File, res.Error)
			}
		}
	}

	if failed {
		return NewExitError(ExitFailure, "one or more scenarios are invalid")
	}
	return nil
}

func validateOne(path string) validateResult {
	res := validateResult{File: path}

	if _, err := os.Stat(path); err != nil {
		res.Error = fmt.Sprintf("cannot read file: %v", err)
		return res
	}

	s, err := harness.LoadScenario(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Name = s.Name
	if err := s.Validate(); err != nil {
		res.Error = err.Error()
		return res
	}

	res.Valid = true
	return res
}
