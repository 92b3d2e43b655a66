package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Store and catalog overrides. Empty values fall back to the
	// environment (see internal/config).
	Driver  string
	DB      string
	Catalog string
	EnvFile string

	// Now pins the engine clock to an RFC3339 instant.
	Now string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the stride CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stride",
		Short: "Stride - challenges and leaderboards",
		Long: `Stride runs time-boxed fitness challenges: users join, submit progress
events, unlock reward tiers and compete on leaderboards, solo or in teams.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Driver, "driver", "", "store driver: sqlite, postgres or memory (default $STRIDE_DB_DRIVER)")
	flags.StringVar(&opts.DB, "db", "", "path to SQLite database (default $STRIDE_DB_PATH)")
	flags.StringVar(&opts.Catalog, "catalog", "", "directory of .cue/.yaml templates merged over the built-ins")
	flags.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flags.StringVar(&opts.Now, "now", "", "pin the clock to an RFC3339 instant")

	// Add subcommands
	cmd.AddCommand(NewTemplatesCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewJoinCommand(opts))
	cmd.AddCommand(NewSubmitCommand(opts))
	cmd.AddCommand(NewWithdrawCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewLeaderboardCommand(opts))
	cmd.AddCommand(NewTeamsCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// formatter builds the OutputFormatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
