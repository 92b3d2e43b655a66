package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stride/internal/catalog"
	"github.com/roach88/stride/internal/challenge"
	"github.com/roach88/stride/internal/engine"
)

// NewTemplatesCommand creates the templates command.
func NewTemplatesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List challenge templates",
		Long: `List the templates challenges can be created from: the built-in set plus
any templates loaded from --catalog.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app, f *OutputFormatter) error {
				templates := a.catalog.List()
				lines := make([]string, len(templates))
				for i, t := range templates {
					lines[i] = fmt.Sprintf("%-20s %s", t.ID, catalog.Describe(t))
				}
				return f.Success(templates, strings.Join(lines, "\n"))
			})
		},
	}
}

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Creator string
	Max     int
	Teams   bool
	Team    string
	Start   string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <template>",
		Short: "Create a challenge from a template",
		Long: `Create a challenge from a template. The creator is enrolled as the first
participant (and captain of --team when teams are enabled).

Examples:
  stride create steps-week --creator alice --max 20
  stride create step-battle --creator alice --max 50 --teams --team red
  stride create streak-30 --creator alice --max 10 --start 2025-04-01T00:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app, f *OutputFormatter) error {
				co := engine.CreateOptions{
					CreatorID:       opts.Creator,
					MaxParticipants: opts.Max,
					TeamsEnabled:    opts.Teams,
					CreatorTeamID:   opts.Team,
				}
				if opts.Start != "" {
					start, err := time.Parse(time.RFC3339, opts.Start)
					if err != nil {
						return WrapExitError(ExitCommandError, "invalid --start", err)
					}
					co.StartTime = start
				}
				c, err := a.engine.CreateChallenge(ctx, args[0], co)
				if err != nil {
					return f.Fail(err)
				}
				f.VerboseLog("created %s from %s", c.ID, c.TemplateID)
				return f.Success(c, fmt.Sprintf("Created %s (%s) running %s to %s, up to %s participants",
					c.ID, c.Template.Name,
					c.StartTime.Format(time.RFC3339), c.EndTime.Format(time.RFC3339),
					f.Sprintf("%d", c.MaxParticipants)))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Creator, "creator", "", "user id of the creator (required)")
	cmd.Flags().IntVar(&opts.Max, "max", 0, "maximum number of participants (required)")
	cmd.Flags().BoolVar(&opts.Teams, "teams", false, "enable team mode")
	cmd.Flags().StringVar(&opts.Team, "team", "", "team the creator captains (team mode)")
	cmd.Flags().StringVar(&opts.Start, "start", "", "RFC3339 start time (default now)")
	_ = cmd.MarkFlagRequired("creator")
	_ = cmd.MarkFlagRequired("max")

	return cmd
}

// NewJoinCommand creates the join command.
func NewJoinCommand(opts *RootOptions) *cobra.Command {
	var team string

	cmd := &cobra.Command{
		Use:   "join <challenge> <user>",
		Short: "Enroll a user in a challenge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, f *OutputFormatter) error {
				p, err := a.engine.JoinChallenge(ctx, args[0], args[1], team)
				if err != nil {
					return f.Fail(err)
				}
				text := fmt.Sprintf("%s joined %s", p.UserID, args[0])
				if p.TeamID != "" {
					text += fmt.Sprintf(" on team %s as %s", p.TeamID, p.Role)
				}
				return f.Success(p, text)
			})
		},
	}

	cmd.Flags().StringVar(&team, "team", "", "team to join or found (team mode)")
	return cmd
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(opts *RootOptions) *cobra.Command {
	var values []string

	cmd := &cobra.Command{
		Use:   "submit <challenge> <user>",
		Short: "Submit a progress event",
		Long: `Submit one progress event. Each --value is key=number; true and false are
accepted for completion metrics.

Examples:
  stride submit c-1 alice --value steps=10000
  stride submit c-2 alice --value completedToday=true
  stride submit c-3 bob --value dailyTarget=30 --value dailyActual=24`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := parseValues(values)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --value", err)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app, f *OutputFormatter) error {
				res, err := a.engine.SubmitProgress(ctx, args[0], args[1], ev)
				if err != nil {
					return f.Fail(err)
				}
				return f.Success(res, describeSubmit(f, res))
			})
		},
	}

	cmd.Flags().StringArrayVar(&values, "value", nil, "metric value as key=number (repeatable)")
	return cmd
}

// parseValues turns key=value flags into an event.
func parseValues(values []string) (challenge.Event, error) {
	ev := challenge.Event{Values: make(map[string]float64, len(values))}
	for _, kv := range values {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return ev, fmt.Errorf("%q: want key=value", kv)
		}
		switch strings.ToLower(raw) {
		case "true":
			ev.Values[key] = 1
		case "false":
			ev.Values[key] = 0
		default:
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return ev, fmt.Errorf("%q: %w", kv, err)
			}
			ev.Values[key] = v
		}
	}
	return ev, nil
}

func describeSubmit(f *OutputFormatter, res *engine.SubmitResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Progress %s, rank %d", f.Sprintf("%.2f", res.Progress), res.Rank)
	if res.TeamProgress != nil {
		fmt.Fprintf(&b, ", team %s", f.Sprintf("%.2f", *res.TeamProgress))
	}
	for _, a := range res.NewAchievements {
		fmt.Fprintf(&b, "\nUnlocked %s (+%d points, badge %s)", a.TierName, a.Points, a.Badge)
	}
	return b.String()
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <challenge> <user>",
		Short: "Withdraw a participant from a challenge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, f *OutputFormatter) error {
				if err := a.engine.WithdrawParticipant(ctx, args[0], args[1]); err != nil {
					return f.Fail(err)
				}
				return f.Success(map[string]string{"challenge": args[0], "user": args[1]},
					fmt.Sprintf("%s withdrew from %s", args[1], args[0]))
			})
		},
	}
}

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <challenge>",
		Short: "Archive a challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, f *OutputFormatter) error {
				if err := a.engine.ArchiveChallenge(ctx, args[0]); err != nil {
					return f.Fail(err)
				}
				return f.Success(map[string]string{"challenge": args[0], "status": string(challenge.StatusArchived)},
					fmt.Sprintf("Archived %s", args[0]))
			})
		},
	}
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Complete every challenge whose window has closed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, f *OutputFormatter) error {
				n, err := a.engine.SweepExpired(ctx)
				if err != nil {
					return f.Fail(err)
				}
				return f.Success(map[string]int{"completed": n}, fmt.Sprintf("Completed %d challenges", n))
			})
		},
	}
}
