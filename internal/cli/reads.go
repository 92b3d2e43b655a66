package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stride/internal/challenge"
)

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <challenge>",
		Short: "Show a challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, f *OutputFormatter) error {
				c, err := a.engine.GetChallenge(ctx, args[0])
				if err != nil {
					return f.Fail(err)
				}
				return f.Success(c, describeChallenge(f, c))
			})
		},
	}
}

func describeChallenge(f *OutputFormatter, c *challenge.Challenge) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s (%s)\n", c.ID, c.Template.Name, c.Template.Kind)
	fmt.Fprintf(&b, "status   %s\n", c.Status)
	fmt.Fprintf(&b, "window   %s .. %s\n", c.StartTime.Format(time.RFC3339), c.EndTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "players  %s/%s", f.Sprintf("%d", len(c.Participants)), f.Sprintf("%d", c.MaxParticipants))
	if c.TeamsEnabled {
		fmt.Fprintf(&b, "\nteams    %s", strings.Join(c.TeamIDs(), ", "))
	}
	return b.String()
}

// NewLeaderboardCommand creates the leaderboard command.
func NewLeaderboardCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard <challenge>",
		Short: "Show the ranking of a challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, f *OutputFormatter) error {
				entries, err := a.engine.GetLeaderboard(ctx, args[0], limit)
				if err != nil {
					return f.Fail(err)
				}
				return f.Success(entries, table(func(w *tabwriter.Writer) {
					fmt.Fprintln(w, "RANK\tUSER\tTEAM\tPROGRESS")
					for _, e := range entries {
						fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Rank, e.UserID, e.TeamID, f.Sprintf("%d", e.DisplayProgress))
					}
				}))
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of entries (0 for all)")
	return cmd
}

// NewTeamsCommand creates the teams command.
func NewTeamsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "teams <challenge>",
		Short: "Show the team ranking of a team-mode challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, f *OutputFormatter) error {
				standings, err := a.engine.GetTeamLeaderboard(ctx, args[0])
				if err != nil {
					return f.Fail(err)
				}
				return f.Success(standings, table(func(w *tabwriter.Writer) {
					fmt.Fprintln(w, "RANK\tTEAM\tMEMBERS\tPROGRESS")
					for _, s := range standings {
						fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", s.Rank, s.TeamID, s.Members, f.Sprintf("%.2f", s.Progress))
					}
				}))
			})
		},
	}
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user>",
		Short: "Summarize a user's challenges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, f *OutputFormatter) error {
				stats, err := a.engine.GetUserChallengeStats(ctx, args[0])
				if err != nil {
					return f.Fail(err)
				}
				best := "-"
				if stats.BestRank > 0 {
					best = fmt.Sprintf("#%d", stats.BestRank)
				}
				return f.Success(stats, f.Sprintf("%s: %d challenges, %d points, %d achievements, best rank %s",
					stats.UserID, stats.TotalChallenges, stats.TotalPoints, stats.AchievementCount, best))
			})
		},
	}
}

// table renders rows through a tabwriter.
func table(fill func(w *tabwriter.Writer)) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fill(w)
	w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}
