package commands

import (
	"context"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/robalyx/toxguard/internal/database/types"
	"github.com/robalyx/toxguard/internal/database/types/enum"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// StrikeCommands returns the commands inspecting and resetting offense records.
func StrikeCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "strikes",
			Usage: "Inspect and manage user strikes",
			Commands: []*cli.Command{
				{
					Name:      "history",
					Usage:     "Show the strike history of a user",
					ArgsUsage: "GUILD_ID USER_ID",
					Action:    handleStrikeHistory(deps),
				},
				{
					Name:      "reset",
					Usage:     "Reset the strikes of a user",
					ArgsUsage: "GUILD_ID USER_ID",
					Description: `Zero the strike count of a user and clear their history.
The next violation is treated as a first offense.

Example:
  db strikes reset 123456789012345678 876543210987654321`,
					Action: handleStrikeReset(deps),
				},
				{
					Name:      "top",
					Usage:     "List the users with the most strikes in a guild",
					ArgsUsage: "GUILD_ID",
					Flags: []cli.Flag{
						&cli.IntFlag{
							Name:    "limit",
							Usage:   "Number of users to list",
							Value:   20,
							Aliases: []string{"l"},
						},
					},
					Action: handleStrikeTop(deps),
				},
			},
		},
	}
}

// handleStrikeHistory handles the 'strikes history' command.
func handleStrikeHistory(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		guildID, userID, err := guildUserArgs(c)
		if err != nil {
			return err
		}

		record, err := deps.DB.Model().Offense().Get(ctx, guildID, userID)
		if err != nil {
			return err
		}

		if record.IsClean() {
			fmt.Println("No strikes recorded")
			return nil
		}

		fmt.Printf("Strikes: %d (last offense %s)\n\n", record.StrikeCount, record.LastOffenseAt.Format(time.RFC3339))

		history := slices.Clone(record.History)
		slices.SortFunc(history, func(a, b *types.OffenseEntry) int {
			return a.Strike - b.Strike
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STRIKE\tTIME\tSCORE\tACTION\tMESSAGE")

		for _, entry := range history {
			fmt.Fprintf(w, "%d\t%s\t%.2f\t%s\t%d\n",
				entry.Strike, entry.CreatedAt.Format(time.RFC3339), entry.Score, actionLabel(entry.Action, entry.Duration), entry.MessageID)
		}

		return w.Flush()
	}
}

// handleStrikeReset handles the 'strikes reset' command.
func handleStrikeReset(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		guildID, userID, err := guildUserArgs(c)
		if err != nil {
			return err
		}

		if err := deps.DB.Model().Offense().Reset(ctx, guildID, userID); err != nil {
			return err
		}

		if err := deps.DB.Model().ModerationLog().Log(ctx, &types.ModerationLog{
			Kind:      enum.LogKindReset,
			GuildID:   guildID,
			UserID:    userID,
			Details:   "reset from command line",
			CreatedAt: time.Now(),
		}); err != nil {
			deps.Logger.Warn("Failed to record reset in audit log", zap.Error(err))
		}

		deps.Logger.Info("Reset strikes",
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID))

		return nil
	}
}

// handleStrikeTop handles the 'strikes top' command.
func handleStrikeTop(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() != 1 {
			return ErrGuildMissing
		}

		guildID, err := parseID(c.Args().First())
		if err != nil {
			return err
		}

		records, err := deps.DB.Model().Offense().GetTopOffenders(ctx, guildID, max(int(c.Int("limit")), 1))
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No strikes recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tSTRIKES\tLAST OFFENSE")

		for _, record := range records {
			fmt.Fprintf(w, "%d\t%d\t%s\n", record.UserID, record.StrikeCount, record.LastOffenseAt.Format(time.RFC3339))
		}

		return w.Flush()
	}
}

func guildUserArgs(c *cli.Command) (uint64, uint64, error) {
	if c.Args().Len() != 2 {
		return 0, 0, ErrGuildUserMissing
	}

	guildID, err := parseID(c.Args().Get(0))
	if err != nil {
		return 0, 0, err
	}

	userID, err := parseID(c.Args().Get(1))
	if err != nil {
		return 0, 0, err
	}

	return guildID, userID, nil
}

func actionLabel(action enum.ActionKind, duration time.Duration) string {
	if action == enum.ActionKindTimeout {
		return fmt.Sprintf("%s (%s)", action, duration)
	}

	return action.String()
}
