package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/robalyx/toxguard/internal/database/types"
	"github.com/urfave/cli/v3"
)

// LogCommands returns the commands reading the moderation audit log.
func LogCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:      "logs",
			Usage:     "Show the moderation audit log of a guild, newest first",
			ArgsUsage: "GUILD_ID",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "limit",
					Usage:   "Number of entries per page",
					Value:   25,
					Aliases: []string{"l"},
				},
				&cli.IntFlag{
					Name:    "pages",
					Usage:   "Number of pages to print",
					Value:   1,
					Aliases: []string{"p"},
				},
			},
			Action: handleLogs(deps),
		},
	}
}

// handleLogs handles the 'logs' command.
func handleLogs(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() != 1 {
			return ErrGuildMissing
		}

		guildID, err := parseID(c.Args().First())
		if err != nil {
			return err
		}

		limit := max(int(c.Int("limit")), 1)
		pages := max(int(c.Int("pages")), 1)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tKIND\tUSER\tSCORE\tSTRIKE\tACTION\tENFORCED\tDETAILS")

		var cursor *types.LogCursor

		for range pages {
			logs, next, err := deps.DB.Model().ModerationLog().GetLogs(ctx, guildID, cursor, limit)
			if err != nil {
				return err
			}

			for _, entry := range logs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%d\t%s\t%t\t%s\n",
					entry.CreatedAt.Format(time.RFC3339), entry.Kind, entry.UserID, entry.Score,
					entry.Strike, actionLabel(entry.Action, entry.Duration), entry.Enforced, entry.Details)
			}

			if next == nil {
				break
			}

			cursor = next
		}

		return w.Flush()
	}
}
