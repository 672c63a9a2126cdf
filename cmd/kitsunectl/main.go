package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/eagraf/kitsune-hub/internal/batch"
	"github.com/eagraf/kitsune-hub/internal/installer"
	"github.com/urfave/cli/v3"
)

func clientFor(cmd *cli.Command) (*client, error) {
	root := cmd.Root()
	return newClient(root.String(fAddr), root.String(fOutput), root.Writer)
}

// requireID returns the single positional installer id.
func requireID(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one installer id")
	}
	return cmd.Args().First(), nil
}

func listInstallers() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List installers with their installed state and versions.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "category",
				Usage: "Only list installers in this category.",
			},
			&cli.StringFlag{
				Name:  "installed",
				Usage: "Only list installers whose installed state matches (true or false).",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			query := url.Values{}
			if category := cmd.String("category"); category != "" {
				query.Set("category", category)
			}
			if installed := cmd.String("installed"); installed != "" {
				if _, err := strconv.ParseBool(installed); err != nil {
					return fmt.Errorf("invalid value for --installed: %s", installed)
				}
				query.Set("installed", installed)
			}
			return c.get(ctx, "/api/installers", query)
		},
	}
}

func installerInfo() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Show one installer.",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := requireID(cmd)
			if err != nil {
				return err
			}
			c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			return c.get(ctx, "/api/installers/"+url.PathEscape(id), nil)
		},
	}
}

func runAction(action installer.Action) *cli.Command {
	return &cli.Command{
		Name:      action.String(),
		Usage:     fmt.Sprintf("Run the %s action of one installer.", action),
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := requireID(cmd)
			if err != nil {
				return err
			}
			c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			return c.post(ctx, fmt.Sprintf("/api/installers/%s/%s", url.PathEscape(id), action), nil)
		},
	}
}

func showLogs() *cli.Command {
	return &cli.Command{
		Name:      "logs",
		Usage:     "Show the action history of one installer, or of all installers when no id is given.",
		ArgsUsage: "[id]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			switch cmd.Args().Len() {
			case 0:
				return c.get(ctx, "/api/logs", nil)
			case 1:
				return c.get(ctx, fmt.Sprintf("/api/installers/%s/logs", url.PathEscape(cmd.Args().First())), nil)
			}
			return fmt.Errorf("expected at most one installer id")
		},
	}
}

func listCategories() *cli.Command {
	return &cli.Command{
		Name:  "categories",
		Usage: "List the distinct installer categories.",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			return c.get(ctx, "/api/categories", nil)
		},
	}
}

func reload() *cli.Command {
	return &cli.Command{
		Name:  "reload",
		Usage: "Rescan the installers directory now.",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			return c.post(ctx, "/api/installers/reload", nil)
		},
	}
}

func batchAction(action installer.Action) *cli.Command {
	return &cli.Command{
		Name:      action.String(),
		Usage:     fmt.Sprintf("Run the %s action of each installer in order.", action),
		ArgsUsage: "<id>...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return fmt.Errorf("expected at least one installer id")
			}
			c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			return c.post(ctx, "/api/installers/batch-"+action.String(), &batch.Request{
				IDs: cmd.Args().Slice(),
			})
		},
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "kitsunectl",
		Usage: "CLI interface for interacting with a kitsunehub server",
		CommandNotFound: func(ctx context.Context, cmd *cli.Command, s string) {
			fmt.Fprintln(cmd.Root().ErrWriter, "command not found: ", s)
		},
		Flags: getFlags(),
		Commands: []*cli.Command{
			listInstallers(),
			installerInfo(),
			runAction(installer.ActionInstall),
			runAction(installer.ActionUpdate),
			runAction(installer.ActionUninstall),
			showLogs(),
			listCategories(),
			reload(),
			{
				Name:  "batch",
				Usage: "Run one action over several installers.",
				Commands: []*cli.Command{
					batchAction(installer.ActionInstall),
					batchAction(installer.ActionUpdate),
					batchAction(installer.ActionUninstall),
				},
			},
		},
	}
}

func main() {
	err := newApp().Run(context.Background(), os.Args)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
