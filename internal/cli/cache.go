package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/always-cache/always-fetch/pkg/locator"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the content cache",
	}

	cmd.AddCommand(c.cachePruneCommand())
	cmd.AddCommand(c.cachePurgeCommand())
	cmd.AddCommand(c.cacheListCommand())

	return cmd
}

func (c *CLI) cachePruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove expired entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			n, err := client.Cache().Prune()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Pruned %d expired entries\n", n)
			return nil
		},
	}
}

func (c *CLI) cachePurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <url>",
		Short: "Remove the entry of an http(s) URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := locator.Parse(args[0])
			if err != nil {
				return err
			}
			httpURL, ok := u.(locator.HTTP)
			if !ok {
				return fmt.Errorf("only http and https URLs are cached, got %s", u.Scheme())
			}

			client, err := c.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Cache().Purge(httpURL.Key()); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Purged %s\n", httpURL.Key())
			return nil
		},
	}
}

func (c *CLI) cacheListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List cached entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			entries, err := client.Cache().Entries()
			if err != nil {
				return err
			}
			now := time.Now()
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tEXPIRES\tBYTES")
			for _, e := range entries {
				expires := e.Expires.Format(time.RFC3339)
				if e.Expired(now) {
					expires += " (expired)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\n", e.Key, expires, len(e.Bytes))
			}
			return tw.Flush()
		},
	}
}
