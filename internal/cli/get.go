package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <url>",
		Short: "Print the text behind a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.Fetch(cmd.Context(), args[0])
			if err != nil {
				c.Logger.Error().Err(err).Str("url", args[0]).Msg("Retrieval failed")
				return err
			}
			c.Logger.Info().
				Stringer("final", res.FinalURL).
				Int("redirects", res.Redirects).
				Stringer("cacheStatus", res.CacheStatus).
				Msg("Retrieved")

			_, err = fmt.Fprint(c.out, res.Content)
			return err
		},
	}
}
