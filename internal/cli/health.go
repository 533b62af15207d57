package cli

import (
	"github.com/spf13/cobra"
)

// NewHealthCmd создаёт команду проверки доступности сервиса.
func NewHealthCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the docconv service is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			health, err := client.Health()
			if err != nil {
				return err
			}

			out.Print(
				[]string{"STATUS", "UPTIME"},
				[][]string{{health.Status, health.Uptime}},
				health,
			)
			return nil
		},
	}
}
