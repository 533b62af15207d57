package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewHistoryCmd создаёт группу команд для истории конвертаций.
// Без подкоманды выводит список последних конвертаций.
func NewHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show conversion history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			conversions, err := client.ListConversions(limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "FILE", "OUTCOME", "POLLS", "DURATION", "STARTED"}
			rows := make([][]string, len(conversions))
			for i, c := range conversions {
				rows[i] = []string{c.ID, c.FileName, c.Outcome, strconv.Itoa(c.PollAttempts), formatMs(c.DurationMs), c.StartedAt}
			}

			out.Print(headers, rows, conversions)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	cmd.AddCommand(newHistoryShowCmd(clientFn, outputFn))

	return cmd
}

func newHistoryShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show conversion details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			c, err := client.GetConversion(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "FILE", "RESULT", "TASK", "OUTCOME", "POLLS", "DURATION", "ERROR"},
				[][]string{{c.ID, c.FileName, c.ResultFileName, c.TaskID, c.Outcome, strconv.Itoa(c.PollAttempts), formatMs(c.DurationMs), c.Error}},
				c,
			)
			return nil
		},
	}
}

func formatMs(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
