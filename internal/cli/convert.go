package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
)

// NewConvertCmd создаёт команду конвертации файла.
func NewConvertCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Convert a Word document to PDF",
		Long: `Uploads FILE to the docconv service and saves the converted PDF.

By default the result is written next to FILE with the .pdf extension.
Use --out to pick another file or directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var (
				once        sync.Once
				stopSpinner = func() {}
			)
			waiting := func() {
				once.Do(func() { stopSpinner = out.Spinner("Converting...") })
			}

			result, err := client.Convert(cmd.Context(), args[0], ConvertOptions{
				OutPath: outPath,
				Progress: func(r io.Reader, size int64) io.Reader {
					return out.Progress(r, size, "Uploading "+filepath.Base(args[0]))
				},
				OnUploaded: waiting,
			})
			// OnUploaded вызывается из горутины загрузки; once гарантирует,
			// что stopSpinner уже записан или не будет записан вовсе.
			once.Do(func() {})
			stopSpinner()
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Converted %s → %s (%d bytes)", result.Input, result.Output, result.Size))
			out.Print(
				[]string{"INPUT", "OUTPUT", "SIZE"},
				[][]string{{result.Input, result.Output, fmt.Sprintf("%d", result.Size)}},
				result,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file or directory")

	return cmd
}
