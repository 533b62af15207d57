// docconv CLI — инструмент командной строки для конвертации
// документов через HTTP API docconv.
//
// Использование:
//
//	docconv [--api-url URL] [--json] [--no-color] <command> [flags]
//
// Команды:
//
//	convert   Конвертировать файл в PDF
//	history   История конвертаций
//	health    Проверить доступность сервиса
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/docconv/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool
	var noColor bool

	rootCmd := &cobra.Command{
		Use:           "docconv",
		Short:         "docconv CLI — convert Word documents to PDF",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("DOCCONV_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL (env DOCCONV_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput, noColor) }

	rootCmd.AddCommand(
		cli.NewConvertCmd(clientFn, outputFn),
		cli.NewHistoryCmd(clientFn, outputFn),
		cli.NewHealthCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		cli.NewOutput(jsonOutput, noColor).Error(err.Error())
		os.Exit(1)
	}
}
