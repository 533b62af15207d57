package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode    bool
	noColor     bool
	interactive bool      // stderr — терминал: показываем спиннер и прогресс
	w           io.Writer // stdout для данных
	errW        io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode, noColor bool) *Output {
	return &Output{
		jsonMode:    jsonMode,
		noColor:     noColor || color.NoColor,
		interactive: !jsonMode && isTerminal(os.Stderr),
		w:           os.Stdout,
		errW:        os.Stderr,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	o.status(color.FgGreen, "✓", msg)
}

// Warning выводит предупреждение в stderr.
func (o *Output) Warning(msg string) {
	o.status(color.FgYellow, "⚠", msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	o.status(color.FgRed, "✗", "Error: "+msg)
}

func (o *Output) status(attr color.Attribute, mark, msg string) {
	c := color.New(attr)
	if o.noColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	c.Fprintf(o.errW, "%s %s\n", mark, msg)
}

// Spinner запускает индикатор ожидания и возвращает функцию остановки.
// Вне терминала ничего не выводит.
func (o *Output) Spinner(message string) (stop func()) {
	if !o.interactive {
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = o.errW
	s.Start()
	return s.Stop
}

// Progress оборачивает reader индикатором прочитанных байт.
// Вне терминала возвращает reader без изменений.
func (o *Output) Progress(r io.Reader, size int64, description string) io.Reader {
	if !o.interactive {
		return r
	}

	bar := progressbar.NewOptions64(
		size,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(o.errW),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(o.errW, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	reader := progressbar.NewReader(r, bar)
	return &reader
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
