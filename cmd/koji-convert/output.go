package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/cienicera/Koji"
	"github.com/cienicera/Koji/convert"
	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fd75f"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffaf00"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true)
)

// printer writes the console messages of the converter. Confirmations go to
// standard output, everything else to standard error.
type printer struct {
	quiet bool
}

func (p *printer) converted(conv convert.Conversion, in, out string, res convert.Result) {
	p.warnings(in, res.Warnings)
	if p.quiet {
		return
	}
	if res.Unchanged {
		fmt.Println(dimStyle.Render(fmt.Sprintf("%v is up to date", out)))
		return
	}
	details := fmt.Sprintf("(%d events, %v, %v)", res.Events, durafmt.Parse(res.Duration).LimitFirstN(2), humanize.Bytes(uint64(len(res.Output))))
	fmt.Println(successStyle.Render(conv.Describe(in, out)), dimStyle.Render(details))
}

func (p *printer) warnings(in string, warnings []koji.Warning) {
	if p.quiet {
		return
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, warningStyle.Render("warning:"), fmt.Sprintf("%v: %v", in, w))
	}
}

func (p *printer) failed(err error) {
	printError(err)
}

func (p *printer) summary(total, failed int) {
	if p.quiet && failed == 0 {
		return
	}
	msg := fmt.Sprintf("%d of %d files converted", total-failed, total)
	if failed > 0 {
		fmt.Fprintln(os.Stderr, errorStyle.Render(msg))
		return
	}
	fmt.Println(successStyle.Render(msg))
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
}
