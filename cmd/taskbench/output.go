package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"taskbench/evaluation/results"
	"taskbench/evaluation/task_mgmt"
	"taskbench/evaluation/verification"
)

// isTTY reports whether w is an interactive terminal.
func isTTY(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

var (
	green  = color.New(color.FgGreen, color.Bold).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func formatError(msg string) string {
	return red("error: ") + msg
}

func outcomeLabel(kind verification.Kind) string {
	switch kind {
	case verification.KindPassed:
		return green("PASS")
	case verification.KindTimeout:
		return yellow("TIME")
	case verification.KindVerificationFailure:
		return red("FAIL")
	default:
		return red("ERR ")
	}
}

func printOutcome(w io.Writer, o verification.Outcome) {
	elapsed := ""
	if o.Result != nil {
		elapsed = gray(fmt.Sprintf(" (%.1fs)", o.Result.Duration.Seconds()))
	}
	fmt.Fprintf(w, "%s %s%s\n", outcomeLabel(o.Kind), o.Task.Key(), elapsed)
	if o.Kind == verification.KindPassed {
		return
	}
	if msg := strings.TrimSpace(o.Message()); msg != "" {
		for _, line := range strings.Split(msg, "\n") {
			fmt.Fprintf(w, "     %s\n", gray(line))
		}
	}
}

func printSummary(w io.Writer, s results.Summary) {
	rate := fmt.Sprintf("%.1f%%", s.PassRate*100)
	fmt.Fprintf(w, "\n%s %s: %d/%d passed (%s)\n", bold("Summary"), cyan(s.Service), s.Passed, s.Total, rate)
	for _, kind := range verification.Kinds() {
		if n := s.Kinds[string(kind)]; n > 0 && kind != verification.KindPassed {
			fmt.Fprintf(w, "  %-22s %d\n", kind, n)
		}
	}
}

func printTasks(w io.Writer, tasks []task_mgmt.Task) {
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\n", t.Key(), gray(t.VerificationPath))
	}
}

func printWarnings(w io.Writer, warnings []task_mgmt.MalformedTaskWarning) {
	for _, warning := range warnings {
		fmt.Fprintf(w, "%s %s\n", yellow("warn"), warning.Error())
	}
}
