package install

import (
	"fmt"
	"io"
)

// Reporter surfaces install progress to the user. Begin and End are paired
// by token; tokens are opaque and unique per operation.
type Reporter interface {
	Begin(token, title string)
	End(token string)
}

// NopReporter discards progress.
type NopReporter struct{}

func (NopReporter) Begin(string, string) {}
func (NopReporter) End(string)           {}

// StatusReporter prints a blocking status line per operation.
type StatusReporter struct {
	W io.Writer
}

func (r StatusReporter) Begin(_ string, title string) {
	fmt.Fprintf(r.W, "%s...\n", title)
}

func (r StatusReporter) End(string) {
	fmt.Fprintln(r.W, "done")
}
