package report

import "fmt"

// UnsupportedOutputError is returned for an unknown report format.
type UnsupportedOutputError struct {
	Format string
}

func (e *UnsupportedOutputError) Error() string {
	return fmt.Sprintf("unsupported output format %q (expected firefox or pprof)", e.Format)
}
