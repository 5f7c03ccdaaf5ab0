package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/common/version"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/grafana/pf2/pkg/report"
	"github.com/grafana/pf2/pkg/report/annotate"
	"github.com/grafana/pf2/pkg/util"
	"github.com/grafana/pf2/pkg/weaver"
)

var cfg struct {
	verbose bool
	report  struct {
		dump     string
		format   report.Format
		output   string
		product  string
		sentinel string
	}
	annotate struct {
		dump      string
		sourceDir string
	}
}

var consoleOutput = os.Stderr

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Reports for profiles recorded by the pf2 sampling profiler.").UsageWriter(os.Stdout)
	app.Version(version.Print("pf2"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("false").BoolVar(&cfg.verbose)

	reportCmd := app.Command("report", "Convert a recorded profile into a report.")
	reportCmd.Arg("dump", "Path of the recorded profile.").Required().StringVar(&cfg.report.dump)
	cfg.report.format = report.Firefox
	reportCmd.Flag("format", "Output format: firefox or pprof.").Short('f').SetValue(&cfg.report.format)
	reportCmd.Flag("output", "Output file. Standard output when empty or '-'.").Short('o').StringVar(&cfg.report.output)
	reportCmd.Flag("product", "Process name shown by the Firefox profiler.").Default("ruby").StringVar(&cfg.report.product)
	reportCmd.Flag("sentinel", "Name of the interpreter function native frames are woven at.").Default(weaver.DefaultSentinel).StringVar(&cfg.report.sentinel)

	annotateCmd := app.Command("annotate", "Print the sources of a recorded profile annotated with sample counts.")
	annotateCmd.Arg("dump", "Path of the recorded profile.").Required().StringVar(&cfg.annotate.dump)
	annotateCmd.Flag("source-dir", "Directory the source paths of the profile are resolved against.").Default(".").StringVar(&cfg.annotate.sourceDir)

	versionCmd := app.Command("version", "Print version information.")

	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	console := util.NewAsyncWriter(consoleOutput, 4096, 100*time.Millisecond)
	util.Logger = util.NewLogger(console, cfg.verbose)
	ctx := withLogger(context.Background(), util.Logger)
	ctx = withOutput(ctx, os.Stdout)
	fs := afero.NewOsFs()

	var err error
	switch parsedCmd {
	case reportCmd.FullCommand():
		err = runReport(ctx, fs)
	case annotateCmd.FullCommand():
		err = runAnnotate(ctx, fs)
	case versionCmd.FullCommand():
		fmt.Fprintln(output(ctx), version.Print("pf2"))
	default:
		err = fmt.Errorf("unknown command %q", parsedCmd)
	}
	_ = console.Close()
	os.Exit(checkError(err))
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

func runReport(ctx context.Context, fs afero.Fs) error {
	return writeReport(ctx, fs, cfg.report.dump, cfg.report.output, cfg.report.format,
		report.WithLogger(logger(ctx)),
		report.WithProduct(cfg.report.product),
		report.WithSentinel(weaver.FunctionName(cfg.report.sentinel)),
	)
}

func runAnnotate(ctx context.Context, fs afero.Fs) error {
	p, err := readDump(fs, cfg.annotate.dump)
	if err != nil {
		return err
	}
	return annotate.New(fs, cfg.annotate.sourceDir).Annotate(output(ctx), p)
}
