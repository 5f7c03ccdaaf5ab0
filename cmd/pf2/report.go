package main

import (
	"bytes"
	"context"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/grafana/pf2/pkg/model"
	"github.com/grafana/pf2/pkg/report"
)

func readDump(fs afero.Fs, path string) (*model.Profile, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open profile")
	}
	defer f.Close()
	p, err := model.ReadDump(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read profile %s", path)
	}
	return p, nil
}

// writeReport renders the dump at src as format and writes it to dst, or to
// the context output when dst is empty or "-". Nothing is written if the
// profile cannot be rendered.
func writeReport(ctx context.Context, fs afero.Fs, src, dst string, format report.Format, opts ...report.Option) error {
	p, err := readDump(fs, src)
	if err != nil {
		return err
	}
	emitter, err := report.New(format, opts...)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err = emitter.Emit(&buf, p); err != nil {
		return err
	}

	if dst == "" || dst == "-" {
		if _, err = output(ctx).Write(buf.Bytes()); err != nil {
			return errors.Wrap(err, "write report")
		}
	} else if err = writeFile(fs, dst, buf.Bytes()); err != nil {
		return err
	}
	level.Info(logger(ctx)).Log(
		"msg", "report written",
		"format", format,
		"samples", len(p.Samples),
		"dropped", p.DroppedSampleCount,
		"size", humanize.Bytes(uint64(buf.Len())),
	)
	return nil
}

// writeFile fails if the data could not be written or the file could not be
// closed.
func writeFile(fs afero.Fs, path string, data []byte) error {
	f, err := fs.Create(path)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "write report")
	}
	if err = f.Close(); err != nil {
		return errors.Wrap(err, "close output")
	}
	return nil
}
