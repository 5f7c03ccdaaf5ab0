// Package annotate prints source files with per-line sample counts.
package annotate

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/grafana/pf2/pkg/model"
)

// Hits of a single source line.
type Hits struct {
	Self  int
	Total int
}

type Annotator struct {
	fs        afero.Fs
	sourceDir string
}

// New returns an Annotator resolving relative source paths against
// sourceDir.
func New(fs afero.Fs, sourceDir string) *Annotator {
	return &Annotator{fs: fs, sourceDir: sourceDir}
}

// Tally counts hits per file and line over the interpreted stacks of p.
// Every location of a stack gets a total hit, the leaf also gets a self hit.
// Locations without a file name are skipped.
func Tally(p *model.Profile) map[string]map[int32]*Hits {
	perLocation := make(map[int]*Hits)
	hits := func(loc int) *Hits {
		h, ok := perLocation[loc]
		if !ok {
			h = new(Hits)
			perLocation[loc] = h
		}
		return h
	}
	for i := range p.Samples {
		stack := p.Samples[i].Stack
		if len(stack) == 0 {
			continue
		}
		for _, loc := range stack {
			hits(loc).Total++
		}
		hits(stack[0]).Self++
	}

	files := make(map[string]map[int32]*Hits)
	for loc, h := range perLocation {
		fn := p.Function(loc)
		if fn.Filename == nil {
			continue
		}
		var line int32
		if l := p.Locations[loc].Lineno; l != nil {
			line = *l
		}
		lines, ok := files[*fn.Filename]
		if !ok {
			lines = make(map[int32]*Hits)
			files[*fn.Filename] = lines
		}
		if existing, ok := lines[line]; ok {
			existing.Self += h.Self
			existing.Total += h.Total
			continue
		}
		lines[line] = &Hits{Self: h.Self, Total: h.Total}
	}
	return files
}

// Annotate writes every file referenced by p with hit counts next to each
// line. Files are written in path order.
func (a *Annotator) Annotate(w io.Writer, p *model.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	files := Tally(p)
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	bw := bufio.NewWriter(w)
	for _, path := range paths {
		if err := a.annotateFile(bw, path, files[path]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (a *Annotator) annotateFile(w *bufio.Writer, path string, lines map[int32]*Hits) error {
	expanded := path
	if !filepath.IsAbs(path) {
		expanded = filepath.Join(a.sourceDir, path)
	}
	f, err := a.fs.Open(expanded)
	if err != nil {
		if ignorable(path) {
			fmt.Fprintf(w, "Ignoring file: %s\n\n\n", path)
		} else {
			fmt.Fprintf(w, "File not found: %s\n\n\n", path)
		}
		return nil
	}
	defer f.Close()

	fmt.Fprintf(w, "%s\n\n", expanded)
	fmt.Fprintln(w, "  ttl  self │")
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lineno int32
	for scanner.Scan() {
		lineno++
		text := strings.TrimRight(scanner.Text(), "\r")
		if h, ok := lines[lineno]; ok {
			fmt.Fprintf(w, "%5d %5d │ %s\n", h.Total, h.Self, text)
		} else {
			fmt.Fprintf(w, "%5s %5s │ %s\n", "", "", text)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "read %s", expanded)
	}
	fmt.Fprint(w, "\n\n")
	return nil
}

func ignorable(path string) bool {
	return strings.HasPrefix(path, "<internal:")
}
