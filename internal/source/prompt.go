package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"media-compressor-go/internal/media"
)

// ExtensionFilter decides which library files are offered.
// *config.Config satisfies it.
type ExtensionFilter interface {
	IsImageExtension(ext string) bool
	IsVideoExtension(ext string) bool
}

// PromptSource lists the media files of a library directory and asks the user
// to pick one by number.
type PromptSource struct {
	Library   string
	Filter    ExtensionFilter
	Out       io.Writer
	describer *Describer

	in         io.Reader
	readerOnce sync.Once
	lines      chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewPromptSource creates an interactive picker reading from in and writing
// the menu to out. One PromptSource should own in for its whole lifetime.
func NewPromptSource(library string, filter ExtensionFilter, in io.Reader, out io.Writer, describer *Describer) *PromptSource {
	return &PromptSource{
		Library:   library,
		Filter:    filter,
		Out:       out,
		describer: describer,
		in:        in,
	}
}

// Select implements Source. Empty input or "q" cancels.
func (s *PromptSource) Select(ctx context.Context, req Request) (*media.SelectedMedia, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	files, err := s.listLibrary(req)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		fmt.Fprintf(s.Out, "No media files found in %s\n", s.Library)
		return nil, nil
	}

	fmt.Fprintf(s.Out, "Media in %s:\n", s.Library)
	for i, f := range files {
		rel, err := filepath.Rel(s.Library, f)
		if err != nil {
			rel = f
		}
		fmt.Fprintf(s.Out, "  %3d) %s\n", i+1, rel)
	}
	fmt.Fprint(s.Out, "Pick a photo or video (number, empty to cancel): ")

	answer, err := s.readLine(ctx)
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" || strings.EqualFold(answer, "q") {
		return nil, media.ErrSelectionCancelled
	}

	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(files) {
		return nil, fmt.Errorf("invalid choice %q: pick 1-%d", answer, len(files))
	}

	item, err := s.describer.Describe(files[n-1])
	if err != nil || item == nil {
		return nil, err
	}
	if !req.Allows(item.Kind) {
		return nil, nil
	}
	return item, nil
}

// listLibrary walks the library and returns media files sorted by path.
func (s *PromptSource) listLibrary(req Request) ([]string, error) {
	wanted := func(ext string) bool {
		return (req.Allows(media.KindImage) && s.Filter.IsImageExtension(ext)) ||
			(req.Allows(media.KindVideo) && s.Filter.IsVideoExtension(ext))
	}

	info, err := os.Stat(s.Library)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library %s is not a directory", s.Library)
	}

	var files []string
	err = filepath.WalkDir(s.Library, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != s.Library && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if wanted(strings.ToLower(filepath.Ext(d.Name()))) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk library: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// readLine returns the next line of input, giving up when ctx is done.
// A single goroutine reads the input for the lifetime of the source, so a
// line typed after a cancelled prompt is delivered to the next one. The
// goroutine stays blocked on the reader until it returns a line or EOF.
func (s *PromptSource) readLine(ctx context.Context) (string, error) {
	s.readerOnce.Do(func() {
		s.lines = make(chan lineResult)
		go func() {
			defer close(s.lines)
			r := bufio.NewReader(s.in)
			for {
				line, err := r.ReadString('\n')
				if errors.Is(err, io.EOF) {
					if line != "" {
						s.lines <- lineResult{line: line}
					}
					return
				}
				s.lines <- lineResult{line: line, err: err}
				if err != nil {
					return
				}
			}
		}()
	})

	select {
	case res, ok := <-s.lines:
		if !ok {
			return "", nil
		}
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
