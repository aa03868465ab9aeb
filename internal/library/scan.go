package library

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/pd4web/internal/discover"
	"github.com/phobologic/pd4web/internal/lang"
	"github.com/phobologic/pd4web/internal/model"
	"github.com/phobologic/pd4web/internal/parse"
)

// Scanner builds a manifest entry from a library's source tree.
type Scanner struct {
	// Workers bounds the number of parsing goroutines. Zero means GOMAXPROCS.
	Workers int
}

// Scan walks dir and returns the classes registered by its C and C++
// sources and the abstractions it ships. Help patches are ignored.
func (s Scanner) Scan(dir string) (Entry, error) {
	exts := append(lang.Extensions(), discover.PatchExt)
	files, err := discover.Files(dir, discover.Options{
		Extensions: exts,
		Recursive:  true,
		SkipHelp:   true,
	})
	if err != nil {
		return Entry{}, fmt.Errorf("scanning %s: %w", dir, err)
	}

	var sources []discover.FileEntry
	abs := make(map[string]struct{})
	for _, f := range files {
		if f.Ext == discover.PatchExt {
			abs[f.Name()] = struct{}{}
			continue
		}
		sources = append(sources, f)
	}

	classes := s.extractConcurrent(dir, sources)

	objs := make(map[string]struct{})
	setup := make(map[string]string)
	for _, c := range classes {
		objs[c.Name] = struct{}{}
		if c.Setup == "" || c.Setup == SetupFunctionName(c.Name) {
			continue
		}
		if _, seen := setup[c.Name]; !seen {
			setup[c.Name] = c.Setup
		}
	}

	e := Entry{
		Objects:      sortedKeys(objs),
		Abstractions: sortedKeys(abs),
	}
	if len(setup) > 0 {
		e.Setup = setup
	}
	return e, nil
}

func (s Scanner) extractConcurrent(root string, files []discover.FileEntry) []model.ClassDef {
	if len(files) == 0 {
		return nil
	}

	type result struct {
		index int
		defs  []model.ClassDef
	}

	numWorkers := s.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// tree-sitter parsers are not safe for concurrent use
			parsers := make(map[string]*parserPair)

			for idx := range work {
				f := files[idx]
				name := lang.ForExtension(f.Ext)
				pp, ok := parsers[name]
				if !ok {
					l := lang.Languages[name]
					q, err := l.GetClassQuery()
					if err != nil {
						log.Warningf("failed to compile query for %s: %v", name, err)
						continue
					}
					pp = &parserPair{lang: l, parser: l.NewParser(), query: q}
					parsers[name] = pp
				}

				source, err := os.ReadFile(filepath.Join(root, f.Path))
				if err != nil {
					log.Warningf("failed to read %s: %v", f.Path, err)
					continue
				}

				results <- result{
					index: idx,
					defs:  parse.ExtractClasses(pp.lang, pp.parser, pp.query, source, f.Path),
				}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect in file order so setup functions are picked deterministically.
	indexed := make([][]model.ClassDef, len(files))
	for r := range results {
		indexed[r.index] = r.defs
	}

	var defs []model.ClassDef
	for _, d := range indexed {
		defs = append(defs, d...)
	}
	return defs
}

type parserPair struct {
	lang   *lang.Language
	parser *sitter.Parser
	query  *sitter.Query
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
