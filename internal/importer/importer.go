// Package importer reads source CSV files, locates their header row, matches
// them against the schema registry and transforms their rows into canonical
// records.
package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cleared-dev/splitledger/internal/id"
	"github.com/cleared-dev/splitledger/internal/model"
	"github.com/cleared-dev/splitledger/internal/schema"
)

// ImportDir is the workspace subdirectory for source CSVs.
const ImportDir = "import"

// processedDir is the subdirectory for archived CSVs.
const processedDir = "import/processed"

// FileInfo describes a CSV file found by Scan.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// Scan returns the CSV files directly inside dir, sorted by name. A missing
// directory is empty.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Expand turns command-line arguments into file paths: directories are
// scanned for CSV files, files are kept in the order given. Duplicates are
// dropped.
func Expand(args []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		clean := filepath.Clean(p)
		if !seen[clean] {
			seen[clean] = true
			paths = append(paths, clean)
		}
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		files, err := Scan(arg)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			add(f.Path)
		}
	}
	return paths, nil
}

// MarkProcessed moves a file from <root>/import/ to <root>/import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, ImportDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// Options configures Import.
type Options struct {
	Source    id.Source // naming within the batch; zero = derived from the path
	Matcher   schema.Matcher
	Markers   []string // header-row markers, party names included by the caller
	Merchants MerchantNormalizer
	Parties   PartyResolver
}

// Result is one imported file.
type Result struct {
	Path      string
	Match     schema.MatchResult
	HeaderRow int // index of the header among the file's rows
	Records   []model.Record
}

// Import reads, matches and transforms one file. A malformed file returns a
// *FileError; a file no schema recognizes returns a *schema.FatalSchemaError.
func Import(path string, opts Options) (Result, error) {
	rows, err := ReadFile(path)
	if err != nil {
		return Result{}, err
	}

	hdr := LocateHeader(rows, opts.Markers, func(cells []string) bool {
		_, err := opts.Matcher.Match(cells, path)
		return err == nil
	})
	header := rows[hdr].Cells

	match, err := opts.Matcher.Match(header, path)
	if err != nil {
		return Result{}, err
	}

	records := Transform(rows[hdr+1:], header, match, TransformOptions{
		SourceFile: path,
		Source:     opts.Source,
		Merchants:  opts.Merchants,
		Parties:    opts.Parties,
	})
	return Result{Path: path, Match: match, HeaderRow: hdr, Records: records}, nil
}
