package id

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// SourceStem reduces a file path to a short identifier: lowercased base name
// without extension, anything other than [a-z0-9] replaced with '_'.
func SourceStem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	stem := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, base)
	stem = strings.Trim(stem, "_")
	if stem == "" {
		return "source"
	}
	return stem
}

// Source names one input file within a batch.
type Source struct {
	Name string // written to source_file: the base name, or parent/base when base names clash
	Stem string // row ID prefix, unique within the batch
}

// Sources names each path so that row IDs never collide across a batch.
// Files whose stems clash are qualified with their parent directory; any
// clash left after that gets an ordinal suffix ("expenses_2").
func Sources(paths []string) []Source {
	out := make([]Source, len(paths))
	count := make(map[string]int)
	for i, p := range paths {
		out[i] = Source{Name: filepath.Base(p), Stem: SourceStem(p)}
		count[out[i].Stem]++
	}

	for i, p := range paths {
		if count[out[i].Stem] < 2 {
			continue
		}
		parent := filepath.Base(filepath.Dir(p))
		if parent == "." || parent == string(filepath.Separator) {
			continue
		}
		out[i].Name = parent + "/" + filepath.Base(p)
		out[i].Stem = SourceStem(parent + "_" + filepath.Base(p))
	}

	used := make(map[string]bool)
	for i := range out {
		stem := out[i].Stem
		for n := 2; used[stem]; n++ {
			stem = fmt.Sprintf("%s_%d", out[i].Stem, n)
		}
		used[stem] = true
		out[i].Stem = stem
	}
	return out
}

// FormatRowID returns a row ID like "expenses-0004".
func FormatRowID(stem string, line int) string {
	return fmt.Sprintf("%s-%04d", stem, line)
}

// FormatLegID returns a leg ID like "expenses-0004a" (leg 0='a', 1='b', etc.).
func FormatLegID(rowID string, leg int) string {
	return rowID + string(rune('a'+leg))
}

// ParseRowID splits "expenses-0004" (or a leg ID) into stem and line.
func ParseRowID(rowID string) (stem string, line int, err error) {
	base := RowGroup(rowID)

	i := strings.LastIndex(base, "-")
	if i <= 0 || i == len(base)-1 {
		return "", 0, fmt.Errorf("invalid row ID format: %q", rowID)
	}

	line, err = strconv.Atoi(base[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid line in row ID %q: %w", rowID, err)
	}
	return base[:i], line, nil
}

// RowGroup strips the leg suffix from a leg ID.
// "expenses-0004a" -> "expenses-0004"
func RowGroup(legID string) string {
	i := len(legID)
	for i > 0 && legID[i-1] >= 'a' && legID[i-1] <= 'z' {
		i--
	}
	return legID[:i]
}
