package finder

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// traceExtensions are the file types trace files are read from
var traceExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// IsTraceFile reports whether path has a trace file extension
func IsTraceFile(path string) bool {
	return traceExtensions[strings.ToLower(filepath.Ext(path))]
}

// FindTraceFiles walks root and returns all trace files in lexical order,
// skipping hidden directories and node_modules. A root that is itself a file
// is returned as is.
func FindTraceFiles(root string) ([]string, error) {
	var traceFiles []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root || IsTraceFile(path) {
			traceFiles = append(traceFiles, path)
		}
		return nil
	})

	sort.Strings(traceFiles)
	return traceFiles, err
}
