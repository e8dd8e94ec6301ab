package dicom

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DicomExtensions are common DICOM file extensions
var DicomExtensions = map[string]bool{".dcm": true, ".dicom": true}

// ExcludedNames are filenames to skip
var ExcludedNames = map[string]bool{
	"DICOMDIR":    true,
	"Thumbs.db":   true,
	"desktop.ini": true,
	"README":      true,
	"LICENSE":     true,
}

// ExcludedExtensions are file extensions that are never DICOM. The audit
// table (.csv), its lock and the run logs live next to the images when the
// output directory defaults to the input directory.
var ExcludedExtensions = map[string]bool{
	".csv":  true,
	".lock": true,
	".log":  true,
	".json": true,
	".txt":  true,
	".md":   true,
	".yaml": true,
	".yml":  true,
	".xml":  true,
	".exe":  true,
	".dll":  true,
	".zip":  true,
	".gz":   true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".pdf":  true,
}

// FindDicomFiles finds all DICOM files in the given path. Hidden files and
// directories are skipped, as is anything under one of the exclude paths.
func FindDicomFiles(inputPath string, recursive bool, exclude ...string) ([]string, error) {
	inputPath = filepath.Clean(inputPath)
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		if e != "" && filepath.Clean(e) != inputPath {
			skip[filepath.Clean(e)] = true
		}
	}

	var files []string
	walkFn := func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}

		name := entry.Name()
		if entry.IsDir() {
			if path == inputPath {
				return nil
			}
			if !recursive || strings.HasPrefix(name, ".") || skip[path] {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") || ExcludedNames[name] {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		if ExcludedExtensions[ext] {
			return nil
		}

		if DicomExtensions[ext] || hasDicomMagicBytes(path) {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(inputPath, walkFn); err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// hasDicomMagicBytes checks if a file has the DICOM magic bytes ("DICM" at offset 128)
func hasDicomMagicBytes(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	header := make([]byte, 132)
	if _, err := io.ReadFull(file, header); err != nil {
		return false
	}

	return string(header[128:132]) == "DICM"
}
