package utils

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var imageExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// GetFileExtension returns the lower-case file extension without the dot
func GetFileExtension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// IsImageFile checks if a file has a supported photo extension
func IsImageFile(filename string) bool {
	return imageExts[GetFileExtension(filename)]
}

// BaseName returns the file name without directory and extension. URLs use
// the last path segment.
func BaseName(source string) string {
	name := filepath.Base(source)
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && u.Host != "" {
		name = path.Base(u.Path)
		if name == "/" || name == "." {
			return SanitizeFilename(u.Host)
		}
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	if name = SanitizeFilename(name); name == "" {
		name = "image"
	}
	return name
}

// GenerateOutputFilename builds <outputDir>/<prefix><name><suffix>.<format>
func GenerateOutputFilename(source, outputDir, prefix, suffix, format string) string {
	return OutputPath(outputDir, prefix, BaseName(source), suffix, format)
}

// OutputPath joins the output file name parts for an already resolved name
func OutputPath(outputDir, prefix, name, suffix, format string) string {
	if format == "" {
		format = "png"
	}
	return filepath.Join(outputDir, fmt.Sprintf("%s%s%s.%s", prefix, name, suffix, format))
}

// ListImageFiles recursively lists all image files in a directory
func ListImageFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImageFile(p) {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	return err == nil && info.IsDir()
}

// SanitizeFilename replaces characters that are invalid in file names
func SanitizeFilename(filename string) string {
	result := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, filename)
	return strings.Trim(result, " .")
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
