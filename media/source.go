package media

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kbukum/mediascribe/validation"
)

// CheckSource verifies that path is an existing, non-empty regular file with
// an allowed extension within the size limit. It returns the file size.
func CheckSource(path string, cfg Config) (int64, error) {
	size, v := validation.New().RegularFile("source", path)
	if !v.HasErrors() {
		v.Extension("source", path, cfg.AllowedExtensions).
			MaxBytes("source", size, cfg.MaxFileBytes())
	}
	if appErr := v.Validate(); appErr != nil {
		return 0, appErr.WithDetail("path", path)
	}
	return size, nil
}

var unsafeName = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]+`)

// SafeFilename replaces characters that are invalid in file names on common
// filesystems and trims dots and spaces from the ends.
func SafeFilename(name string) string {
	s := unsafeName.ReplaceAllString(name, "_")
	s = strings.Trim(s, " .")
	if s == "" {
		return "untitled"
	}
	return s
}

// TranscriptName derives "<base>_transcript.txt" for a source path.
func TranscriptName(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return SafeFilename(base) + "_transcript.txt"
}
