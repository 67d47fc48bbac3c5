package contracts

import (
	"path"
	"strings"
)

type DownloadRequest struct {
	Name           string
	URL            string
	ExpectedSHA256 string
	ExpectedSize   int64
}

type DownloadResult struct {
	Path     string
	Size     int64
	SHA256   string
	Attempts int
}

// DownloadedFile is what the post-download integrity checks inspect.
type DownloadedFile struct {
	Path           string
	ExpectedSHA256 string
	ExpectedSize   int64
}

type IntegrityCheck interface {
	Verify(file DownloadedFile) error
}

// SkipPredicate reports whether an archive entry (slash-separated, relative) must not be written.
type SkipPredicate func(entry string) bool

type ExtractionRequest struct {
	ArchivePath string
	Root        string
	Skip        SkipPredicate
}

type ExtractionReport struct {
	Written  []string
	Skipped  []string
	Rejected []string
}

func OnlyUnder(prefix string) SkipPredicate {
	prefix = normalizePrefix(prefix)
	return func(entry string) bool { return !hasPathPrefix(entry, prefix) }
}

func ExcludeUnder(prefix string) SkipPredicate {
	prefix = normalizePrefix(prefix)
	return func(entry string) bool { return hasPathPrefix(entry, prefix) }
}

func normalizePrefix(prefix string) string {
	return strings.Trim(path.Clean(strings.ReplaceAll(prefix, "\\", "/")), "/")
}

func hasPathPrefix(entry, prefix string) bool {
	entry = strings.TrimLeft(strings.ReplaceAll(entry, "\\", "/"), "/")
	return strings.EqualFold(entry, prefix) || strings.HasPrefix(strings.ToLower(entry), strings.ToLower(prefix)+"/")
}
