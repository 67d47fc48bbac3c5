package contracts

import (
	"io"
	"os"
	"time"
)

type ArchiveWriter interface {
	io.WriteCloser
	WriteHeader(header ArchiveHeader) error
}

type ArchiveHeader struct {
	Name       string
	Size       int64
	ModTime    time.Time
	Executable bool
}

type ArchiveItem struct {
	Path string
	Size int64
}

// PackagedArtifact is one archive ready for upload.
type PackagedArtifact struct {
	SourcePath  string
	ArchivePath string
	Platform    Platform
	Project     string
	Size        int64
	SHA256      string
	Contents    []ArchiveItem
}

type ArchiveEntry interface {
	Name() string
	IsDir() bool
	Mode() os.FileMode
	Open() (io.ReadCloser, error)
}

type ArchiveReader interface {
	Entries() []ArchiveEntry
	Close() error
}

type ArchiveOpener interface {
	OpenArchive(path string) (ArchiveReader, error)
}
