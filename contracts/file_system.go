package contracts

import (
	"io"
	"os"
	"time"
)

type PathLister interface {
	Listing() ([]FileInfo, error)
}

type FileOpener interface {
	Open(path string) (io.ReadCloser, error)
}

type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

type RootPath interface {
	RootPath() string
}

type FileInfo interface {
	Path() string
	Size() int64
	ModTime() time.Time
	Symlink() string
	Mode() os.FileMode
}

func IsExecutable(mode os.FileMode) bool {
	return mode.Perm()&0111 > 0
}

type FileChecker interface {
	Stat(path string) (os.FileInfo, error)
}

type FileCreator interface {
	Create(path string, executable bool) (io.WriteCloser, error)
}

type Deleter interface {
	Delete(path string) error
}

type DirectoryReader interface {
	ReadDir(path string) ([]os.DirEntry, error)
}

type Environment interface {
	LookupEnv(key string) (value string, set bool)
}
