package shell

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/smarty/liftoff/contracts"
)

// DiskFileSystem lists and opens the files below root. When root names a
// single file, the listing is that file and RootPath is its directory.
type DiskFileSystem struct{ root string }

func NewDiskFileSystem(root string) *DiskFileSystem {
	return &DiskFileSystem{root: filepath.Clean(root)}
}

func (this *DiskFileSystem) RootPath() string {
	if info, err := os.Stat(this.root); err == nil && !info.IsDir() {
		return filepath.Dir(this.root)
	}
	return this.root
}

func (this *DiskFileSystem) Listing() (listing []contracts.FileInfo, err error) {
	err = filepath.WalkDir(this.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		fileInfo := FileInfo{
			path: path,
			size: info.Size(),
			mod:  info.ModTime(),
			mode: info.Mode(),
		}
		if info.Mode()&os.ModeSymlink == os.ModeSymlink {
			if fileInfo.symlink, err = os.Readlink(path); err != nil {
				return err
			}
			target, err := os.Stat(path)
			if err != nil {
				return err
			}
			if target.IsDir() {
				return nil
			}
			fileInfo.size = target.Size()
			fileInfo.mode = target.Mode()
		}
		listing = append(listing, fileInfo)
		return nil
	})
	return listing, err
}

func (this *DiskFileSystem) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Create truncates any existing file at path after creating its parent directories.
func (this *DiskFileSystem) Create(path string, executable bool) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	mode := os.FileMode(0644)
	if executable {
		mode = 0755
	}
	writer, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return nil, err
	}
	if err = writer.Chmod(mode); err != nil {
		_ = writer.Close()
		return nil, err
	}
	return writer, nil
}

func (this *DiskFileSystem) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (this *DiskFileSystem) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

func (this *DiskFileSystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (this *DiskFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

////////////////////////////////////////

type FileInfo struct {
	path    string
	size    int64
	mod     time.Time
	mode    os.FileMode
	symlink string
}

func (this FileInfo) Path() string       { return this.path }
func (this FileInfo) Size() int64        { return this.size }
func (this FileInfo) ModTime() time.Time { return this.mod }
func (this FileInfo) Symlink() string    { return this.symlink }
func (this FileInfo) Mode() os.FileMode  { return this.mode }
