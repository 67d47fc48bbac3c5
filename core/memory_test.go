package core

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/smarty/liftoff/contracts"
)

type inMemoryFileSystem struct {
	fileSystem map[string]*file
	Root       string
	errOpen    map[string]error
	errListing error
}

func newInMemoryFileSystem() *inMemoryFileSystem {
	return &inMemoryFileSystem{
		fileSystem: make(map[string]*file),
		errOpen:    make(map[string]error),
	}
}

func (this *inMemoryFileSystem) Chmod(name string, mode os.FileMode) {
	this.fileSystem[name].mode = mode
}

func (this *inMemoryFileSystem) Listing() (files []contracts.FileInfo, err error) {
	for _, file := range this.fileSystem {
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path() < files[j].Path() })
	return files, this.errListing
}

func (this *inMemoryFileSystem) Open(path string) (io.ReadCloser, error) {
	if err := this.errOpen[path]; err != nil {
		return nil, err
	}
	target, found := this.fileSystem[path]
	if !found {
		return nil, os.ErrNotExist
	}
	if link := target.symlink; link != "" {
		if !filepath.IsAbs(link) {
			link = filepath.Join(filepath.Dir(path), link)
		}
		target = this.fileSystem[link]
	}
	return io.NopCloser(bytes.NewReader(target.contents)), nil
}

func (this *inMemoryFileSystem) ReadFile(path string) ([]byte, error) {
	target, found := this.fileSystem[path]
	if !found {
		return nil, os.ErrNotExist
	}
	return target.contents, nil
}

func (this *inMemoryFileSystem) Delete(path string) error {
	if err := this.errOpen[path]; err != nil {
		return err
	}
	delete(this.fileSystem, path)
	return nil
}

func (this *inMemoryFileSystem) WriteFile(path string, content []byte) {
	this.fileSystem[path] = &file{
		path:     path,
		contents: content,
		mod:      InMemoryModTime,
		mode:     0644,
	}
}

func (this *inMemoryFileSystem) CreateSymlink(source, target string) {
	this.fileSystem[target] = &file{
		path:    target,
		mod:     InMemoryModTime,
		symlink: source,
		mode:    os.ModeSymlink | 0777,
	}
}

func (this *inMemoryFileSystem) RootPath() string {
	return this.Root
}

/////////////////////////////////////////////////

type file struct {
	path     string
	contents []byte
	mod      time.Time
	symlink  string
	mode     os.FileMode
}

var InMemoryModTime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func (this *file) ModTime() time.Time { return this.mod }
func (this *file) Symlink() string    { return this.symlink }
func (this *file) Path() string       { return this.path }
func (this *file) Size() int64        { return int64(len(this.contents)) }
func (this *file) Mode() os.FileMode  { return this.mode }
