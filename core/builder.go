package core

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/smarty/liftoff/contracts"
)

type DirectoryPackageBuilderFileSystem interface {
	contracts.PathLister
	contracts.FileOpener
	contracts.RootPath
}

// DirectoryPackageBuilder writes every file below the storage root into the
// archive, optionally nested under a prefix.
type DirectoryPackageBuilder struct {
	storage  DirectoryPackageBuilderFileSystem
	archive  contracts.ArchiveWriter
	prefix   string
	logger   *zap.Logger
	contents []contracts.ArchiveItem
}

func NewDirectoryPackageBuilder(storage DirectoryPackageBuilderFileSystem, archive contracts.ArchiveWriter, prefix string, logger *zap.Logger) *DirectoryPackageBuilder {
	return &DirectoryPackageBuilder{
		storage: storage,
		archive: archive,
		prefix:  strings.Trim(filepath.ToSlash(prefix), "/"),
		logger:  logger,
	}
}

func (this *DirectoryPackageBuilder) Build() error {
	listing, err := this.storage.Listing()
	if err != nil {
		return err
	}
	for _, file := range listing {
		if err = this.add(file); err != nil {
			return err
		}
	}
	return this.archive.Close()
}

func (this *DirectoryPackageBuilder) Contents() []contracts.ArchiveItem {
	return this.contents
}

func (this *DirectoryPackageBuilder) add(file contracts.FileInfo) error {
	if file.Symlink() != "" && this.outOfBounds(file) {
		return this.symlinkOutOfBoundError(file)
	}
	header, err := this.buildHeader(file)
	if err != nil {
		return err
	}
	this.logger.Debug("adding to archive", zap.String("entry", header.Name), zap.Int64("size", header.Size))
	if err = this.archive.WriteHeader(header); err != nil {
		return err
	}
	size, err := this.archiveContents(file)
	if err != nil {
		return err
	}
	this.contents = append(this.contents, contracts.ArchiveItem{Path: header.Name, Size: size})
	return nil
}

func (this *DirectoryPackageBuilder) archiveContents(file contracts.FileInfo) (int64, error) {
	reader, err := this.storage.Open(file.Path())
	if err != nil {
		return 0, err
	}
	defer closeResource(reader)
	return io.Copy(this.archive, reader)
}

func (this *DirectoryPackageBuilder) buildHeader(file contracts.FileInfo) (header contracts.ArchiveHeader, err error) {
	relative, err := filepath.Rel(this.storage.RootPath(), file.Path())
	if err != nil {
		return header, err
	}
	header.Name = filepath.ToSlash(relative)
	if this.prefix != "" {
		header.Name = path.Join(this.prefix, header.Name)
	}
	header.Size = file.Size()
	header.ModTime = file.ModTime()
	header.Executable = contracts.IsExecutable(file.Mode())
	return header, nil
}

func (this *DirectoryPackageBuilder) symlinkOutOfBoundError(file contracts.FileInfo) error {
	return fmt.Errorf(
		"%w: the file \"%s\" is a symlink that refers to \"%s\" which is outside of the root directory: \"%s\"",
		contracts.ErrPackaging,
		file.Path(),
		file.Symlink(),
		this.storage.RootPath())
}

func (this *DirectoryPackageBuilder) outOfBounds(info contracts.FileInfo) bool {
	target := info.Symlink()
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(info.Path()), target)
	}
	root := filepath.Clean(this.storage.RootPath())
	target = filepath.Clean(target)
	return target != root && !strings.HasPrefix(target, root+string(filepath.Separator))
}

func closeResource(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
