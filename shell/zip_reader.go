package shell

import (
	"io"
	"os"

	"github.com/klauspost/compress/zip"

	"github.com/smarty/liftoff/contracts"
)

type ZipArchiveOpener struct{}

func NewZipArchiveOpener() *ZipArchiveOpener { return &ZipArchiveOpener{} }

func (this *ZipArchiveOpener) OpenArchive(path string) (contracts.ArchiveReader, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	return &ZipArchiveReader{reader: reader}, nil
}

type ZipArchiveReader struct {
	reader *zip.ReadCloser
}

func (this *ZipArchiveReader) Entries() (entries []contracts.ArchiveEntry) {
	for _, file := range this.reader.File {
		entries = append(entries, zipEntry{file: file})
	}
	return entries
}

func (this *ZipArchiveReader) Close() error {
	return this.reader.Close()
}

type zipEntry struct{ file *zip.File }

func (this zipEntry) Name() string                 { return this.file.Name }
func (this zipEntry) IsDir() bool                  { return this.file.FileInfo().IsDir() }
func (this zipEntry) Mode() os.FileMode            { return this.file.Mode() }
func (this zipEntry) Open() (io.ReadCloser, error) { return this.file.Open() }
