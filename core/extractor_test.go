package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/smarty/assertions/should"
	"github.com/smarty/gunit"
	"go.uber.org/zap"

	"github.com/smarty/liftoff/contracts"
	"github.com/smarty/liftoff/shell"
)

func TestSelectiveExtractorFixture(t *testing.T) {
	gunit.Run(new(SelectiveExtractorFixture), t)
}

type SelectiveExtractorFixture struct {
	*gunit.Fixture
	workspace string
	root      string
	archive   string
	extractor *SelectiveExtractor
}

func (this *SelectiveExtractorFixture) Setup() {
	var err error
	this.workspace, err = os.MkdirTemp("", "extractor-")
	this.So(err, should.BeNil)
	this.root = filepath.Join(this.workspace, "install", "app")
	this.So(os.MkdirAll(this.root, 0755), should.BeNil)
	this.archive = filepath.Join(this.workspace, "release.zip")
	this.extractor = NewSelectiveExtractor(shell.NewZipArchiveOpener(), shell.NewDiskFileSystem(this.root), zap.NewNop())
}

func (this *SelectiveExtractorFixture) Teardown() {
	_ = os.RemoveAll(this.workspace)
}

type zipEntrySpec struct {
	name string
	body string
	mode os.FileMode
}

func (this *SelectiveExtractorFixture) writeArchive(entries ...zipEntrySpec) {
	file, err := os.Create(this.archive)
	this.So(err, should.BeNil)
	writer := zip.NewWriter(file)
	for _, entry := range entries {
		header := &zip.FileHeader{Name: entry.name, Method: zip.Deflate}
		mode := entry.mode
		if mode == 0 {
			mode = 0644
		}
		header.SetMode(mode)
		content, err := writer.CreateHeader(header)
		this.So(err, should.BeNil)
		_, err = content.Write([]byte(entry.body))
		this.So(err, should.BeNil)
	}
	this.So(writer.Close(), should.BeNil)
	this.So(file.Close(), should.BeNil)
}

func (this *SelectiveExtractorFixture) extract(skip contracts.SkipPredicate) (contracts.ExtractionReport, error) {
	return this.extractor.Extract(context.Background(), contracts.ExtractionRequest{
		ArchivePath: this.archive,
		Root:        this.root,
		Skip:        skip,
	})
}

func (this *SelectiveExtractorFixture) read(relative string) string {
	raw, err := os.ReadFile(filepath.Join(this.root, filepath.FromSlash(relative)))
	if err != nil {
		return "<missing>"
	}
	return string(raw)
}

func (this *SelectiveExtractorFixture) TestTraversalEntriesAreRejectedAndTheRestIsWritten() {
	this.writeArchive(
		zipEntrySpec{name: "../../evil.txt", body: "evil"},
		zipEntrySpec{name: "update/subdir/file.txt", body: "good"},
	)

	report, err := this.extract(nil)

	this.So(err, should.BeNil)
	this.So(report.Rejected, should.Resemble, []string{"../../evil.txt"})
	this.So(report.Written, should.Resemble, []string{"update/subdir/file.txt"})
	this.So(this.read("update/subdir/file.txt"), should.Equal, "good")
	_, statErr := os.Stat(filepath.Join(this.workspace, "evil.txt"))
	this.So(os.IsNotExist(statErr), should.BeTrue)
}

func (this *SelectiveExtractorFixture) TestAbsoluteAndDriveQualifiedEntriesAreRejected() {
	this.writeArchive(
		zipEntrySpec{name: "/etc/absolute.txt", body: "x"},
		zipEntrySpec{name: `C:\Windows\evil.dll`, body: "x"},
		zipEntrySpec{name: `..\sibling.txt`, body: "x"},
		zipEntrySpec{name: "a/../../escape.txt", body: "x"},
		zipEntrySpec{name: "a/../inside.txt", body: "fine"},
	)

	report, err := this.extract(nil)

	this.So(err, should.BeNil)
	this.So(report.Rejected, should.HaveLength, 4)
	this.So(report.Written, should.Resemble, []string{"inside.txt"})
	this.So(this.read("inside.txt"), should.Equal, "fine")
}

func (this *SelectiveExtractorFixture) TestBackslashSeparatorsAreNormalized() {
	this.writeArchive(zipEntrySpec{name: `update\Updater.version.json`, body: `{"version":"1.0.0"}`})

	report, err := this.extract(nil)

	this.So(err, should.BeNil)
	this.So(report.Written, should.Resemble, []string{"update/Updater.version.json"})
	this.So(this.read("update/Updater.version.json"), should.Equal, `{"version":"1.0.0"}`)
}

func (this *SelectiveExtractorFixture) TestDirectoryEntriesAreSkippedSilently() {
	this.writeArchive(
		zipEntrySpec{name: "lib/", mode: os.ModeDir | 0755},
		zipEntrySpec{name: "lib/a.dll", body: "a"},
	)

	report, err := this.extract(nil)

	this.So(err, should.BeNil)
	this.So(report.Written, should.Resemble, []string{"lib/a.dll"})
	this.So(report.Skipped, should.BeEmpty)
}

func (this *SelectiveExtractorFixture) TestOnlyUnderKeepsTheSelfUpdateInsideItsDirectory() {
	this.writeArchive(
		zipEntrySpec{name: "update/Updater", body: "new updater"},
		zipEntrySpec{name: "Client", body: "client"},
	)

	report, err := this.extract(contracts.OnlyUnder(contracts.UpdaterDirectory))

	this.So(err, should.BeNil)
	this.So(report.Written, should.Resemble, []string{"update/Updater"})
	this.So(report.Skipped, should.Resemble, []string{"Client"})
	this.So(this.read("Client"), should.Equal, "<missing>")
}

func (this *SelectiveExtractorFixture) TestExcludeUnderLeavesTheRunningUpdaterAlone() {
	this.So(os.MkdirAll(filepath.Join(this.root, "update"), 0755), should.BeNil)
	this.So(os.WriteFile(filepath.Join(this.root, "update", "Updater"), []byte("running"), 0755), should.BeNil)
	this.writeArchive(
		zipEntrySpec{name: "update/Updater", body: "replacement"},
		zipEntrySpec{name: "Client", body: "client"},
	)

	report, err := this.extract(contracts.ExcludeUnder("update"))

	this.So(err, should.BeNil)
	this.So(report.Written, should.Resemble, []string{"Client"})
	this.So(this.read("update/Updater"), should.Equal, "running")
}

func (this *SelectiveExtractorFixture) TestExistingFilesAreOverwritten() {
	this.So(os.WriteFile(filepath.Join(this.root, "Client"), []byte("a much longer old build"), 0644), should.BeNil)
	this.writeArchive(zipEntrySpec{name: "Client", body: "new"})

	_, err := this.extract(nil)

	this.So(err, should.BeNil)
	this.So(this.read("Client"), should.Equal, "new")
}

func (this *SelectiveExtractorFixture) TestExecutableBitIsPreserved() {
	if runtime.GOOS == "windows" {
		return
	}
	this.writeArchive(
		zipEntrySpec{name: "Client", body: "#!/bin/sh", mode: 0755},
		zipEntrySpec{name: "readme.txt", body: "text", mode: 0644},
	)

	_, err := this.extract(nil)

	this.So(err, should.BeNil)
	executable, _ := os.Stat(filepath.Join(this.root, "Client"))
	plain, _ := os.Stat(filepath.Join(this.root, "readme.txt"))
	this.So(executable.Mode().Perm()&0100, should.NotEqual, os.FileMode(0))
	this.So(plain.Mode().Perm()&0100, should.Equal, os.FileMode(0))
}

func (this *SelectiveExtractorFixture) TestCorruptArchiveIsAnIntegrityError() {
	this.So(os.WriteFile(this.archive, []byte("not a zip"), 0644), should.BeNil)

	_, err := this.extract(nil)

	this.So(errors.Is(err, contracts.ErrIntegrity), should.BeTrue)
}

func (this *SelectiveExtractorFixture) TestCancelledContextStops() {
	this.writeArchive(zipEntrySpec{name: "Client", body: "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := this.extractor.Extract(ctx, contracts.ExtractionRequest{ArchivePath: this.archive, Root: this.root})

	this.So(errors.Is(err, context.Canceled), should.BeTrue)
	this.So(report.Written, should.BeEmpty)
}
