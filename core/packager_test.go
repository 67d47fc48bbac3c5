package core

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/smarty/assertions/should"
	"github.com/smarty/gunit"
	"go.uber.org/zap"

	"github.com/smarty/liftoff/contracts"
	"github.com/smarty/liftoff/shell"
)

func TestArtifactPackagerFixture(t *testing.T) {
	gunit.Run(new(ArtifactPackagerFixture), t)
}

type ArtifactPackagerFixture struct {
	*gunit.Fixture
	workspace string
	temp      string
	packager  *ArtifactPackager
}

func (this *ArtifactPackagerFixture) Setup() {
	var err error
	this.workspace, err = os.MkdirTemp("", "packager-workspace-")
	this.So(err, should.BeNil)
	this.temp, err = os.MkdirTemp("", "packager-temp-")
	this.So(err, should.BeNil)
	this.packager = NewArtifactPackager(this.temp, newDiskFileSystem, newZipWriter, zap.NewNop())
}

func (this *ArtifactPackagerFixture) Teardown() {
	_ = os.RemoveAll(this.workspace)
	_ = os.RemoveAll(this.temp)
}

func (this *ArtifactPackagerFixture) TestDirectoryIsArchivedWithoutItsOwnName() {
	publish := this.writeFiles("Client/bin/linux-x64/publish", "Client", "lib/data.bin")
	this.writeFiles("Client", "Client.csproj")

	artifact, err := this.packager.Package(PackageRequest{Path: publish})

	this.So(err, should.BeNil)
	this.So(artifact.Platform, should.Equal, contracts.LinuxX64)
	this.So(artifact.Project, should.Equal, "Client")
	this.So(artifact.ArchivePath, should.Equal, filepath.Join(this.temp, "Client-linux-x64.zip"))
	this.So(this.entries(artifact.ArchivePath), should.Resemble, []string{"Client", "lib/data.bin"})
	this.assertDigest(artifact)
}

func (this *ArtifactPackagerFixture) TestProjectFallsBackToNearestMeaningfulDirectory() {
	publish := this.writeFiles("updater/win-arm64/publish", "Updater.exe")

	artifact, err := this.packager.Package(PackageRequest{Path: publish})

	this.So(err, should.BeNil)
	this.So(artifact.Project, should.Equal, "updater")
	this.So(filepath.Base(artifact.ArchivePath), should.Equal, "updater-win-arm64.zip")
}

func (this *ArtifactPackagerFixture) TestPrefixNestsEntries() {
	publish := this.writeFiles("updater/linux-x64/publish", "Updater", "Updater.version.json")

	artifact, err := this.packager.Package(PackageRequest{Path: publish, Prefix: "update"})

	this.So(err, should.BeNil)
	this.So(this.entries(artifact.ArchivePath), should.Resemble, []string{"update/Updater", "update/Updater.version.json"})
}

func (this *ArtifactPackagerFixture) TestStaleArchiveIsOverwritten() {
	publish := this.writeFiles("app/osx-arm64/publish", "App")
	stale := filepath.Join(this.temp, "app-osx-arm64.zip")
	this.So(os.WriteFile(stale, []byte("stale and not a zip"), 0644), should.BeNil)

	artifact, err := this.packager.Package(PackageRequest{Path: publish})

	this.So(err, should.BeNil)
	this.So(artifact.ArchivePath, should.Equal, stale)
	this.So(this.entries(stale), should.Resemble, []string{"App"})
}

func (this *ArtifactPackagerFixture) TestExistingArchiveIsUsedAsIs() {
	this.writeFiles("dist", "client-win-x64.zip")
	path := filepath.Join(this.workspace, "dist", "client-win-x64.zip")

	artifact, err := this.packager.Package(PackageRequest{Path: path})

	this.So(err, should.BeNil)
	this.So(artifact.ArchivePath, should.Equal, path)
	this.So(artifact.Platform, should.Equal, contracts.WindowsX64)
	this.assertDigest(artifact)
}

func (this *ArtifactPackagerFixture) TestLooseFileIsWrappedAlone() {
	this.writeFiles("dist", "tool-linux-arm64", "neighbor.txt")
	path := filepath.Join(this.workspace, "dist", "tool-linux-arm64")

	artifact, err := this.packager.Package(PackageRequest{Path: path})

	this.So(err, should.BeNil)
	this.So(artifact.ArchivePath, should.Equal, filepath.Join(this.temp, "tool-linux-arm64.zip"))
	this.So(artifact.Platform, should.Equal, contracts.LinuxARM)
	this.So(this.entries(artifact.ArchivePath), should.Resemble, []string{"tool-linux-arm64"})
	this.assertDigest(artifact)
}

func (this *ArtifactPackagerFixture) TestMissingInputIsAPackagingError() {
	_, err := this.packager.Package(PackageRequest{Path: filepath.Join(this.workspace, "missing")})

	this.So(errors.Is(err, contracts.ErrPackaging), should.BeTrue)
}

func (this *ArtifactPackagerFixture) writeFiles(directory string, names ...string) string {
	root := filepath.Join(this.workspace, directory)
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		this.So(os.MkdirAll(filepath.Dir(path), 0755), should.BeNil)
		this.So(os.WriteFile(path, []byte("contents of "+name), 0755), should.BeNil)
	}
	return root
}

func (this *ArtifactPackagerFixture) entries(path string) []string {
	names, err := zipEntryNames(path)
	this.So(err, should.BeNil)
	return names
}

func zipEntryNames(path string) (names []string, err error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	for _, file := range reader.File {
		names = append(names, file.Name)
		body, err := file.Open()
		if err != nil {
			return nil, err
		}
		_, err = io.Copy(io.Discard, body)
		_ = body.Close()
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(names)
	return names, nil
}

func (this *ArtifactPackagerFixture) assertDigest(artifact contracts.PackagedArtifact) {
	digest, size, err := FileSHA256(artifact.ArchivePath)
	this.So(err, should.BeNil)
	this.So(artifact.SHA256, should.Equal, digest)
	this.So(artifact.SHA256, should.HaveLength, 64)
	this.So(artifact.Size, should.Equal, size)
}

func newDiskFileSystem(root string) DirectoryPackageBuilderFileSystem {
	return shell.NewDiskFileSystem(root)
}

func newZipWriter(writer io.Writer) contracts.ArchiveWriter {
	return shell.NewZipArchiveWriter(writer, 5)
}
