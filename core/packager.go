package core

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/sha256-simd"
	"go.uber.org/zap"

	"github.com/smarty/liftoff/contracts"
)

type PackageRequest struct {
	Path   string
	Prefix string
}

type (
	FileSystemFactory    func(root string) DirectoryPackageBuilderFileSystem
	ArchiveWriterFactory func(writer io.Writer) contracts.ArchiveWriter
)

// ArtifactPackager turns a build output directory or a loose file into a
// single zip archive with a sha256 of the archive bytes.
type ArtifactPackager struct {
	tempDirectory string
	fileSystem    FileSystemFactory
	archive       ArchiveWriterFactory
	logger        *zap.Logger
}

func NewArtifactPackager(tempDirectory string, fileSystem FileSystemFactory, archive ArchiveWriterFactory, logger *zap.Logger) *ArtifactPackager {
	return &ArtifactPackager{
		tempDirectory: tempDirectory,
		fileSystem:    fileSystem,
		archive:       archive,
		logger:        logger,
	}
}

func (this *ArtifactPackager) Package(request PackageRequest) (artifact contracts.PackagedArtifact, err error) {
	source, err := filepath.Abs(request.Path)
	if err != nil {
		return artifact, fmt.Errorf("%w: %s", contracts.ErrPackaging, err)
	}
	info, err := os.Stat(source)
	if err != nil {
		return artifact, fmt.Errorf("%w: %s", contracts.ErrPackaging, err)
	}
	artifact.SourcePath = source

	switch {
	case info.IsDir():
		artifact.Platform, _ = contracts.DetectPlatform(splitPath(source)...)
		artifact.Project = inferProjectName(source)
		artifact.ArchivePath = filepath.Join(this.tempDirectory, archiveName(artifact.Project, artifact.Platform))
		err = this.build(source, request.Prefix, &artifact)
	case strings.EqualFold(filepath.Ext(source), contracts.ArchiveExtension):
		artifact.Platform, _ = contracts.MentionsPlatform(filepath.Base(source))
		artifact.Project = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
		artifact.ArchivePath = source
		artifact.SHA256, artifact.Size, err = FileSHA256(source)
	default:
		artifact.Platform, _ = contracts.MentionsPlatform(filepath.Base(source))
		artifact.Project = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
		artifact.ArchivePath = filepath.Join(this.tempDirectory, filepath.Base(source)+contracts.ArchiveExtension)
		err = this.build(source, request.Prefix, &artifact)
	}
	if err != nil {
		return contracts.PackagedArtifact{}, fmt.Errorf("%w: %s: %s", contracts.ErrPackaging, request.Path, err)
	}
	this.logger.Info("packaged artifact",
		zap.String("source", source),
		zap.String("archive", artifact.ArchivePath),
		zap.String("platform", artifact.Platform.String()),
		zap.Int64("size", artifact.Size),
		zap.String("sha256", artifact.SHA256))
	return artifact, nil
}

func (this *ArtifactPackager) build(source, prefix string, artifact *contracts.PackagedArtifact) error {
	if err := os.MkdirAll(filepath.Dir(artifact.ArchivePath), 0755); err != nil {
		return err
	}
	if err := os.Remove(artifact.ArchivePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	file, err := os.Create(artifact.ArchivePath)
	if err != nil {
		return err
	}
	defer closeResource(file)

	hasher := sha256.New()
	counter := &byteCounter{}
	builder := NewDirectoryPackageBuilder(
		this.fileSystem(source),
		this.archive(io.MultiWriter(file, hasher, counter)),
		prefix,
		this.logger,
	)
	if err = builder.Build(); err != nil {
		return err
	}
	if err = file.Close(); err != nil {
		return err
	}
	artifact.Contents = builder.Contents()
	artifact.Size = counter.count
	artifact.SHA256 = hex.EncodeToString(hasher.Sum(nil))
	return nil
}

func archiveName(project string, platform contracts.Platform) string {
	if platform == "" {
		return project + contracts.ArchiveExtension
	}
	return project + "-" + platform.String() + contracts.ArchiveExtension
}

var projectFilePatterns = []string{"*.csproj", "*.fsproj", "*.vbproj"}

const maxProjectSearchDepth = 8

// inferProjectName walks upward looking for a project definition file. Without
// one, the nearest path segment that is neither "publish" nor a platform
// keyword names the project.
func inferProjectName(directory string) string {
	current := directory
	for depth := 0; depth < maxProjectSearchDepth; depth++ {
		for _, pattern := range projectFilePatterns {
			matches, _ := filepath.Glob(filepath.Join(current, pattern))
			if len(matches) > 0 {
				name := filepath.Base(matches[0])
				return strings.TrimSuffix(name, filepath.Ext(name))
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	segments := splitPath(directory)
	for x := len(segments) - 1; x >= 0; x-- {
		segment := segments[x]
		if strings.EqualFold(segment, "publish") {
			continue
		}
		if _, isPlatform := contracts.DetectPlatform(segment); isPlatform {
			continue
		}
		return segment
	}
	return filepath.Base(directory)
}

func splitPath(path string) (segments []string) {
	for _, segment := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

type byteCounter struct{ count int64 }

func (this *byteCounter) Write(p []byte) (int, error) {
	this.count += int64(len(p))
	return len(p), nil
}
