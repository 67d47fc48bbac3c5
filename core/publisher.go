package core

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/sha256-simd"
	"github.com/smartystreets/clock"
	"go.uber.org/zap"

	"github.com/smarty/liftoff/contracts"
)

type Packager interface {
	Package(request PackageRequest) (contracts.PackagedArtifact, error)
}

type ManifestSource interface {
	Fetch(ctx context.Context) *contracts.Manifest
}

// Locker serializes manifest writers. The returned function releases the lock.
type Locker interface {
	Lock(ctx context.Context) (func() error, error)
}

type PublishRequest struct {
	Version   contracts.Version
	Root      string
	Artifacts []string
	Notes     string
}

type PublishedFile struct {
	Project    string
	Platform   contracts.Platform
	RemotePath string
	File       contracts.ReleaseFile
}

type PublishReport struct {
	Version      contracts.Version
	Files        []PublishedFile
	ManifestPath string
	Revision     int64
}

const maxManifestMerges = 3

type Publisher struct {
	packager    Packager
	gateway     contracts.StorageGateway
	credentials CredentialSource
	manifests   ManifestSource
	locker      Locker
	settings    contracts.PublishSettings
	clock       *clock.Clock
	logger      *zap.Logger
}

func NewPublisher(
	packager Packager,
	gateway contracts.StorageGateway,
	credentials CredentialSource,
	manifests ManifestSource,
	locker Locker,
	settings contracts.PublishSettings,
	logger *zap.Logger,
) *Publisher {
	return &Publisher{
		packager:    packager,
		gateway:     gateway,
		credentials: credentials,
		manifests:   manifests,
		locker:      locker,
		settings:    settings,
		logger:      logger,
	}
}

func (this *Publisher) Publish(ctx context.Context, request PublishRequest) (report PublishReport, err error) {
	if request.Version.IsEmpty() {
		return report, fmt.Errorf("%w: version is required", contracts.ErrConfiguration)
	}
	if len(request.Artifacts) == 0 {
		return report, fmt.Errorf("%w: no artifacts found below %s", contracts.ErrConfiguration, request.Root)
	}
	report.Version = request.Version

	credential, err := this.credentials.Credential(ctx)
	if err != nil {
		return report, fmt.Errorf("authentication failed: %w", err)
	}
	directory := path.Join("/", this.uploadRoot(), request.Version.String())
	if err = this.mkdirAll(ctx, credential, directory); err != nil {
		return report, err
	}
	claimed := make(map[string]string, len(request.Artifacts))
	for _, artifact := range request.Artifacts {
		published, err := this.publishArtifact(ctx, credential, directory, request.Root, artifact, claimed)
		if err != nil {
			return report, err
		}
		report.Files = append(report.Files, published)
	}

	report.ManifestPath = this.settings.Connection().ResolvedManifestPath()
	report.Revision, err = this.writeManifest(ctx, credential, request, report.Files)
	if err != nil {
		return report, err
	}
	this.logger.Info("published release",
		zap.String("version", request.Version.String()),
		zap.Int("files", len(report.Files)),
		zap.Int64("revision", report.Revision))
	return report, nil
}

// publishArtifact names the remote archive after the group's project.
// claimed maps each remote path of this run to the source that produced it.
func (this *Publisher) publishArtifact(ctx context.Context, credential contracts.Credential, directory, root, source string, claimed map[string]string) (published PublishedFile, err error) {
	updater := isUpdaterArtifact(root, source)
	prefix := ""
	published.Project = this.clientProject()
	if updater {
		prefix = contracts.UpdaterDirectory
		published.Project = this.updaterProject()
	}
	artifact, err := this.packager.Package(PackageRequest{Path: source, Prefix: prefix})
	if err != nil {
		return published, err
	}
	published.Platform = artifact.Platform
	published.RemotePath = path.Join(directory, archiveName(published.Project, artifact.Platform))
	if previous, taken := claimed[strings.ToLower(published.RemotePath)]; taken {
		return published, fmt.Errorf("%w: %s and %s both publish %s", contracts.ErrPackaging, previous, source, published.RemotePath)
	}
	claimed[strings.ToLower(published.RemotePath)] = source

	if err = this.uploadArchive(ctx, credential, published.RemotePath, artifact); err != nil {
		return published, err
	}
	metadata, err := this.gateway.GetMetadata(ctx, credential, published.RemotePath)
	if err != nil {
		return published, fmt.Errorf("metadata lookup for %s failed: %w", published.RemotePath, err)
	}
	published.File = contracts.ReleaseFile{
		Name:   path.Base(published.RemotePath),
		URL:    this.gateway.ResolveDownloadURL(metadata),
		SHA256: artifact.SHA256,
		Size:   artifact.Size,
	}
	entryHints(&published.File, published.Project, updater)
	return published, nil
}

func (this *Publisher) uploadArchive(ctx context.Context, credential contracts.Credential, remotePath string, artifact contracts.PackagedArtifact) error {
	file, err := os.Open(artifact.ArchivePath)
	if err != nil {
		return err
	}
	defer closeResource(file)
	checksum, _ := hex.DecodeString(artifact.SHA256)
	this.logger.Info("uploading artifact",
		zap.String("remote", remotePath),
		zap.String("size", humanSize(artifact.Size)))
	err = this.gateway.Upload(ctx, credential, contracts.UploadRequest{
		RemotePath:  remotePath,
		Body:        file,
		Size:        artifact.Size,
		ContentType: contracts.ArchiveContentType,
		Checksum:    checksum,
	})
	if err != nil {
		return fmt.Errorf("upload of %s failed: %w", remotePath, err)
	}
	return nil
}

func (this *Publisher) writeManifest(ctx context.Context, credential contracts.Credential, request PublishRequest, files []PublishedFile) (int64, error) {
	unlock, err := this.locker.Lock(ctx)
	if err != nil {
		return 0, fmt.Errorf("manifest lock: %w", err)
	}
	defer func() { _ = unlock() }()

	manifestPath := this.settings.Connection().ResolvedManifestPath()
	if err = this.mkdirAll(ctx, credential, path.Dir(manifestPath)); err != nil {
		return 0, err
	}
	for attempt := 1; attempt <= maxManifestMerges; attempt++ {
		manifest := this.current(ctx)
		revision := manifest.Revision
		this.merge(manifest, request, files)

		if latest := this.current(ctx); latest.Revision != revision {
			this.logger.Warn("manifest changed while merging",
				zap.Int64("expected", revision),
				zap.Int64("found", latest.Revision),
				zap.Int("attempt", attempt))
			continue
		}
		manifest.Revision = revision + 1
		manifest.GeneratedAt = this.clock.UTCNow()
		raw, err := manifest.Encode()
		if err != nil {
			return 0, err
		}
		checksum := sha256.Sum256(raw)
		err = this.gateway.Upload(ctx, credential, contracts.UploadRequest{
			RemotePath:  manifestPath,
			Body:        bytes.NewReader(raw),
			Size:        int64(len(raw)),
			ContentType: contracts.ManifestContentType,
			Checksum:    checksum[:],
		})
		if err != nil {
			return 0, fmt.Errorf("manifest upload failed: %w", err)
		}
		return manifest.Revision, nil
	}
	return 0, fmt.Errorf("%w: gave up after %d merges", contracts.ErrManifestConflict, maxManifestMerges)
}

// current fetches the stored manifest, starting a fresh one when none is usable.
func (this *Publisher) current(ctx context.Context) *contracts.Manifest {
	if manifest := this.manifests.Fetch(ctx); manifest != nil {
		return manifest
	}
	return contracts.NewManifest(this.clock.UTCNow())
}

func (this *Publisher) merge(manifest *contracts.Manifest, request PublishRequest, files []PublishedFile) {
	var order []string
	grouped := make(map[string][]contracts.ReleaseFile)
	for _, file := range files {
		if _, found := grouped[file.Project]; !found {
			order = append(order, file.Project)
		}
		grouped[file.Project] = append(grouped[file.Project], file.File)
	}
	for _, project := range order {
		releaseFiles := grouped[project]
		manifest.Project(project).Upsert(contracts.ReleaseItem{
			Version: request.Version,
			URL:     releaseFiles[0].URL,
			Time:    this.clock.UTCNow(),
			Notes:   request.Notes,
			Files:   releaseFiles,
		})
	}
}

// mkdirAll creates each segment of directory in turn.
func (this *Publisher) mkdirAll(ctx context.Context, credential contracts.Credential, directory string) error {
	current := "/"
	for _, segment := range strings.Split(strings.Trim(directory, "/"), "/") {
		if segment == "" {
			continue
		}
		current = path.Join(current, segment)
		if err := this.gateway.Mkdir(ctx, credential, current); err != nil {
			return fmt.Errorf("mkdir %s failed: %w", current, err)
		}
	}
	return nil
}

func (this *Publisher) uploadRoot() string {
	if this.settings.UploadRoot == "" {
		return contracts.DefaultUploadRoot
	}
	return this.settings.UploadRoot
}

func (this *Publisher) clientProject() string {
	if this.settings.ClientProject == "" {
		return contracts.DefaultClientName
	}
	return this.settings.ClientProject
}

func (this *Publisher) updaterProject() string {
	if this.settings.UpdaterProject == "" {
		return contracts.DefaultUpdaterName
	}
	return this.settings.UpdaterProject
}

// isUpdaterArtifact decides by the artifact's path below the artifacts root.
func isUpdaterArtifact(root, source string) bool {
	name := source
	if relative, err := filepath.Rel(root, source); err == nil && root != "" {
		name = relative
	}
	return strings.Contains(strings.ToLower(filepath.ToSlash(name)), "updater")
}

func entryHints(file *contracts.ReleaseFile, project string, updater bool) {
	base := project
	if updater {
		base = contracts.UpdaterDirectory + "/" + project
	}
	file.EntryWindows = base + ".exe"
	file.EntryLinux = base
	file.EntryMacOS = base + ".app"
}
