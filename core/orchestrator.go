package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/smarty/liftoff/contracts"
)

type UpdateState int

const (
	Idle UpdateState = iota
	Checking
	UpdatingSelf
	UpdatingClient
	UpToDate
	Relaunching
	Completed
	Error
)

func (this UpdateState) String() string {
	switch this {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case UpdatingSelf:
		return "updating-self"
	case UpdatingClient:
		return "updating-client"
	case UpToDate:
		return "up-to-date"
	case Relaunching:
		return "relaunching"
	case Completed:
		return "completed"
	default:
		return "error"
	}
}

type UpdateAction int

const (
	NoAction UpdateAction = iota
	SelfUpdate
	ClientUpdate
)

func (this UpdateAction) String() string {
	switch this {
	case SelfUpdate:
		return "self-update"
	case ClientUpdate:
		return "client-update"
	default:
		return "none"
	}
}

type UpdateResult struct {
	State   UpdateState
	Action  UpdateAction
	Version contracts.Version
	Launch  contracts.LaunchOutcome
	Err     error
}

type UpdateOptions struct {
	Root           string
	Platform       contracts.Platform
	ClientProject  string
	UpdaterProject string
	NoRelaunch     bool
	Arguments      []string
}

type Downloader interface {
	Download(ctx context.Context, request contracts.DownloadRequest) (contracts.DownloadResult, error)
}

type Extractor interface {
	Extract(ctx context.Context, request contracts.ExtractionRequest) (contracts.ExtractionReport, error)
}

type OrchestratorFileSystem interface {
	contracts.FileReader
	contracts.Deleter
}

type EntryPoints interface {
	Client(root string, file contracts.ReleaseFile, project string) (string, bool)
	Updater(root string, file contracts.ReleaseFile, project string) (string, bool)
}

var (
	errNothingToDownload  = errors.New("release has no downloadable file")
	errEntryPointNotFound = errors.New("no launchable program found")
)

// UpdateOrchestrator runs one update check: the updater replaces itself
// first, and only a current updater installs the client.
type UpdateOrchestrator struct {
	manifests  ManifestSource
	downloader Downloader
	extractor  Extractor
	files      OrchestratorFileSystem
	entries    EntryPoints
	launcher   contracts.Launcher
	notifier   contracts.Notifier
	locker     Locker
	logger     *zap.Logger

	lock    sync.Mutex
	history []UpdateState
}

func NewUpdateOrchestrator(
	manifests ManifestSource,
	downloader Downloader,
	extractor Extractor,
	files OrchestratorFileSystem,
	entries EntryPoints,
	launcher contracts.Launcher,
	notifier contracts.Notifier,
	locker Locker,
	logger *zap.Logger,
) *UpdateOrchestrator {
	return &UpdateOrchestrator{
		manifests:  manifests,
		downloader: downloader,
		extractor:  extractor,
		files:      files,
		entries:    entries,
		launcher:   launcher,
		notifier:   notifier,
		locker:     locker,
		logger:     logger,
	}
}

// History lists every state entered during the last run, starting at Idle.
func (this *UpdateOrchestrator) History() []UpdateState {
	this.lock.Lock()
	defer this.lock.Unlock()
	return append([]UpdateState(nil), this.history...)
}

func (this *UpdateOrchestrator) Run(ctx context.Context, options UpdateOptions) (result UpdateResult) {
	options = withDefaultProjects(options)
	this.lock.Lock()
	this.history = []UpdateState{Idle}
	this.lock.Unlock()

	unlock, err := this.locker.Lock(ctx)
	if err != nil {
		return this.fail(result, fmt.Errorf("single instance lock: %w", err), "Another update is already running.")
	}
	release := sync.OnceValue(unlock)
	defer func() { _ = release() }()

	this.enter(&result, Checking)
	clientMarker := this.readMarker(filepath.Join(options.Root, contracts.ClientMarkerName))
	updaterMarker := this.readMarker(filepath.Join(options.Root, contracts.UpdaterDirectory, contracts.UpdaterMarkerName))
	if updaterMarker.Version.IsEmpty() {
		updaterMarker = this.readMarker(filepath.Join(options.Root, contracts.UpdaterMarkerName))
	}
	clientProject := firstNonEmpty(clientMarker.Project, options.ClientProject)
	updaterProject := firstNonEmpty(updaterMarker.Project, options.UpdaterProject)

	manifest := this.manifests.Fetch(ctx)
	if manifest == nil {
		return this.fail(result, contracts.ErrManifestUnavailable, "Unable to check for updates. Please try again later.")
	}

	if item, found := newerRelease(manifest, updaterProject, updaterMarker.Version); found {
		this.logger.Info("updater update available",
			zap.String("installed", updaterMarker.Version.String()),
			zap.String("available", item.Version.String()))
		this.enter(&result, UpdatingSelf)
		result.Action, result.Version = SelfUpdate, item.Version
		file, err := this.install(ctx, options, item, contracts.OnlyUnder(contracts.UpdaterDirectory))
		if err != nil {
			return this.fail(result, err, "The updater could not update itself.")
		}
		_ = release()
		return this.relaunch(ctx, result, options, func() (string, bool) {
			return this.entries.Updater(options.Root, file, updaterProject)
		})
	}

	file := contracts.ReleaseFile{}
	if item, found := newerRelease(manifest, clientProject, clientMarker.Version); found {
		this.logger.Info("client update available",
			zap.String("installed", clientMarker.Version.String()),
			zap.String("available", item.Version.String()))
		this.enter(&result, UpdatingClient)
		result.Action, result.Version = ClientUpdate, item.Version
		if file, err = this.install(ctx, options, item, contracts.ExcludeUnder(contracts.UpdaterDirectory)); err != nil {
			return this.fail(result, err, fmt.Sprintf("Updating to version %s failed.", item.Version))
		}
	} else {
		this.enter(&result, UpToDate)
		result.Version = clientMarker.Version
		if project := manifest.Projects.Lookup(clientProject); project != nil {
			if item, ok := project.LatestRelease(); ok {
				file, _ = selectReleaseFile(item, options.Platform)
			}
		}
	}
	_ = release()
	return this.relaunch(ctx, result, options, func() (string, bool) {
		return this.entries.Client(options.Root, file, clientProject)
	})
}

func (this *UpdateOrchestrator) install(ctx context.Context, options UpdateOptions, item contracts.ReleaseItem, skip contracts.SkipPredicate) (contracts.ReleaseFile, error) {
	file, ok := selectReleaseFile(item, options.Platform)
	if !ok {
		return file, fmt.Errorf("%w: %s", errNothingToDownload, item.Version)
	}
	download, err := this.downloader.Download(ctx, contracts.DownloadRequest{
		Name:           file.Name,
		URL:            file.URL,
		ExpectedSHA256: file.SHA256,
		ExpectedSize:   file.Size,
	})
	if err != nil {
		return file, err
	}
	defer func() {
		if err := this.files.Delete(download.Path); err != nil {
			this.logger.Warn("downloaded archive not removed", zap.String("path", download.Path), zap.Error(err))
		}
	}()
	report, err := this.extractor.Extract(ctx, contracts.ExtractionRequest{
		ArchivePath: download.Path,
		Root:        options.Root,
		Skip:        skip,
	})
	if err != nil {
		return file, err
	}
	if len(report.Written) == 0 {
		return file, fmt.Errorf("%w: %s contained nothing to install", contracts.ErrIntegrity, file.Name)
	}
	return file, nil
}

func (this *UpdateOrchestrator) relaunch(ctx context.Context, result UpdateResult, options UpdateOptions, resolve func() (string, bool)) UpdateResult {
	this.enter(&result, Relaunching)
	if options.NoRelaunch {
		result.Launch = contracts.LaunchOutcome{Status: contracts.LaunchSkipped}
		this.enter(&result, Completed)
		return result
	}
	target, found := resolve()
	if !found {
		return this.fail(result, &contracts.LaunchError{Cause: errEntryPointNotFound}, "The application could not be started.")
	}
	outcome, err := this.launcher.Launch(ctx, contracts.LaunchRequest{Path: target, Arguments: options.Arguments})
	result.Launch = outcome
	if err != nil {
		var launchError *contracts.LaunchError
		if !errors.As(err, &launchError) {
			err = &contracts.LaunchError{Path: target, Cause: err}
		}
		return this.fail(result, err, "The application could not be started.")
	}
	this.logger.Info("relaunched", zap.String("path", outcome.Path), zap.Int("pid", outcome.PID))
	this.enter(&result, Completed)
	return result
}

func (this *UpdateOrchestrator) fail(result UpdateResult, err error, message string) UpdateResult {
	this.logger.Error("update failed",
		zap.String("state", result.State.String()),
		zap.String("action", result.Action.String()),
		zap.Error(err))
	this.enter(&result, Error)
	result.Err = err
	this.notifier.Notify(message)
	return result
}

func (this *UpdateOrchestrator) enter(result *UpdateResult, state UpdateState) {
	this.lock.Lock()
	this.history = append(this.history, state)
	this.lock.Unlock()
	this.logger.Debug("state", zap.String("from", result.State.String()), zap.String("to", state.String()))
	result.State = state
}

// readMarker treats an unreadable marker as "nothing installed".
func (this *UpdateOrchestrator) readMarker(path string) contracts.VersionMarker {
	raw, err := this.files.ReadFile(path)
	if err != nil {
		return contracts.VersionMarker{}
	}
	marker, err := contracts.ParseVersionMarker(raw)
	if err != nil {
		this.logger.Warn("ignoring version marker", zap.String("path", path), zap.Error(err))
		return contracts.VersionMarker{}
	}
	return marker
}

func newerRelease(manifest *contracts.Manifest, project string, installed contracts.Version) (contracts.ReleaseItem, bool) {
	releases := manifest.Projects.Lookup(project)
	if releases == nil || !contracts.IsNewer(releases.LatestVersion(), installed) {
		return contracts.ReleaseItem{}, false
	}
	return releases.LatestRelease()
}

// selectReleaseFile falls back to the release URL when no file qualifies.
func selectReleaseFile(item contracts.ReleaseItem, platform contracts.Platform) (contracts.ReleaseFile, bool) {
	if file, ok := item.SelectFile(platform); ok {
		return file, true
	}
	if item.URL != "" {
		return contracts.ReleaseFile{Name: filepath.Base(item.URL), URL: item.URL}, true
	}
	return contracts.ReleaseFile{}, false
}

func withDefaultProjects(options UpdateOptions) UpdateOptions {
	options.ClientProject = firstNonEmpty(options.ClientProject, contracts.DefaultClientName)
	options.UpdaterProject = firstNonEmpty(options.UpdaterProject, contracts.DefaultUpdaterName)
	if options.Platform == "" {
		options.Platform = contracts.CurrentPlatform()
	}
	return options
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
