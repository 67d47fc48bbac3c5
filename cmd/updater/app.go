package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/sha256-simd"
	"go.uber.org/zap"

	"github.com/smarty/liftoff/contracts"
	"github.com/smarty/liftoff/core"
	"github.com/smarty/liftoff/shell"
)

const (
	settingsFileName = "liftoff.settings.json"
	lockFileName     = ".liftoff.lock"
	maxGatewayRetry  = 2
)

type UpdaterOptions struct {
	InstallDirectory  string
	SettingsPath      string
	NoRelaunch        bool
	AllowHashMismatch bool
	LogLevel          string
	Arguments         []string
}

type UpdaterApp struct {
	options UpdaterOptions
}

func NewUpdaterApp(options UpdaterOptions) *UpdaterApp {
	return &UpdaterApp{options: options}
}

func (this *UpdaterApp) Run(ctx context.Context) error {
	root, err := this.installRoot()
	if err != nil {
		return err
	}
	logger := shell.NewLogger(this.options.LogLevel, filepath.Join(root, contracts.UpdaterDirectory, "logs", "updater.log"))
	defer func() { _ = logger.Sync() }()

	loader := core.NewSettingsLoader(shell.NewDiskFileSystem(""), shell.NewEnvironment())
	settings, err := loader.LoadUpdateSettings(this.settingsPath(root))
	if err != nil {
		return err
	}
	if this.options.AllowHashMismatch {
		settings.AllowHashMismatch = true
	}

	result := this.orchestrator(root, settings, logger).Run(ctx, core.UpdateOptions{
		Root:       root,
		Platform:   contracts.CurrentPlatform(),
		NoRelaunch: this.options.NoRelaunch,
		Arguments:  this.options.Arguments,
	})
	logger.Info("update finished",
		zap.String("state", result.State.String()),
		zap.String("action", result.Action.String()),
		zap.String("version", result.Version.String()),
		zap.String("launch", result.Launch.Status.String()))
	return result.Err
}

func (this *UpdaterApp) orchestrator(root string, settings contracts.UpdateSettings, logger *zap.Logger) *core.UpdateOrchestrator {
	client := shell.NewHTTPClient()
	disk := shell.NewDiskFileSystem(root)
	gateway := core.NewRetryGateway(shell.NewFileStoreGateway(client, settings.BaseURL, logger), maxGatewayRetry, logger)
	credentials := core.NewCredentialCache(gateway, settings.Username, settings.Password)
	locator := core.NewStorageLocator(gateway, credentials, settings.BaseURL)

	integrity := core.NewCompoundIntegrityCheck(
		core.NewFileSizeIntegrityCheck(disk),
		shell.NewZipStructureCheck(),
		core.NewFileContentIntegrityCheck(sha256.New, disk, !settings.AllowHashMismatch, logger),
	)
	engine := core.NewDownloadEngine(client, locator, core.NewHostStrategyTable(settings.Hosts...), integrity, os.TempDir(), logger)

	return core.NewUpdateOrchestrator(
		core.NewManifestFetcher(client, locator, settings.ConnectionSettings, logger),
		engine,
		core.NewSelectiveExtractor(shell.NewZipArchiveOpener(), disk, logger),
		disk,
		core.NewEntryPointResolver(disk, contracts.CurrentPlatform()),
		shell.NewProcessLauncher(),
		shell.NewConsoleNotifier(os.Stderr),
		shell.NewFileLock(filepath.Join(root, contracts.UpdaterDirectory, lockFileName), 0),
		logger,
	)
}

func (this *UpdaterApp) settingsPath(root string) string {
	if this.options.SettingsPath != "" {
		return this.options.SettingsPath
	}
	return filepath.Join(root, settingsFileName)
}

func (this *UpdaterApp) installRoot() (string, error) {
	if this.options.InstallDirectory != "" {
		return filepath.Abs(this.options.InstallDirectory)
	}
	executable, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(executable); err == nil {
		executable = resolved
	}
	return installRootOf(executable), nil
}

// installRootOf is the directory above update/ when the executable lives there.
func installRootOf(executable string) string {
	directory := filepath.Dir(executable)
	if strings.EqualFold(filepath.Base(directory), contracts.UpdaterDirectory) {
		return filepath.Dir(directory)
	}
	return directory
}
