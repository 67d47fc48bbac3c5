package core

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/smarty/liftoff/contracts"
)

type EntryPointFileSystem interface {
	contracts.FileChecker
	contracts.DirectoryReader
}

// EntryPointResolver finds the program to start after an update. It tries
// the release file's hint, then the project name with the platform's
// executable suffix, then scans the install root.
type EntryPointResolver struct {
	files    EntryPointFileSystem
	platform contracts.Platform
}

func NewEntryPointResolver(files EntryPointFileSystem, platform contracts.Platform) *EntryPointResolver {
	return &EntryPointResolver{files: files, platform: platform}
}

func (this *EntryPointResolver) Client(root string, file contracts.ReleaseFile, project string) (string, bool) {
	if found, ok := this.hinted(root, file); ok {
		return found, true
	}
	if found, ok := this.named(root, project); ok {
		return found, true
	}
	return this.scan(root, project)
}

// Updater looks only at the hint and the project name, never a scan.
func (this *EntryPointResolver) Updater(root string, file contracts.ReleaseFile, project string) (string, bool) {
	if found, ok := this.hinted(root, file); ok {
		return found, true
	}
	if found, ok := this.named(filepath.Join(root, contracts.UpdaterDirectory), project); ok {
		return found, true
	}
	return this.named(root, project)
}

func (this *EntryPointResolver) hinted(root string, file contracts.ReleaseFile) (string, bool) {
	hint := file.EntryPoint(this.platform)
	if hint == "" {
		return "", false
	}
	candidate, _, inside := resolveBelow(root, normalizeEntryName(hint))
	if !inside {
		return "", false
	}
	return candidate, this.exists(candidate)
}

func (this *EntryPointResolver) named(directory, project string) (string, bool) {
	if project == "" {
		return "", false
	}
	candidate := filepath.Join(directory, project+this.platform.ExecutableSuffix())
	return candidate, this.exists(candidate)
}

func (this *EntryPointResolver) scan(root, project string) (string, bool) {
	entries, err := this.files.ReadDir(root)
	if err != nil {
		return "", false
	}
	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.Contains(strings.ToLower(name), "updater") {
			continue
		}
		if this.launchable(entry) {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return startsWithFold(candidates[i], project) && !startsWithFold(candidates[j], project)
	})
	return filepath.Join(root, candidates[0]), true
}

func (this *EntryPointResolver) launchable(entry os.DirEntry) bool {
	extension := strings.ToLower(filepath.Ext(entry.Name()))
	switch this.platform.OS() {
	case contracts.OSWindows:
		return !entry.IsDir() && extension == ".exe"
	case contracts.OSMacOS:
		if entry.IsDir() {
			return extension == ".app"
		}
	}
	if entry.IsDir() || extension != "" {
		return false
	}
	info, err := entry.Info()
	return err == nil && contracts.IsExecutable(info.Mode())
}

func (this *EntryPointResolver) exists(path string) bool {
	_, err := this.files.Stat(path)
	return err == nil
}

func startsWithFold(name, prefix string) bool {
	return prefix != "" && len(name) >= len(prefix) && strings.EqualFold(name[:len(prefix)], prefix)
}
