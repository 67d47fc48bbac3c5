package core

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/smarty/liftoff/contracts"
)

// SelectiveExtractor writes archive entries below an install root, skipping
// what the predicate excludes and rejecting anything that would land outside
// the root.
type SelectiveExtractor struct {
	archives contracts.ArchiveOpener
	files    contracts.FileCreator
	logger   *zap.Logger
}

func NewSelectiveExtractor(archives contracts.ArchiveOpener, files contracts.FileCreator, logger *zap.Logger) *SelectiveExtractor {
	return &SelectiveExtractor{archives: archives, files: files, logger: logger}
}

func (this *SelectiveExtractor) Extract(ctx context.Context, request contracts.ExtractionRequest) (report contracts.ExtractionReport, err error) {
	root, err := filepath.Abs(request.Root)
	if err != nil {
		return report, err
	}
	archive, err := this.archives.OpenArchive(request.ArchivePath)
	if err != nil {
		return report, fmt.Errorf("%w: %s", contracts.ErrIntegrity, err)
	}
	defer closeResource(archive)

	for _, entry := range archive.Entries() {
		if err = ctx.Err(); err != nil {
			return report, err
		}
		name := normalizeEntryName(entry.Name())
		if entry.IsDir() || name == "" || strings.HasSuffix(name, "/") {
			continue
		}
		destination, relative, inside := resolveBelow(root, name)
		if !inside {
			this.logger.Warn("rejected archive entry outside the install root", zap.String("entry", entry.Name()))
			report.Rejected = append(report.Rejected, entry.Name())
			continue
		}
		if request.Skip != nil && request.Skip(relative) {
			report.Skipped = append(report.Skipped, relative)
			continue
		}
		if err = this.write(entry, destination); err != nil {
			return report, fmt.Errorf("extracting %s: %w", relative, err)
		}
		report.Written = append(report.Written, relative)
	}
	this.logger.Info("extracted archive",
		zap.String("archive", request.ArchivePath),
		zap.Int("written", len(report.Written)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("rejected", len(report.Rejected)))
	return report, nil
}

func (this *SelectiveExtractor) write(entry contracts.ArchiveEntry, destination string) error {
	reader, err := entry.Open()
	if err != nil {
		return err
	}
	defer closeResource(reader)
	writer, err := this.files.Create(destination, contracts.IsExecutable(entry.Mode()))
	if err != nil {
		return err
	}
	if _, err = io.Copy(writer, reader); err != nil {
		closeResource(writer)
		return err
	}
	return writer.Close()
}

func normalizeEntryName(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}

// resolveBelow joins name onto root and reports whether the result stays
// strictly below root. Absolute and drive-qualified names never do.
func resolveBelow(root, name string) (destination, relative string, inside bool) {
	if path.IsAbs(name) || filepath.IsAbs(name) || filepath.VolumeName(filepath.FromSlash(name)) != "" || hasDriveLetter(name) {
		return "", "", false
	}
	destination = filepath.Join(root, filepath.FromSlash(name))
	relative, err := filepath.Rel(root, destination)
	if err != nil || relative == "." || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", "", false
	}
	return destination, filepath.ToSlash(relative), true
}

func hasDriveLetter(name string) bool {
	return len(name) >= 2 && name[1] == ':' && (name[0]|0x20 >= 'a' && name[0]|0x20 <= 'z')
}
