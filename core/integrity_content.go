package core

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/smarty/liftoff/contracts"
)

// FileContentIntegrityCheck compares the download's digest with the expected
// hex digest. When not enforced a mismatch is only logged.
type FileContentIntegrityCheck struct {
	hasher   func() hash.Hash
	files    contracts.FileOpener
	enforced bool
	logger   *zap.Logger
}

func NewFileContentIntegrityCheck(hasher func() hash.Hash, files contracts.FileOpener, enforced bool, logger *zap.Logger) *FileContentIntegrityCheck {
	return &FileContentIntegrityCheck{hasher: hasher, files: files, enforced: enforced, logger: logger}
}

func (this *FileContentIntegrityCheck) Verify(file contracts.DownloadedFile) error {
	expected := strings.ToLower(strings.TrimSpace(file.ExpectedSHA256))
	if expected == "" {
		return nil
	}
	reader, err := this.files.Open(file.Path)
	if err != nil {
		return fmt.Errorf("%w: %s", contracts.ErrIntegrity, err)
	}
	defer closeResource(reader)
	hasher := this.hasher()
	if _, err = io.Copy(hasher, reader); err != nil {
		return fmt.Errorf("%w: %s", contracts.ErrIntegrity, err)
	}
	actual := hex.EncodeToString(hasher.Sum(nil))
	if actual == expected {
		return nil
	}
	if !this.enforced {
		this.logger.Warn("checksum mismatch ignored",
			zap.String("path", file.Path),
			zap.String("expected", expected),
			zap.String("actual", actual))
		return nil
	}
	return fmt.Errorf("%w: checksum mismatch for \"%s\" (expected: [%s], actual: [%s])",
		contracts.ErrIntegrity, file.Path, expected, actual)
}
