package core

import (
	"fmt"

	"github.com/smarty/liftoff/contracts"
)

// FileSizeIntegrityCheck rejects empty downloads and, when the expected size
// is known, downloads of any other size.
type FileSizeIntegrityCheck struct {
	files contracts.FileChecker
}

func NewFileSizeIntegrityCheck(files contracts.FileChecker) *FileSizeIntegrityCheck {
	return &FileSizeIntegrityCheck{files: files}
}

func (this *FileSizeIntegrityCheck) Verify(file contracts.DownloadedFile) error {
	info, err := this.files.Stat(file.Path)
	if err != nil {
		return fmt.Errorf("%w: %s", contracts.ErrIntegrity, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: \"%s\" is empty", contracts.ErrIntegrity, file.Path)
	}
	if file.ExpectedSize > 0 && info.Size() != file.ExpectedSize {
		return fmt.Errorf("%w: file size mismatch for \"%s\" (expected: [%d], actual: [%d])",
			contracts.ErrIntegrity, file.Path, file.ExpectedSize, info.Size())
	}
	return nil
}
