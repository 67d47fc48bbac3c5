package shell

import (
	"fmt"

	"github.com/mholt/archiver"

	"github.com/smarty/liftoff/contracts"
)

// ZipStructureCheck walks the central directory of a downloaded archive
// without decompressing entry contents.
type ZipStructureCheck struct {
	format *archiver.Zip
}

func NewZipStructureCheck() *ZipStructureCheck {
	return &ZipStructureCheck{format: archiver.NewZip()}
}

func (this *ZipStructureCheck) Verify(file contracts.DownloadedFile) error {
	err := this.format.Walk(file.Path, func(archiver.File) error { return nil })
	if err != nil {
		return fmt.Errorf("%w: %q is not a readable zip archive: %s", contracts.ErrIntegrity, file.Path, err)
	}
	return nil
}
