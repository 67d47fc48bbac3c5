package core

import "github.com/smarty/liftoff/contracts"

type CompoundIntegrityCheck struct {
	inners []contracts.IntegrityCheck
}

func NewCompoundIntegrityCheck(inners ...contracts.IntegrityCheck) *CompoundIntegrityCheck {
	return &CompoundIntegrityCheck{inners: inners}
}

func (this *CompoundIntegrityCheck) Verify(file contracts.DownloadedFile) error {
	for _, inner := range this.inners {
		if err := inner.Verify(file); err != nil {
			return err
		}
	}
	return nil
}
