package shell

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smarty/assertions/should"
	"github.com/smarty/gunit"
)

func TestFileLockFixture(t *testing.T) {
	gunit.Run(new(FileLockFixture), t)
}

type FileLockFixture struct {
	*gunit.Fixture
	directory string
	path      string
}

func (this *FileLockFixture) Setup() {
	var err error
	this.directory, err = os.MkdirTemp("", "lock-")
	this.So(err, should.BeNil)
	this.path = filepath.Join(this.directory, "nested", "publish.lock")
}

func (this *FileLockFixture) Teardown() {
	_ = os.RemoveAll(this.directory)
}

func (this *FileLockFixture) TestSecondHolderIsTurnedAway() {
	unlock, err := NewFileLock(this.path, 0).Lock(context.Background())
	this.So(err, should.BeNil)

	_, err = NewFileLock(this.path, 0).Lock(context.Background())
	this.So(errors.Is(err, ErrLocked), should.BeTrue)

	this.So(unlock(), should.BeNil)
	unlock, err = NewFileLock(this.path, 0).Lock(context.Background())
	this.So(err, should.BeNil)
	this.So(unlock(), should.BeNil)
}

func (this *FileLockFixture) LongTestWaitingHolderGivesUpAfterWait() {
	unlock, err := NewFileLock(this.path, 0).Lock(context.Background())
	this.So(err, should.BeNil)
	defer func() { _ = unlock() }()

	started := time.Now()
	_, err = NewFileLock(this.path, 300*time.Millisecond).Lock(context.Background())

	this.So(errors.Is(err, ErrLocked), should.BeTrue)
	this.So(time.Since(started), should.BeGreaterThanOrEqualTo, 300*time.Millisecond)
}

func (this *FileLockFixture) LongTestWaitingHolderAcquiresReleasedLock() {
	unlock, err := NewFileLock(this.path, 0).Lock(context.Background())
	this.So(err, should.BeNil)
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = unlock()
	}()

	second, err := NewFileLock(this.path, 5*time.Second).Lock(context.Background())

	this.So(err, should.BeNil)
	this.So(second(), should.BeNil)
}
