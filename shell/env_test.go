package shell

import (
	"os"
	"testing"

	"github.com/smarty/assertions/should"
	"github.com/smarty/gunit"
)

func TestEnvironmentFixture(t *testing.T) {
	gunit.Run(new(EnvironmentFixture), t)
}

type EnvironmentFixture struct {
	*gunit.Fixture
}

func (this *EnvironmentFixture) TestLookupDistinguishesBlankFromUnset() {
	const key = "LIFTOFF_ENVIRONMENT_FIXTURE_BLANK"
	this.So(os.Setenv(key, ""), should.BeNil)
	defer func() { _ = os.Unsetenv(key) }()

	value, set := NewEnvironment().LookupEnv(key)
	this.So(set, should.BeTrue)
	this.So(value, should.BeBlank)

	_, set = NewEnvironment().LookupEnv("LIFTOFF_ENVIRONMENT_FIXTURE_UNSET")
	this.So(set, should.BeFalse)
}
