package contracts

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a release version string that orders numerically when both
// sides parse as dotted numbers and ordinally (byte-wise) otherwise.
type Version string

func (this Version) String() string { return string(this) }

func (this Version) IsEmpty() bool { return strings.TrimSpace(string(this)) == "" }

func (this Version) Equal(that Version) bool {
	return strings.EqualFold(strings.TrimSpace(string(this)), strings.TrimSpace(string(that)))
}

// Compare returns -1, 0 or 1.
func (this Version) Compare(that Version) int {
	left, right := strings.TrimSpace(string(this)), strings.TrimSpace(string(that))
	for _, parser := range versionParsers {
		if !parser.CanParse(left) || !parser.CanParse(right) {
			continue
		}
		return parser.Compare(left, right)
	}
	return strings.Compare(left, right)
}

func (this Version) NewerThan(that Version) bool { return this.Compare(that) > 0 }

func (this *Version) UnmarshalJSON(raw []byte) error {
	var value string
	if err := json.Unmarshal(raw, &value); err == nil {
		*this = Version(value)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return err
	}
	*this = Version(number.String())
	return nil
}

// IsNewer reports whether remote should replace local.
func IsNewer(remote, local Version) bool {
	if remote.IsEmpty() {
		return false
	}
	if local.IsEmpty() {
		return true
	}
	return remote.NewerThan(local)
}

type versionParser interface {
	CanParse(version string) bool
	Compare(left, right string) int
}

var versionParsers = []versionParser{semverParser{}, dottedParser{}}

type semverParser struct{}

func (semverParser) CanParse(version string) bool {
	_, err := semver.NewVersion(version)
	return err == nil
}

func (semverParser) Compare(left, right string) int {
	return semver.MustParse(left).Compare(semver.MustParse(right))
}

// dottedParser covers versions semver rejects, such as 1.2.3.4.
type dottedParser struct{}

func (dottedParser) CanParse(version string) bool {
	_, ok := dottedNumbers(version)
	return ok
}

func (dottedParser) Compare(left, right string) int {
	a, _ := dottedNumbers(left)
	b, _ := dottedNumbers(right)
	for x := 0; x < len(a) || x < len(b); x++ {
		var l, r uint64
		if x < len(a) {
			l = a[x]
		}
		if x < len(b) {
			r = b[x]
		}
		if l < r {
			return -1
		}
		if l > r {
			return 1
		}
	}
	return 0
}

func dottedNumbers(version string) (numbers []uint64, ok bool) {
	version = strings.TrimPrefix(strings.TrimPrefix(version, "v"), "V")
	if version == "" {
		return nil, false
	}
	for _, part := range strings.Split(version, ".") {
		number, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, false
		}
		numbers = append(numbers, number)
	}
	return numbers, true
}
