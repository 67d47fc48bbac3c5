package core

import (
	"net"
	"net/url"
	"path"
	"strings"

	"github.com/smarty/liftoff/contracts"
)

// DefaultHostStrategies covers hosts known to misbehave with ranged or
// concurrent requests.
var DefaultHostStrategies = []contracts.HostStrategy{
	{
		Pattern:    "*.sharepoint.com",
		SameOrigin: true,
		Headers:    map[string]string{"Accept": "application/octet-stream"},
	},
	{
		Pattern:     "*.googleusercontent.com",
		AllowRanged: true,
		Headers:     map[string]string{"Accept": "*/*"},
	},
}

var unrestrictedHost = contracts.HostStrategy{Pattern: "*", AllowRanged: true, AllowParallel: true}

// HostStrategyTable answers with the first entry whose pattern matches the
// hostname. Configured entries are consulted before the defaults.
type HostStrategyTable struct {
	entries []contracts.HostStrategy
}

func NewHostStrategyTable(configured ...contracts.HostStrategy) *HostStrategyTable {
	entries := make([]contracts.HostStrategy, 0, len(configured)+len(DefaultHostStrategies))
	entries = append(entries, configured...)
	entries = append(entries, DefaultHostStrategies...)
	return &HostStrategyTable{entries: entries}
}

func (this *HostStrategyTable) Lookup(address string) contracts.HostStrategy {
	host := hostname(address)
	for _, entry := range this.entries {
		if matched, _ := path.Match(strings.ToLower(entry.Pattern), host); matched {
			return entry
		}
	}
	return unrestrictedHost
}

func hostname(address string) string {
	parsed, err := url.Parse(address)
	if err != nil || parsed.Host == "" {
		return ""
	}
	host := parsed.Host
	if name, _, err := net.SplitHostPort(host); err == nil {
		host = name
	}
	return strings.ToLower(host)
}
