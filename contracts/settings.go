package contracts

import (
	"net/url"
	"path"
	"strings"
)

const (
	DefaultBaseURL      = "https://files.liftoff.example.com"
	DefaultManifestPath = "/releases/liftoff-manifest.json"
	LegacyManifestPath  = "/releases/manifest.json"
	DefaultUploadRoot   = "/releases"
)

type PublishSettings struct {
	BaseURL        string `mapstructure:"baseUrl"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	UploadRoot     string `mapstructure:"uploadRoot"`
	ManifestPath   string `mapstructure:"manifestPath"`
	ClientProject  string `mapstructure:"clientProject"`
	UpdaterProject string `mapstructure:"updaterProject"`
}

func (this PublishSettings) Connection() ConnectionSettings {
	return ConnectionSettings{
		BaseURL:      this.BaseURL,
		ManifestPath: this.ManifestPath,
		Username:     this.Username,
		Password:     this.Password,
	}
}

type UpdateSettings struct {
	ConnectionSettings `mapstructure:",squash"`
	AllowHashMismatch  bool           `mapstructure:"allowHashMismatch"`
	Hosts              []HostStrategy `mapstructure:"hosts"`
}

type ConnectionSettings struct {
	BaseURL      string `mapstructure:"baseUrl"`
	ManifestPath string `mapstructure:"manifestPath"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
}

func (this ConnectionSettings) HasCredentials() bool {
	return this.Username != ""
}

// ResolvedManifestPath applies the one-time rewrite of the retired manifest location.
func (this ConnectionSettings) ResolvedManifestPath() string {
	manifestPath := this.ManifestPath
	if manifestPath == "" {
		manifestPath = DefaultManifestPath
	}
	if !strings.HasPrefix(manifestPath, "/") {
		manifestPath = "/" + manifestPath
	}
	if manifestPath == LegacyManifestPath {
		return DefaultManifestPath
	}
	return manifestPath
}

func (this ConnectionSettings) ManifestURL() (string, error) {
	address, err := url.Parse(strings.TrimRight(this.BaseURL, "/"))
	if err != nil {
		return "", err
	}
	address.Path = path.Join("/", address.Path, this.ResolvedManifestPath())
	return address.String(), nil
}

// HostStrategy describes how downloads from hosts matching Pattern behave.
// Pattern is a path.Match glob applied to the lowercase hostname.
type HostStrategy struct {
	Pattern       string            `mapstructure:"pattern"`
	AllowRanged   bool              `mapstructure:"allowRanged"`
	AllowParallel bool              `mapstructure:"allowParallel"`
	SameOrigin    bool              `mapstructure:"sameOrigin"`
	Headers       map[string]string `mapstructure:"headers"`
}
