package core

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/smarty/liftoff/contracts"
)

const environmentPrefix = "LIFTOFF_"

// SettingsLoader reads the JSON settings files through viper. Values from
// LIFTOFF_ prefixed environment variables override the file.
type SettingsLoader struct {
	storage     contracts.FileReader
	environment contracts.Environment
}

func NewSettingsLoader(storage contracts.FileReader, environment contracts.Environment) *SettingsLoader {
	return &SettingsLoader{storage: storage, environment: environment}
}

func (this *SettingsLoader) LoadPublishSettings(path string) (settings contracts.PublishSettings, err error) {
	config := viper.New()
	config.SetDefault("baseUrl", contracts.DefaultBaseURL)
	config.SetDefault("uploadRoot", contracts.DefaultUploadRoot)
	config.SetDefault("manifestPath", contracts.DefaultManifestPath)
	config.SetDefault("clientProject", contracts.DefaultClientName)
	config.SetDefault("updaterProject", contracts.DefaultUpdaterName)

	if path != "" {
		if err = this.read(config, path); err != nil {
			return contracts.PublishSettings{}, err
		}
	}
	this.override(config, "", "baseUrl", "username", "password", "uploadRoot", "manifestPath", "clientProject", "updaterProject")
	if err = config.Unmarshal(&settings); err != nil {
		return contracts.PublishSettings{}, fmt.Errorf("%w: %s", contracts.ErrConfiguration, err)
	}
	if err = validatePublishSettings(settings); err != nil {
		return contracts.PublishSettings{}, err
	}
	return settings, nil
}

// LoadUpdateSettings falls back to the built-in defaults when the file does not exist.
func (this *SettingsLoader) LoadUpdateSettings(path string) (settings contracts.UpdateSettings, err error) {
	config := viper.New()
	config.SetDefault("update.baseUrl", contracts.DefaultBaseURL)
	config.SetDefault("update.manifestPath", contracts.DefaultManifestPath)
	config.SetDefault("update.allowHashMismatch", false)

	if path != "" {
		err = this.read(config, path)
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return contracts.UpdateSettings{}, err
		}
	}
	this.override(config, "update.", "baseUrl", "username", "password", "manifestPath", "allowHashMismatch")
	var document struct {
		Update contracts.UpdateSettings `mapstructure:"update"`
	}
	if err = config.Unmarshal(&document); err != nil {
		return contracts.UpdateSettings{}, fmt.Errorf("%w: %s", contracts.ErrConfiguration, err)
	}
	settings = document.Update
	if err = validateBaseURL(settings.BaseURL); err != nil {
		return contracts.UpdateSettings{}, err
	}
	for _, host := range settings.Hosts {
		if strings.TrimSpace(host.Pattern) == "" {
			return contracts.UpdateSettings{}, blankHostPatternErr
		}
	}
	return settings, nil
}

func (this *SettingsLoader) read(config *viper.Viper, path string) error {
	raw, err := this.storage.ReadFile(path)
	if err != nil {
		return err
	}
	config.SetConfigType("json")
	if err = config.ReadConfig(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("%w: %s: %s", contracts.ErrConfiguration, path, err)
	}
	return nil
}

func (this *SettingsLoader) override(config *viper.Viper, prefix string, keys ...string) {
	for _, key := range keys {
		if value, set := this.environment.LookupEnv(environmentName(key)); set && strings.TrimSpace(value) != "" {
			config.Set(prefix+key, strings.TrimSpace(value))
		}
	}
}

// environmentName converts a camel case key: uploadRoot becomes LIFTOFF_UPLOAD_ROOT.
func environmentName(key string) string {
	var name strings.Builder
	name.WriteString(environmentPrefix)
	for x, character := range key {
		if x > 0 && character >= 'A' && character <= 'Z' {
			name.WriteByte('_')
		}
		name.WriteRune(character)
	}
	return strings.ToUpper(name.String())
}

func validatePublishSettings(settings contracts.PublishSettings) error {
	if err := validateBaseURL(settings.BaseURL); err != nil {
		return err
	}
	if settings.Username == "" {
		return blankUsernameErr
	}
	if !strings.HasPrefix(settings.UploadRoot, "/") {
		return relativeUploadRootErr
	}
	if settings.ClientProject == "" || settings.UpdaterProject == "" {
		return blankProjectNameErr
	}
	if strings.EqualFold(settings.ClientProject, settings.UpdaterProject) {
		return sameProjectNamesErr
	}
	return nil
}

func validateBaseURL(value string) error {
	address, err := url.Parse(value)
	if err != nil || address.Host == "" || (address.Scheme != "http" && address.Scheme != "https") {
		return fmt.Errorf("%w: %q", invalidBaseURLErr, value)
	}
	return nil
}

var (
	invalidBaseURLErr     = fmt.Errorf("%w: baseUrl must be an absolute http(s) address", contracts.ErrConfiguration)
	blankUsernameErr      = fmt.Errorf("%w: username should not be blank", contracts.ErrConfiguration)
	relativeUploadRootErr = fmt.Errorf("%w: uploadRoot must start with /", contracts.ErrConfiguration)
	blankProjectNameErr   = fmt.Errorf("%w: project names should not be blank", contracts.ErrConfiguration)
	sameProjectNamesErr   = fmt.Errorf("%w: client and updater projects must differ", contracts.ErrConfiguration)
	blankHostPatternErr   = fmt.Errorf("%w: host strategy pattern should not be blank", contracts.ErrConfiguration)
)
