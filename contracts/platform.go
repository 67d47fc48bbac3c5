package contracts

import (
	"runtime"
	"strings"
)

type Platform string

const (
	WindowsX64 Platform = "win-x64"
	WindowsARM Platform = "win-arm64"
	LinuxX64   Platform = "linux-x64"
	LinuxARM   Platform = "linux-arm64"
	MacOSX64   Platform = "osx-x64"
	MacOSARM   Platform = "osx-arm64"
)

var Platforms = []Platform{WindowsX64, WindowsARM, LinuxX64, LinuxARM, MacOSX64, MacOSARM}

const (
	OSWindows = "windows"
	OSLinux   = "linux"
	OSMacOS   = "darwin"
)

func (this Platform) String() string { return string(this) }

func (this Platform) OS() string {
	switch {
	case strings.HasPrefix(string(this), "win-"):
		return OSWindows
	case strings.HasPrefix(string(this), "osx-"):
		return OSMacOS
	default:
		return OSLinux
	}
}

// ExecutableSuffix is the launch convention for programs on this platform.
func (this Platform) ExecutableSuffix() string {
	switch this.OS() {
	case OSWindows:
		return ".exe"
	case OSMacOS:
		return ".app"
	default:
		return ""
	}
}

func CurrentPlatform() Platform {
	return PlatformFor(runtime.GOOS, runtime.GOARCH)
}

func PlatformFor(goos, goarch string) Platform {
	arch := "x64"
	if goarch == "arm64" {
		arch = "arm64"
	}
	switch goos {
	case "windows":
		return Platform("win-" + arch)
	case "darwin":
		return Platform("osx-" + arch)
	default:
		return Platform("linux-" + arch)
	}
}

// DetectPlatform finds the first path segment naming a known platform.
func DetectPlatform(segments ...string) (Platform, bool) {
	for _, segment := range segments {
		for _, platform := range Platforms {
			if strings.EqualFold(segment, string(platform)) {
				return platform, true
			}
		}
	}
	return "", false
}

// MentionsPlatform reports whether name contains a platform keyword anywhere.
func MentionsPlatform(name string) (Platform, bool) {
	lower := strings.ToLower(name)
	for _, platform := range Platforms {
		if strings.Contains(lower, string(platform)) {
			return platform, true
		}
	}
	return "", false
}
