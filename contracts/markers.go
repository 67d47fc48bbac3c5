package contracts

import (
	"encoding/json"
	"fmt"
)

const (
	UpdaterDirectory    = "update"
	ClientMarkerName    = "Client.version.json"
	UpdaterMarkerName   = "Updater.version.json"
	DefaultClientName   = "Client"
	DefaultUpdaterName  = "Updater"
	ArchiveExtension    = ".zip"
	ArchiveContentType  = "application/zip"
	ManifestContentType = "application/json"
)

// VersionMarker is written next to an installed build by the build that produced it.
type VersionMarker struct {
	Version  Version `json:"version"`
	Project  string  `json:"project"`
	Manifest string  `json:"manifest,omitempty"`
}

func ParseVersionMarker(raw []byte) (marker VersionMarker, err error) {
	if err = json.Unmarshal(raw, &marker); err != nil {
		return VersionMarker{}, fmt.Errorf("malformed version marker: %w", err)
	}
	return marker, nil
}
