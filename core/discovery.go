package core

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/smarty/liftoff/contracts"
)

type ArtifactListing interface {
	contracts.PathLister
	contracts.RootPath
}

// ArtifactDiscovery finds publishable build outputs below a directory: each
// "publish" directory and each loose zip whose path names a platform.
type ArtifactDiscovery struct {
	files ArtifactListing
}

func NewArtifactDiscovery(files ArtifactListing) *ArtifactDiscovery {
	return &ArtifactDiscovery{files: files}
}

func (this *ArtifactDiscovery) Discover() (artifacts []string, err error) {
	listing, err := this.files.Listing()
	if err != nil {
		return nil, err
	}
	root := filepath.Clean(this.files.RootPath())
	found := make(map[string]struct{})
	for _, file := range listing {
		if candidate, ok := this.candidate(root, file.Path()); ok {
			found[candidate] = struct{}{}
		}
	}
	for candidate := range found {
		artifacts = append(artifacts, candidate)
	}
	sort.Strings(artifacts)
	return artifacts, nil
}

func (this *ArtifactDiscovery) candidate(root, file string) (string, bool) {
	relative, err := filepath.Rel(root, file)
	if err != nil {
		return "", false
	}
	segments := splitPath(relative)
	for x := 0; x < len(segments)-1; x++ {
		if !strings.EqualFold(segments[x], "publish") {
			continue
		}
		directory := filepath.Join(append([]string{root}, segments[:x+1]...)...)
		_, ok := contracts.DetectPlatform(splitPath(directory)...)
		return directory, ok
	}
	if !strings.EqualFold(filepath.Ext(file), contracts.ArchiveExtension) {
		return "", false
	}
	if _, ok := contracts.DetectPlatform(segments...); ok {
		return file, true
	}
	_, ok := contracts.MentionsPlatform(filepath.Base(file))
	return file, ok
}
