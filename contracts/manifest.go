package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const ManifestSchema = "liftoff.manifest/v1"

type Manifest struct {
	Schema      string    `json:"schema"`
	GeneratedAt time.Time `json:"generatedAt"`
	Revision    int64     `json:"revision,omitempty"`
	Projects    Projects  `json:"projects"`
}

func NewManifest(now time.Time) *Manifest {
	return &Manifest{
		Schema:      ManifestSchema,
		GeneratedAt: now.UTC(),
		Projects:    make(Projects),
	}
}

// Project returns the releases for name, creating an empty entry on first use.
func (this *Manifest) Project(name string) *ProjectReleases {
	if this.Projects == nil {
		this.Projects = make(Projects)
	}
	if project := this.Projects.Lookup(name); project != nil {
		return project
	}
	project := &ProjectReleases{}
	this.Projects.Put(name, project)
	return project
}

type ProjectReleases struct {
	Latest   Version       `json:"latest"`
	Releases []ReleaseItem `json:"releases"`
}

func (this *ProjectReleases) LatestVersion() Version {
	if !this.Latest.IsEmpty() {
		return this.Latest
	}
	if len(this.Releases) > 0 {
		return this.Releases[0].Version
	}
	return ""
}

// LatestRelease finds the release named by LatestVersion, else the first release.
func (this *ProjectReleases) LatestRelease() (ReleaseItem, bool) {
	latest := this.LatestVersion()
	for _, release := range this.Releases {
		if release.Version.Equal(latest) {
			return release, true
		}
	}
	if len(this.Releases) > 0 {
		return this.Releases[0], true
	}
	return ReleaseItem{}, false
}

// Upsert replaces any release carrying the same version, then normalizes.
func (this *ProjectReleases) Upsert(item ReleaseItem) {
	kept := this.Releases[:0]
	for _, release := range this.Releases {
		if !sameVersion(release.Version, item.Version) {
			kept = append(kept, release)
		}
	}
	this.Releases = append(kept, item)
	this.Normalize()
}

// Normalize collapses duplicate versions (the later entry wins), sorts
// descending and points Latest at the highest version.
func (this *ProjectReleases) Normalize() {
	var unique []ReleaseItem
	for x := len(this.Releases) - 1; x >= 0; x-- {
		if !containsVersion(unique, this.Releases[x].Version) {
			unique = append(unique, this.Releases[x])
		}
	}
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Version.Compare(unique[j].Version) > 0
	})
	this.Releases = unique
	if len(unique) > 0 {
		this.Latest = unique[0].Version
	}
}

func containsVersion(releases []ReleaseItem, version Version) bool {
	for _, release := range releases {
		if sameVersion(release.Version, version) {
			return true
		}
	}
	return false
}

// sameVersion treats numerically equal versions such as 1.0 and 1.0.0 as one release.
func sameVersion(left, right Version) bool {
	return left.Equal(right) || left.Compare(right) == 0
}

type ReleaseItem struct {
	Version Version       `json:"version"`
	URL     string        `json:"url"`
	Time    time.Time     `json:"time"`
	Notes   string        `json:"notes"`
	Files   []ReleaseFile `json:"files"`
}

type ReleaseFile struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	SHA256       string `json:"sha256"`
	Size         int64  `json:"size"`
	EntryWindows string `json:"entryWindows,omitempty"`
	EntryLinux   string `json:"entryLinux,omitempty"`
	EntryMacOS   string `json:"entryMacos,omitempty"`
}

func (this ReleaseFile) EntryPoint(platform Platform) string {
	switch platform.OS() {
	case OSWindows:
		return this.EntryWindows
	case OSMacOS:
		return this.EntryMacOS
	default:
		return this.EntryLinux
	}
}

// SelectFile picks the file for platform: one whose name or url carries the
// platform tag, else the first with a url. ok is false when neither exists
// and the caller should fall back to the release url.
func (this ReleaseItem) SelectFile(platform Platform) (file ReleaseFile, ok bool) {
	tag := strings.ToLower(platform.String())
	for _, candidate := range this.Files {
		if candidate.URL == "" {
			continue
		}
		if strings.Contains(strings.ToLower(candidate.Name), tag) || strings.Contains(strings.ToLower(candidate.URL), tag) {
			return candidate, true
		}
	}
	for _, candidate := range this.Files {
		if candidate.URL != "" {
			return candidate, true
		}
	}
	return ReleaseFile{}, false
}

// Projects maps project names to releases with case-insensitive keys.
type Projects map[string]*ProjectReleases

func (this Projects) key(name string) (string, bool) {
	if _, found := this[name]; found {
		return name, true
	}
	for key := range this {
		if strings.EqualFold(key, name) {
			return key, true
		}
	}
	return "", false
}

func (this Projects) Lookup(name string) *ProjectReleases {
	if key, found := this.key(name); found {
		return this[key]
	}
	return nil
}

func (this Projects) Put(name string, releases *ProjectReleases) {
	if key, found := this.key(name); found {
		delete(this, key)
	}
	this[name] = releases
}

func (this *Projects) UnmarshalJSON(raw []byte) error {
	var decoded map[string]*ProjectReleases
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	names := make([]string, 0, len(decoded))
	for name := range decoded {
		names = append(names, name)
	}
	sort.Strings(names)

	projects := make(Projects, len(decoded))
	for _, name := range names {
		incoming := decoded[name]
		if incoming == nil {
			incoming = &ProjectReleases{}
		}
		existing := projects.Lookup(name)
		if existing == nil {
			projects[name] = incoming
			continue
		}
		existing.Releases = append(existing.Releases, incoming.Releases...)
		existing.Normalize()
	}
	*this = projects
	return nil
}

// IsValidManifest reports whether raw parses and exposes a string schema
// and an object projects field.
func IsValidManifest(raw []byte) bool {
	var document map[string]json.RawMessage
	if err := json.Unmarshal(raw, &document); err != nil {
		return false
	}
	schema := bytes.TrimSpace(document["schema"])
	if len(schema) == 0 || schema[0] != '"' {
		return false
	}
	projects := bytes.TrimSpace(document["projects"])
	return len(projects) > 0 && projects[0] == '{'
}

func ParseManifest(raw []byte) (*Manifest, error) {
	if !IsValidManifest(raw) {
		return nil, fmt.Errorf("%w: document is not a manifest", ErrSchemaMismatch)
	}
	manifest := new(Manifest)
	if err := json.Unmarshal(raw, manifest); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSchemaMismatch, err)
	}
	if manifest.Schema != ManifestSchema {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrSchemaMismatch, manifest.Schema, ManifestSchema)
	}
	if manifest.Projects == nil {
		manifest.Projects = make(Projects)
	}
	return manifest, nil
}

func (this *Manifest) Encode() ([]byte, error) {
	return json.MarshalIndent(this, "", "  ")
}
