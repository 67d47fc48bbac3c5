package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smarty/liftoff/contracts"
)

// memoryGateway is a storage backend kept in memory and served over httptest.
// Paths under /d/ are storage downloads. Every other path is a direct download.
type memoryGateway struct {
	lock        sync.Mutex
	server      *httptest.Server
	files       map[string][]byte
	directories map[string]bool
	uploads     []string
	requests    []string

	authAttempts     int
	metadataAttempts int
	authError        error
	metadataError    error
	directBodies     map[string][]byte
	directDisabled   bool
	requireAuth      bool
	beforeUpload     func(remotePath string)
}

func newMemoryGateway() *memoryGateway {
	this := &memoryGateway{
		files:        make(map[string][]byte),
		directories:  map[string]bool{"/": true},
		directBodies: make(map[string][]byte),
	}
	this.server = httptest.NewServer(http.HandlerFunc(this.serve))
	return this
}

func (this *memoryGateway) Close() { this.server.Close() }

func (this *memoryGateway) URL() string { return this.server.URL }

func (this *memoryGateway) Put(remotePath string, content []byte) {
	this.lock.Lock()
	defer this.lock.Unlock()
	this.files[remotePath] = content
}

func (this *memoryGateway) Get(remotePath string) []byte {
	this.lock.Lock()
	defer this.lock.Unlock()
	return this.files[remotePath]
}

func (this *memoryGateway) Uploads() []string {
	this.lock.Lock()
	defer this.lock.Unlock()
	return append([]string(nil), this.uploads...)
}

func (this *memoryGateway) Directories() (names []string) {
	this.lock.Lock()
	defer this.lock.Unlock()
	for name := range this.directories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (this *memoryGateway) Requests() []string {
	this.lock.Lock()
	defer this.lock.Unlock()
	return append([]string(nil), this.requests...)
}

func (this *memoryGateway) Authenticate(_ context.Context, username, password string) (contracts.Credential, error) {
	this.lock.Lock()
	defer this.lock.Unlock()
	this.authAttempts++
	if this.authError != nil {
		return contracts.Credential{}, this.authError
	}
	return contracts.Credential{Token: "token:" + username + ":" + password}, nil
}

func (this *memoryGateway) Upload(_ context.Context, credential contracts.Credential, request contracts.UploadRequest) error {
	if this.beforeUpload != nil {
		this.beforeUpload(request.RemotePath)
	}
	if credential.IsZero() {
		return errors.New("unauthorized")
	}
	raw, err := io.ReadAll(request.Body)
	if err != nil {
		return err
	}
	this.lock.Lock()
	defer this.lock.Unlock()
	if !this.directories[path.Dir(request.RemotePath)] {
		return fmt.Errorf("parent of %s does not exist", request.RemotePath)
	}
	this.files[request.RemotePath] = raw
	this.uploads = append(this.uploads, request.RemotePath)
	return nil
}

func (this *memoryGateway) GetMetadata(_ context.Context, _ contracts.Credential, remotePath string) (contracts.StorageMetadata, error) {
	this.lock.Lock()
	defer this.lock.Unlock()
	this.metadataAttempts++
	if this.metadataError != nil {
		return contracts.StorageMetadata{}, this.metadataError
	}
	if this.directories[remotePath] {
		return contracts.StorageMetadata{Path: remotePath, IsDirectory: true}, nil
	}
	content, found := this.files[remotePath]
	if !found {
		return contracts.StorageMetadata{}, fmt.Errorf("object not found: %s", remotePath)
	}
	return contracts.StorageMetadata{
		Path:   remotePath,
		Size:   int64(len(content)),
		RawURL: this.server.URL + "/d" + remotePath,
	}, nil
}

func (this *memoryGateway) Mkdir(_ context.Context, _ contracts.Credential, remotePath string) error {
	this.lock.Lock()
	defer this.lock.Unlock()
	if !this.directories[path.Dir(remotePath)] {
		return fmt.Errorf("parent of %s does not exist", remotePath)
	}
	this.directories[remotePath] = true
	return nil
}

func (this *memoryGateway) ResolveDownloadURL(metadata contracts.StorageMetadata) string {
	if metadata.RawURL != "" {
		return metadata.RawURL
	}
	return metadata.Path
}

func (this *memoryGateway) serve(response http.ResponseWriter, request *http.Request) {
	this.lock.Lock()
	this.requests = append(this.requests, request.Method+" "+request.URL.Path)
	remotePath, storage := strings.CutPrefix(request.URL.Path, "/d/")
	if storage {
		remotePath = "/" + remotePath
	}
	content, found := this.files[remotePath]
	if body, overridden := this.directBodies[remotePath]; overridden && !storage {
		content, found = body, true
	}
	if !storage && this.directDisabled {
		found = false
	}
	unauthorized := storage && this.requireAuth && request.Header.Get("Authorization") == ""
	this.lock.Unlock()

	if unauthorized {
		http.Error(response, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !found {
		http.NotFound(response, request)
		return
	}
	response.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(response, request, path.Base(remotePath), time.Time{}, bytes.NewReader(content))
}
