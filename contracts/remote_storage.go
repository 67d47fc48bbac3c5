package contracts

import (
	"context"
	"io"
	"net/http"
)

type StorageGateway interface {
	Authenticator
	Uploader
	MetadataReader
	DirectoryMaker
	DownloadURLResolver
}

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (Credential, error)
}

type Uploader interface {
	Upload(ctx context.Context, credential Credential, request UploadRequest) error
}

type MetadataReader interface {
	GetMetadata(ctx context.Context, credential Credential, remotePath string) (StorageMetadata, error)
}

// DirectoryMaker must treat an existing directory as success.
type DirectoryMaker interface {
	Mkdir(ctx context.Context, credential Credential, remotePath string) error
}

type DownloadURLResolver interface {
	ResolveDownloadURL(metadata StorageMetadata) string
}

type Credential struct {
	Token string
}

func (this Credential) IsZero() bool { return this.Token == "" }

func (this Credential) Authorize(request *http.Request) {
	if this.Token != "" {
		request.Header.Set("Authorization", this.Token)
	}
}

type UploadRequest struct {
	RemotePath  string
	Body        io.ReadSeeker
	Size        int64
	ContentType string
	Checksum    []byte
}

type StorageMetadata struct {
	Path        string
	IsDirectory bool
	Size        int64
	RawURL      string
	Sign        string
}
