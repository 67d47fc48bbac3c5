package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/smarty/liftoff/contracts"
)

type StorageReader interface {
	contracts.MetadataReader
	contracts.DownloadURLResolver
}

// StorageLocator turns a storage path into a downloadable URL through an
// authenticated metadata lookup.
type StorageLocator struct {
	storage     StorageReader
	credentials CredentialSource
	baseURL     string
}

func NewStorageLocator(storage StorageReader, credentials CredentialSource, baseURL string) *StorageLocator {
	return &StorageLocator{storage: storage, credentials: credentials, baseURL: strings.TrimRight(baseURL, "/")}
}

// Locate returns the resolved URL together with the credential used for the lookup.
func (this *StorageLocator) Locate(ctx context.Context, remotePath string) (string, contracts.Credential, error) {
	credential, err := this.credentials.Credential(ctx)
	if err != nil {
		return "", contracts.Credential{}, fmt.Errorf("storage authentication failed: %w", err)
	}
	metadata, err := this.storage.GetMetadata(ctx, credential, remotePath)
	if err != nil {
		return "", credential, fmt.Errorf("metadata lookup for %s failed: %w", remotePath, err)
	}
	if metadata.IsDirectory {
		return "", credential, fmt.Errorf("%s is a directory", remotePath)
	}
	address := this.storage.ResolveDownloadURL(metadata)
	if strings.HasPrefix(address, "/") {
		address = this.baseURL + address
	}
	return address, credential, nil
}
