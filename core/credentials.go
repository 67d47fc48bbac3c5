package core

import (
	"context"
	"sync"

	"github.com/smarty/liftoff/contracts"
)

// CredentialCache authenticates on first use and hands the same credential
// to every later caller.
type CredentialCache struct {
	gateway  contracts.Authenticator
	username string
	password string

	lock       sync.Mutex
	credential contracts.Credential
}

func NewCredentialCache(gateway contracts.Authenticator, username, password string) *CredentialCache {
	return &CredentialCache{gateway: gateway, username: username, password: password}
}

func (this *CredentialCache) Credential(ctx context.Context) (contracts.Credential, error) {
	this.lock.Lock()
	defer this.lock.Unlock()
	if !this.credential.IsZero() {
		return this.credential, nil
	}
	credential, err := this.gateway.Authenticate(ctx, this.username, this.password)
	if err != nil {
		return contracts.Credential{}, err
	}
	this.credential = credential
	return credential, nil
}
