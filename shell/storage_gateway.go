package shell

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/smarty/liftoff/contracts"
)

const maxResponseBytes = 1 << 20

// FileStoreGateway talks to an AList-style file store: JSON requests under
// /api/, a raw token in the Authorization header and signed /d/ download links.
type FileStoreGateway struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

func NewFileStoreGateway(client *http.Client, baseURL string, logger *zap.Logger) *FileStoreGateway {
	return &FileStoreGateway{client: client, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

func (this *FileStoreGateway) Authenticate(ctx context.Context, username, password string) (contracts.Credential, error) {
	var token struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := this.call(ctx, contracts.Credential{}, "/api/auth/login", body, &token); err != nil {
		return contracts.Credential{}, err
	}
	if token.Token == "" {
		return contracts.Credential{}, fmt.Errorf("login for %q returned no token", username)
	}
	return contracts.Credential{Token: token.Token}, nil
}

func (this *FileStoreGateway) Upload(ctx context.Context, credential contracts.Credential, request contracts.UploadRequest) error {
	if _, err := request.Body.Seek(0, io.SeekStart); err != nil {
		return err
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPut, this.baseURL+"/api/fs/put", io.NopCloser(request.Body))
	if err != nil {
		return err
	}
	httpRequest.ContentLength = request.Size
	httpRequest.Header.Set("File-Path", url.PathEscape(request.RemotePath))
	httpRequest.Header.Set("Content-Type", request.ContentType)
	if len(request.Checksum) > 0 {
		httpRequest.Header.Set("X-File-Sha256", hex.EncodeToString(request.Checksum))
	}
	credential.Authorize(httpRequest)
	return this.send(httpRequest, nil)
}

func (this *FileStoreGateway) GetMetadata(ctx context.Context, credential contracts.Credential, remotePath string) (contracts.StorageMetadata, error) {
	var object struct {
		Name   string `json:"name"`
		Size   int64  `json:"size"`
		IsDir  bool   `json:"is_dir"`
		RawURL string `json:"raw_url"`
		Sign   string `json:"sign"`
	}
	body := map[string]string{"path": remotePath, "password": ""}
	if err := this.call(ctx, credential, "/api/fs/get", body, &object); err != nil {
		return contracts.StorageMetadata{}, err
	}
	return contracts.StorageMetadata{
		Path:        remotePath,
		IsDirectory: object.IsDir,
		Size:        object.Size,
		RawURL:      object.RawURL,
		Sign:        object.Sign,
	}, nil
}

func (this *FileStoreGateway) Mkdir(ctx context.Context, credential contracts.Credential, remotePath string) error {
	err := this.call(ctx, credential, "/api/fs/mkdir", map[string]string{"path": remotePath}, nil)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "exist") {
		return nil
	}
	return err
}

// ResolveDownloadURL prefers the raw URL, then a signed /d/ link. Without
// either it returns the storage path itself.
func (this *FileStoreGateway) ResolveDownloadURL(metadata contracts.StorageMetadata) string {
	if metadata.RawURL != "" {
		return metadata.RawURL
	}
	if metadata.Sign == "" {
		return metadata.Path
	}
	return this.baseURL + "/d" + escapePath(metadata.Path) + "?sign=" + url.QueryEscape(metadata.Sign)
}

func (this *FileStoreGateway) call(ctx context.Context, credential contracts.Credential, endpoint string, body, data any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, this.baseURL+endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	credential.Authorize(request)
	return this.send(request, data)
}

// send checks both the HTTP status and the store's own status code carried in the body.
func (this *FileStoreGateway) send(request *http.Request, data any) error {
	response, err := this.client.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", contracts.RetryErr, request.Method, request.URL.Path, err)
	}
	defer func() { _ = response.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", contracts.RetryErr, request.URL.Path, err)
	}
	if response.StatusCode >= http.StatusInternalServerError {
		this.dump(request, response, raw)
		return fmt.Errorf("%w: %s: %s", contracts.RetryErr, request.URL.Path, response.Status)
	}
	if response.StatusCode != http.StatusOK {
		this.dump(request, response, raw)
		return fmt.Errorf("%s: unexpected status: %s", request.URL.Path, response.Status)
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err = json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%s: malformed response: %w", request.URL.Path, err)
	}
	switch {
	case envelope.Code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s: %d %s", contracts.RetryErr, request.URL.Path, envelope.Code, envelope.Message)
	case envelope.Code != http.StatusOK:
		return fmt.Errorf("%s: %d %s", request.URL.Path, envelope.Code, envelope.Message)
	case data == nil || len(envelope.Data) == 0 || string(envelope.Data) == "null":
		return nil
	}
	if err = json.Unmarshal(envelope.Data, data); err != nil {
		return fmt.Errorf("%s: malformed response data: %w", request.URL.Path, err)
	}
	return nil
}

func (this *FileStoreGateway) dump(request *http.Request, response *http.Response, body []byte) {
	requestDump, _ := httputil.DumpRequestOut(request, false)
	responseDump, _ := httputil.DumpResponse(response, false)
	this.logger.Debug("unexpected response",
		zap.ByteString("request", requestDump),
		zap.ByteString("response", responseDump),
		zap.ByteString("body", body))
}

func escapePath(remotePath string) string {
	segments := strings.Split(remotePath, "/")
	for x, segment := range segments {
		segments[x] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
