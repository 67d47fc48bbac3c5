package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/smarty/liftoff/contracts"
)

type TransferRequest struct {
	URL      string
	Strategy contracts.HostStrategy
	Progress io.Writer
}

// Transfer writes the resource at request.URL into destination, which is
// empty and positioned at offset zero.
type Transfer interface {
	Transfer(ctx context.Context, request TransferRequest, destination *os.File) (int64, error)
}

// StreamTransfer downloads with a single GET.
type StreamTransfer struct {
	client HTTPDoer
}

func NewStreamTransfer(client HTTPDoer) *StreamTransfer {
	return &StreamTransfer{client: client}
}

func (this *StreamTransfer) Transfer(ctx context.Context, request TransferRequest, destination *os.File) (int64, error) {
	response, err := send(ctx, this.client, http.MethodGet, request, "")
	if err != nil {
		return 0, err
	}
	defer closeResource(response.Body)
	if response.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %s", response.Status)
	}
	written, err := io.Copy(io.MultiWriter(destination, progressOf(request)), response.Body)
	if err != nil {
		return written, err
	}
	if response.ContentLength >= 0 && written != response.ContentLength {
		return written, fmt.Errorf("%w: received %d of %d bytes", io.ErrUnexpectedEOF, written, response.ContentLength)
	}
	return written, nil
}

// ChunkedTransfer splits large downloads from hosts that accept byte ranges
// into concurrent ranged requests. Everything else goes to the single stream.
type ChunkedTransfer struct {
	client      HTTPDoer
	single      Transfer
	parts       int
	minimumSize int64
}

const (
	defaultTransferParts = 4
	minimumChunkedSize   = 2 << 20
)

func NewChunkedTransfer(client HTTPDoer, single Transfer) *ChunkedTransfer {
	return &ChunkedTransfer{
		client:      client,
		single:      single,
		parts:       defaultTransferParts,
		minimumSize: minimumChunkedSize,
	}
}

func (this *ChunkedTransfer) Transfer(ctx context.Context, request TransferRequest, destination *os.File) (int64, error) {
	if !request.Strategy.AllowRanged || !request.Strategy.AllowParallel {
		return this.single.Transfer(ctx, request, destination)
	}
	size, ranged := this.probe(ctx, request)
	if !ranged || size < this.minimumSize {
		return this.single.Transfer(ctx, request, destination)
	}
	if err := destination.Truncate(size); err != nil {
		return 0, err
	}

	group, groupContext := errgroup.WithContext(ctx)
	chunk := (size + int64(this.parts) - 1) / int64(this.parts)
	for start := int64(0); start < size; start += chunk {
		first, last := start, min(start+chunk, size)-1
		group.Go(func() error {
			return this.fetchRange(groupContext, request, destination, first, last)
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}
	return size, nil
}

func (this *ChunkedTransfer) probe(ctx context.Context, request TransferRequest) (int64, bool) {
	response, err := send(ctx, this.client, http.MethodHead, request, "")
	if err != nil {
		return 0, false
	}
	closeResource(response.Body)
	if response.StatusCode != http.StatusOK {
		return 0, false
	}
	if !strings.EqualFold(response.Header.Get("Accept-Ranges"), "bytes") {
		return 0, false
	}
	return response.ContentLength, response.ContentLength > 0
}

func (this *ChunkedTransfer) fetchRange(ctx context.Context, request TransferRequest, destination *os.File, first, last int64) error {
	response, err := send(ctx, this.client, http.MethodGet, request, fmt.Sprintf("bytes=%d-%d", first, last))
	if err != nil {
		return err
	}
	defer closeResource(response.Body)
	if response.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("range %d-%d: unexpected status code: %s", first, last, response.Status)
	}
	length := last - first + 1
	writer := io.MultiWriter(io.NewOffsetWriter(destination, first), progressOf(request))
	written, err := io.Copy(writer, io.LimitReader(response.Body, length))
	if err != nil {
		return err
	}
	if written != length {
		return fmt.Errorf("%w: range %d-%d received %d bytes", io.ErrUnexpectedEOF, first, last, written)
	}
	return nil
}

func send(ctx context.Context, client HTTPDoer, method string, transfer TransferRequest, byteRange string) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, method, transfer.URL, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range transfer.Strategy.Headers {
		request.Header.Set(key, value)
	}
	if byteRange != "" {
		request.Header.Set("Range", byteRange)
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, err
	}
	if transfer.Strategy.SameOrigin && !sameOrigin(request.URL, response.Request) {
		closeResource(response.Body)
		return nil, fmt.Errorf("redirected away from %s", request.URL.Host)
	}
	return response, nil
}

func sameOrigin(original *url.URL, final *http.Request) bool {
	if final == nil || final.URL == nil {
		return true
	}
	return strings.EqualFold(original.Scheme, final.URL.Scheme) && strings.EqualFold(original.Host, final.URL.Host)
}

func progressOf(request TransferRequest) io.Writer {
	if request.Progress == nil {
		return io.Discard
	}
	return request.Progress
}
