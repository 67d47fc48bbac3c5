package core

import (
	"encoding/hex"
	"hash"
	"io"
	"os"

	"github.com/minio/sha256-simd"
)

type HashReader struct {
	io.Reader
	hash.Hash
}

func NewHashReader(source io.Reader, target hash.Hash) *HashReader {
	return &HashReader{Reader: source, Hash: target}
}

func (this *HashReader) Read(buffer []byte) (int, error) {
	count, err := this.Reader.Read(buffer)
	_, _ = this.Hash.Write(buffer[0:count])
	return count, err
}

// FileSHA256 streams the file at path through sha256 and returns the lowercase hex digest and size.
func FileSHA256(path string) (digest string, size int64, err error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer closeResource(file)
	reader := NewHashReader(file, sha256.New())
	size, err = io.Copy(io.Discard, reader)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(reader.Sum(nil)), size, nil
}
