package transfer

import (
	"context"
)

type Checksum string

const (
	ChecksumNone   Checksum = "none"
	ChecksumCRC32C Checksum = "crc32c"
	ChecksumMD5    Checksum = "md5"
)

// Options are shared by all transfer operations. Concurrency and PartSize
// only apply to the multi-object and chunked operations.
type Options struct {
	Checksum    Checksum
	PartSize    int64
	Concurrency int

	// BufferSize is the application-level copy buffer used when draining
	// downloaded bodies.
	BufferSize int64

	// IfNotExists makes an upload fail instead of overwriting an object that
	// already exists at the key.
	IfNotExists bool
}

// A Result summarizes one completed transfer operation.
type Result struct {
	Bytes   int64
	Objects int
}

// A Transferrer is the storage capability the scenarios drive. Every
// operation either completes fully or returns the backend's error unchanged;
// no retries happen at this layer.
type Transferrer interface {
	// UploadOne uploads the file at path to key.
	UploadOne(ctx context.Context, key, path string, opts *Options) (*Result, error)

	// DownloadOne downloads key and drains the body.
	DownloadOne(ctx context.Context, key string, opts *Options) (*Result, error)

	// DownloadRange downloads length bytes of key starting at offset.
	DownloadRange(ctx context.Context, key string, offset, length int64, opts *Options) (*Result, error)

	// UploadMany uploads every file under dir to prefix, bounded by
	// opts.Concurrency.
	UploadMany(ctx context.Context, dir, prefix string, opts *Options) (*Result, error)

	// DownloadMany downloads every object under prefix, bounded by
	// opts.Concurrency.
	DownloadMany(ctx context.Context, prefix string, opts *Options) (*Result, error)

	// DownloadChunked downloads key in fixed-size chunks fetched with
	// opts.Concurrency parallel range reads.
	DownloadChunked(ctx context.Context, key string, chunkSize int64, opts *Options) (*Result, error)

	// DeleteObject removes key. Missing objects are not an error.
	DeleteObject(ctx context.Context, key string) error

	// DeletePrefix removes every object under prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// EnsureBucket creates the bucket if it does not exist.
	EnsureBucket(ctx context.Context) error

	Bucket() string
}
