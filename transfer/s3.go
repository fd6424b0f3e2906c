package transfer

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/alitto/pond"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3Types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/time/rate"
)

const defaultBufferSize = 32 * 1024

type s3Transferrer struct {
	input   *S3TransferrerInput
	s3      *s3.Client
	limiter *rate.Limiter
}

type S3TransferrerInput struct {
	AwsConfig aws.Config
	Bucket    string

	// RateLimit caps requests per second across the multi-object operations.
	// Zero means no limit.
	RateLimit int
}

func NewS3Transferrer(input *S3TransferrerInput) Transferrer {
	t := &s3Transferrer{
		input: input,
		s3:    s3.NewFromConfig(input.AwsConfig),
	}
	if input.RateLimit > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(input.RateLimit), 1)
	}
	return t
}

func (t *s3Transferrer) Bucket() string {
	return t.input.Bucket
}

func (t *s3Transferrer) UploadOne(ctx context.Context, key, path string, opts *Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	req := &s3.PutObjectInput{
		Bucket: &t.input.Bucket,
		Key:    &key,
		Body:   f,
	}
	if opts.IfNotExists {
		req.IfNoneMatch = aws.String("*")
	}
	switch opts.Checksum {
	case ChecksumCRC32C:
		req.ChecksumAlgorithm = s3Types.ChecksumAlgorithmCrc32c
	case ChecksumMD5:
		sum, err := fileMD5(f)
		if err != nil {
			return nil, err
		}
		req.ContentMD5 = &sum
	}

	_, err = t.s3.PutObject(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Result{Bytes: info.Size(), Objects: 1}, nil
}

func (t *s3Transferrer) DownloadOne(ctx context.Context, key string, opts *Options) (*Result, error) {
	req := &s3.GetObjectInput{
		Bucket: &t.input.Bucket,
		Key:    &key,
	}
	if opts.Checksum == ChecksumCRC32C {
		req.ChecksumMode = s3Types.ChecksumModeEnabled
	}

	resp, err := t.s3.GetObject(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var h hash.Hash
	body := io.Reader(resp.Body)
	if opts.Checksum == ChecksumMD5 {
		h = md5.New()
		body = io.TeeReader(body, h)
	}

	n, err := drain(body, opts.BufferSize)
	if err != nil {
		return nil, err
	}

	if h != nil {
		etag := strings.Trim(aws.ToString(resp.ETag), "\"")
		// Multipart ETags are not content digests, nothing to compare then.
		if !strings.Contains(etag, "-") {
			got := fmt.Sprintf("%x", h.Sum(nil))
			if got != etag {
				return nil, fmt.Errorf("md5 mismatch for %s: got %s want %s", key, got, etag)
			}
		}
	}

	return &Result{Bytes: n, Objects: 1}, nil
}

func (t *s3Transferrer) DownloadRange(ctx context.Context, key string, offset, length int64, opts *Options) (*Result, error) {
	rng := fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	resp, err := t.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &t.input.Bucket,
		Key:    &key,
		Range:  &rng,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	n, err := drain(resp.Body, opts.BufferSize)
	if err != nil {
		return nil, err
	}
	return &Result{Bytes: n, Objects: 1}, nil
}

func (t *s3Transferrer) UploadMany(ctx context.Context, dir, prefix string, opts *Options) (*Result, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	uploader := manager.NewUploader(t.s3, func(u *manager.Uploader) {
		if opts.PartSize > 0 {
			u.PartSize = opts.PartSize
		}
	})

	var totalBytes atomic.Int64
	errChan := make(chan error, len(files))
	pool := pond.New(opts.Concurrency, 0, pond.MinWorkers(opts.Concurrency))
	for _, file := range files {
		pool.Submit(func() {
			if err := t.wait(ctx); err != nil {
				errChan <- err
				return
			}

			rel, err := filepath.Rel(dir, file)
			if err != nil {
				errChan <- err
				return
			}
			key := path.Join(prefix, filepath.ToSlash(rel))

			f, err := os.Open(file)
			if err != nil {
				errChan <- err
				return
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				errChan <- err
				return
			}

			req := &s3.PutObjectInput{
				Bucket: &t.input.Bucket,
				Key:    &key,
				Body:   f,
			}
			if opts.Checksum == ChecksumCRC32C {
				req.ChecksumAlgorithm = s3Types.ChecksumAlgorithmCrc32c
			}
			_, err = uploader.Upload(ctx, req)
			if err != nil {
				errChan <- err
				return
			}
			totalBytes.Add(info.Size())
		})
	}
	pool.StopAndWait()

	select {
	case err := <-errChan:
		return nil, fmt.Errorf("some objects failed to upload: %w", err)
	default:
		return &Result{Bytes: totalBytes.Load(), Objects: len(files)}, nil
	}
}

func (t *s3Transferrer) DownloadMany(ctx context.Context, prefix string, opts *Options) (*Result, error) {
	keys, err := t.listKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var totalBytes atomic.Int64
	errChan := make(chan error, len(keys))
	pool := pond.New(opts.Concurrency, 0, pond.MinWorkers(opts.Concurrency))
	for _, key := range keys {
		pool.Submit(func() {
			if err := t.wait(ctx); err != nil {
				errChan <- err
				return
			}

			resp, err := t.s3.GetObject(ctx, &s3.GetObjectInput{
				Bucket: &t.input.Bucket,
				Key:    &key,
			})
			if err != nil {
				errChan <- err
				return
			}
			defer resp.Body.Close()

			n, err := drain(resp.Body, opts.BufferSize)
			if err != nil {
				errChan <- err
				return
			}
			totalBytes.Add(n)
		})
	}
	pool.StopAndWait()

	select {
	case err := <-errChan:
		return nil, fmt.Errorf("some objects failed to download: %w", err)
	default:
		return &Result{Bytes: totalBytes.Load(), Objects: len(keys)}, nil
	}
}

func (t *s3Transferrer) DownloadChunked(ctx context.Context, key string, chunkSize int64, opts *Options) (*Result, error) {
	head, err := t.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &t.input.Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}

	// Preallocating the buffer matters a lot for throughput here.
	buf := make([]byte, aws.ToInt64(head.ContentLength))
	wr := manager.NewWriteAtBuffer(buf)

	downloader := manager.NewDownloader(t.s3, func(d *manager.Downloader) {
		d.PartSize = chunkSize
		d.Concurrency = opts.Concurrency
	})
	n, err := downloader.Download(ctx, wr, &s3.GetObjectInput{
		Bucket: &t.input.Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Bytes: n, Objects: 1}, nil
}

func (t *s3Transferrer) DeleteObject(ctx context.Context, key string) error {
	_, err := t.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &t.input.Bucket,
		Key:    &key,
	})
	return err
}

func (t *s3Transferrer) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := t.listKeys(ctx, prefix)
	if err != nil {
		return err
	}

	pool := pond.New(32, 0, pond.MinWorkers(32))
	for _, key := range keys {
		pool.Submit(func() {
			err := t.DeleteObject(ctx, key)
			if err != nil {
				slog.Error("failed to delete object", slog.String("key", key), slog.String("error", err.Error()))
			}
		})
	}
	pool.StopAndWait()
	return nil
}

func (t *s3Transferrer) EnsureBucket(ctx context.Context) error {
	_, err := t.s3.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: &t.input.Bucket,
		ACL:    s3Types.BucketCannedACLPrivate,
		CreateBucketConfiguration: &s3Types.CreateBucketConfiguration{
			LocationConstraint: s3Types.BucketLocationConstraint(t.input.AwsConfig.Region),
		},
	})
	var owned *s3Types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		// this is fine, we'll just use it
		slog.Debug("bucket already exists", slog.String("name", t.input.Bucket))
		return nil
	} else if err != nil {
		return err
	}
	slog.Debug("created bucket", slog.String("name", t.input.Bucket))
	return nil
}

func (t *s3Transferrer) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var token *string
	for {
		resp, err := t.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &t.input.Bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, err)
		}
		for _, obj := range resp.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		token = resp.NextContinuationToken
	}
	return keys, nil
}

func (t *s3Transferrer) wait(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}

func drain(r io.Reader, bufSize int64) (int64, error) {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	// io.Discard implements ReaderFrom, which would bypass our buffer.
	return io.CopyBuffer(struct{ io.Writer }{io.Discard}, r, make([]byte, bufSize))
}

func fileMD5(f *os.File) (string, error) {
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}
