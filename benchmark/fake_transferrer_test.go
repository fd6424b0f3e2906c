package benchmark

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cloudperf/transferbench/transfer"
)

// fakeTransferrer records calls and sizes so scenario tests can assert the
// transfer shapes without a real backend.
type fakeTransferrer struct {
	mu             sync.Mutex
	objects        map[string]int64
	deletes        []string
	lastUploadOpts *transfer.Options

	uploadErr   error
	downloadErr error
}

func newFakeTransferrer() *fakeTransferrer {
	return &fakeTransferrer{objects: map[string]int64{}}
}

func (f *fakeTransferrer) Bucket() string { return "test-bucket" }

func (f *fakeTransferrer) UploadOne(ctx context.Context, key, path string, opts *transfer.Options) (*transfer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUploadOpts = opts
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	f.objects[key] = info.Size()
	return &transfer.Result{Bytes: info.Size(), Objects: 1}, nil
}

func (f *fakeTransferrer) DownloadOne(ctx context.Context, key string, opts *transfer.Options) (*transfer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return &transfer.Result{Bytes: f.objects[key], Objects: 1}, nil
}

func (f *fakeTransferrer) DownloadRange(ctx context.Context, key string, offset, length int64, opts *transfer.Options) (*transfer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return &transfer.Result{Bytes: length, Objects: 1}, nil
}

func (f *fakeTransferrer) UploadMany(ctx context.Context, dir, prefix string, opts *transfer.Options) (*transfer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	res := &transfer.Result{}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		f.objects[prefix+"/"+filepath.ToSlash(rel)] = info.Size()
		res.Bytes += info.Size()
		res.Objects++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (f *fakeTransferrer) DownloadMany(ctx context.Context, prefix string, opts *transfer.Options) (*transfer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	res := &transfer.Result{}
	for key, size := range f.objects {
		if strings.HasPrefix(key, prefix) {
			res.Bytes += size
			res.Objects++
		}
	}
	return res, nil
}

func (f *fakeTransferrer) DownloadChunked(ctx context.Context, key string, chunkSize int64, opts *transfer.Options) (*transfer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return &transfer.Result{Bytes: f.objects[key], Objects: 1}, nil
}

func (f *fakeTransferrer) DeleteObject(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	delete(f.objects, key)
	return nil
}

func (f *fakeTransferrer) DeletePrefix(ctx context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, prefix)
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			delete(f.objects, key)
		}
	}
	return nil
}

func (f *fakeTransferrer) EnsureBucket(ctx context.Context) error { return nil }
