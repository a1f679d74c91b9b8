package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/khanhng-dev/gridstore/internal/config"
	"github.com/khanhng-dev/gridstore/internal/domain"
)

func newTestService(backend *fakeBackend, chunkSize int64) *FileServiceImpl {
	cfg := config.DefaultConfig()
	cfg.App.ChunkSize = chunkSize
	return NewFileService(cfg, backend, backend)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestUploadService_Upload(t *testing.T) {
	tests := []struct {
		name        string
		content     []byte
		chunkSize   int64
		setup       func(b *fakeBackend)
		reader      func(content []byte) io.Reader
		wantChunks  int
		wantErr     bool
		errContains string
	}{
		{
			name:       "SingleChunk",
			content:    []byte("hello"),
			chunkSize:  16,
			wantChunks: 1,
		},
		{
			name:       "MultipleChunks",
			content:    []byte("exactly sixteen!plus a remainder"),
			chunkSize:  16,
			wantChunks: 2,
		},
		{
			name:       "ZeroByteUpload",
			content:    nil,
			chunkSize:  16,
			wantChunks: 0,
		},
		{
			name:      "ChunkWriteFailure",
			content:   []byte("0123456789abcdef0123"),
			chunkSize: 16,
			setup: func(b *fakeBackend) {
				b.writeErrAt = 1
			},
			wantErr:     true,
			errContains: "disk on fire",
		},
		{
			name:      "StreamFailureMidUpload",
			content:   []byte("0123456789abcdef"),
			chunkSize: 16,
			reader: func(content []byte) io.Reader {
				return io.MultiReader(bytes.NewReader(content), errReader{err: errors.New("client disconnected")})
			},
			wantErr:     true,
			errContains: "client disconnected",
		},
		{
			name:      "FinalizeFailure",
			content:   []byte("hello"),
			chunkSize: 16,
			setup: func(b *fakeBackend) {
				b.finalizeErr = errors.New("catalog write refused")
			},
			wantErr:     true,
			errContains: "catalog write refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			if tt.setup != nil {
				tt.setup(backend)
			}
			svc := newTestService(backend, tt.chunkSize)

			var reader io.Reader = bytes.NewReader(tt.content)
			if tt.reader != nil {
				reader = tt.reader(tt.content)
			}

			record, err := svc.Upload(context.Background(), "test.txt", "text/plain", reader)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("error %q does not contain %q", err, tt.errContains)
				}

				// Rollback must leave neither chunks nor a record.
				if len(backend.records) != 0 {
					t.Fatalf("expected no records after rollback, got %d", len(backend.records))
				}
				if len(backend.chunks) != 0 {
					t.Fatalf("expected no chunks after rollback, got %d", len(backend.chunks))
				}
				return
			}

			if err != nil {
				t.Fatalf("Upload() error = %v", err)
			}
			if record.Status != domain.StatusComplete {
				t.Fatalf("expected complete record, got %s", record.Status)
			}
			if record.Length != int64(len(tt.content)) {
				t.Fatalf("length = %d, expected %d", record.Length, len(tt.content))
			}
			if record.Chunks != tt.wantChunks {
				t.Fatalf("chunks = %d, expected %d", record.Chunks, tt.wantChunks)
			}
			if got := backend.content(record.ID); !bytes.Equal(got, tt.content) {
				t.Fatalf("stored content %q, expected %q", got, tt.content)
			}
		})
	}
}

func TestUploadService_ConcurrentIndependentUploads(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(backend, 16)

	large := bytes.Repeat([]byte("0123456789abcdef"), 640)
	small := []byte("x")

	var wg sync.WaitGroup
	var largeErr, smallErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, largeErr = svc.Upload(context.Background(), "large.bin", "application/octet-stream", bytes.NewReader(large))
	}()
	go func() {
		defer wg.Done()
		_, smallErr = svc.Upload(context.Background(), "small.bin", "application/octet-stream", bytes.NewReader(small))
	}()
	wg.Wait()

	if largeErr != nil || smallErr != nil {
		t.Fatalf("concurrent uploads failed: large=%v small=%v", largeErr, smallErr)
	}

	// Both files completed and are independently retrievable.
	for _, want := range []struct {
		filename string
		content  []byte
	}{
		{"large.bin", large},
		{"small.bin", small},
	} {
		record, reader, err := svc.Open(context.Background(), want.filename)
		if err != nil {
			t.Fatalf("Open(%q) error = %v", want.filename, err)
		}
		if record.Length != int64(len(want.content)) {
			t.Fatalf("%q length = %d, expected %d", want.filename, record.Length, len(want.content))
		}

		var out bytes.Buffer
		for {
			data, err := reader.Next(context.Background())
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			out.Write(data)
		}
		_ = reader.Close()

		if !bytes.Equal(out.Bytes(), want.content) {
			t.Fatalf("%q read %d bytes that do not match the upload", want.filename, out.Len())
		}
	}
}

func TestUploadService_RollbackOrdering(t *testing.T) {
	backend := newFakeBackend()
	backend.writeErrAt = 0
	svc := newTestService(backend, 4)

	_, err := svc.Upload(context.Background(), "doomed.txt", "text/plain", strings.NewReader("data"))
	if err == nil {
		t.Fatalf("expected upload failure")
	}

	// Rollback deletes chunks before the record, mirroring the delete
	// pipeline's fail-safe ordering.
	var sawChunks, sawRemove bool
	for _, op := range backend.ops {
		if strings.HasPrefix(op, "deleteChunks:") {
			sawChunks = true
			if sawRemove {
				t.Fatalf("record removed before chunk deletion: %v", backend.ops)
			}
		}
		if strings.HasPrefix(op, "remove:") {
			sawRemove = true
		}
	}
	if !sawChunks || !sawRemove {
		t.Fatalf("rollback incomplete, ops: %v", backend.ops)
	}
}

func TestUploadService_RejectsNULFilename(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(backend, 16)

	// A NUL byte would collide with the filename index key separator
	// and let this upload shadow a file literally named "a".
	_, err := svc.Upload(context.Background(), "a\x00b.txt", "text/plain", strings.NewReader("data"))
	if !errors.Is(err, domain.ErrInvalidFilename) {
		t.Fatalf("expected ErrInvalidFilename, got %v", err)
	}
	if len(backend.records) != 0 || len(backend.chunks) != 0 {
		t.Fatalf("rejected filename must leave no state behind")
	}
}

func TestUploadService_CanceledContext(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(backend, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Upload(ctx, "canceled.txt", "text/plain", strings.NewReader("data"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(backend.records) != 0 || len(backend.chunks) != 0 {
		t.Fatalf("expected rollback after cancellation")
	}
}
