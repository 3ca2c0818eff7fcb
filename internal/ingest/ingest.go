// Package ingest validates and persists uploaded documents.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"smartsdlc/internal/apperr"
	"smartsdlc/internal/models"
)

const sniffLen = 512

type Options struct {
	MaxBytes      int64
	MaxConcurrent int64
	AcceptedTypes []string
}

// Ingestor accepts one document per call. Keys are random uuids, so
// concurrent uploads of the same name never collide.
type Ingestor struct {
	store    Store
	maxBytes int64
	accepted []string
	slots    *semaphore.Weighted
	logger   *slog.Logger
	now      func() time.Time
	newKey   func() string
}

func New(store Store, opts Options, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 << 20
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	if len(opts.AcceptedTypes) == 0 {
		opts.AcceptedTypes = []string{"application/pdf"}
	}
	return &Ingestor{
		store:    store,
		maxBytes: opts.MaxBytes,
		accepted: opts.AcceptedTypes,
		slots:    semaphore.NewWeighted(opts.MaxConcurrent),
		logger:   logger,
		now:      time.Now,
		newKey:   uuid.NewString,
	}
}

// MaxBytes is the largest accepted document size.
func (i *Ingestor) MaxBytes() int64 { return i.maxBytes }

// Ingest checks the declared type, streams r into storage and returns the
// stored document record. Type rejections happen before any write.
func (i *Ingestor) Ingest(ctx context.Context, r io.Reader, originalName, declaredContentType string) (*models.UploadedDocument, error) {
	if !i.slots.TryAcquire(1) {
		return nil, apperr.ErrBusy
	}
	defer i.slots.Release(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := filepath.Base(strings.TrimSpace(originalName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, apperr.Validation("document", "file name is required")
	}
	contentType, ok := i.accept(declaredContentType)
	if !ok {
		return nil, apperr.Validation("document", fmt.Sprintf("unsupported file type %q", declaredContentType))
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, &apperr.PayloadTooLargeError{Limit: i.maxBytes}
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, apperr.Validation("document", "file is empty")
	}
	if sniffed := baseType(http.DetectContentType(head)); sniffed != contentType {
		return nil, apperr.Validation("document", fmt.Sprintf("content does not look like %s", contentType))
	}

	id := i.newKey()
	key := id + extension(name, contentType)
	w, path, err := i.store.Create(key)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	n, err := io.Copy(w, io.LimitReader(br, i.maxBytes+1))
	closeErr := w.Close()
	switch {
	case err != nil:
		i.discard(key)
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, &apperr.PayloadTooLargeError{Limit: i.maxBytes}
		}
		return nil, fmt.Errorf("write upload: %w", err)
	case n > i.maxBytes:
		i.discard(key)
		return nil, &apperr.PayloadTooLargeError{Limit: i.maxBytes}
	case closeErr != nil:
		i.discard(key)
		return nil, fmt.Errorf("close upload: %w", closeErr)
	}

	doc := &models.UploadedDocument{
		ID:           id,
		OriginalName: name,
		StoragePath:  path,
		SizeBytes:    n,
		ContentType:  contentType,
		CreatedAt:    i.now().UTC(),
	}
	i.logger.Info("document stored", "id", id, "name", name, "bytes", n)
	return doc, nil
}

func (i *Ingestor) discard(key string) {
	if err := i.store.Remove(key); err != nil {
		i.logger.Warn("remove partial upload failed", "key", key, "error", err)
	}
}

func (i *Ingestor) accept(declared string) (string, bool) {
	ct := baseType(declared)
	if ct == "" {
		return "", false
	}
	for _, a := range i.accepted {
		if strings.EqualFold(a, ct) {
			return ct, true
		}
	}
	return "", false
}

func baseType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

// extension keeps the client's extension only when it agrees with the
// accepted content type.
func extension(name, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" && len(ext) <= 8 && baseType(mime.TypeByExtension(ext)) == contentType {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
