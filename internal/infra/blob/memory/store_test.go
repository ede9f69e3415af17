package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"recordcore/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	md := map[string]string{"kind": "spreadsheets"}
	info, err := s.Put(ctx, "exports/a.xlsx", bytes.NewBufferString("payload"), core.PutOptions{ContentType: "application/octet-stream", Metadata: md})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.Checksum == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	md["kind"] = "mutated"
	head, err := s.Head(ctx, "exports/a.xlsx")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Metadata["kind"] != "spreadsheets" {
		t.Fatalf("metadata leaked caller mutation: %+v", head.Metadata)
	}
	if _, err := s.Put(ctx, "exports/a.xlsx", bytes.NewBufferString("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := s.Get(ctx, "exports/a.xlsx")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if string(body) != "payload" {
		t.Fatalf("unexpected body %q", body)
	}
	if _, err := s.Put(ctx, "exports/b.pdf", bytes.NewBufferString("pdf"), core.PutOptions{}); err != nil {
		t.Fatalf("put b: %v", err)
	}
	if _, err := s.Put(ctx, "other/c", bytes.NewBufferString("c"), core.PutOptions{}); err != nil {
		t.Fatalf("put c: %v", err)
	}
	list, err := s.List(ctx, "exports/")
	if err != nil || len(list) != 2 || list[0].Key != "exports/a.xlsx" {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}
	if _, err := s.PresignURL(ctx, "exports/a.xlsx", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported presign, got %v", err)
	}
	if ok, _ := s.Delete(ctx, "exports/a.xlsx"); !ok {
		t.Fatalf("expected delete to report existing blob")
	}
	if ok, _ := s.Delete(ctx, "exports/a.xlsx"); ok {
		t.Fatalf("expected second delete to report missing")
	}
	if _, _, err := s.Get(ctx, "exports/a.xlsx"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on head, got %v", err)
	}
}

func TestPutRejectsEmptyKey(t *testing.T) {
	if _, err := New().Put(context.Background(), "  ", bytes.NewBufferString("x"), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}
