package qdrant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
)

func testChunks() ([]domain.Chunk, [][]float32) {
	return []domain.Chunk{
		{ID: "11111111-1111-1111-1111-111111111111", Text: "a", SourceDocument: "doc.pdf"},
		{ID: "22222222-2222-2222-2222-222222222222", Text: "b", SourceDocument: "doc.pdf"},
	}, [][]float32{{0.1, 0.2}, {0.3, 0.4}}
}

func TestAddEnsuresCollectionOnce(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chat_1":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chat_1/points":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ix := NewIndex(server.URL)
	col, err := ix.GetOrCreate(context.Background(), "chat_1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	chunks, vectors := testChunks()
	if err := col.Add(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("first Add() error = %v", err)
	}
	if err := col.Add(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("second Add() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestAddTreatsConflictAsExisting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chat_1":
			w.WriteHeader(http.StatusConflict)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chat_1/points":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ix := NewIndex(server.URL)
	col, _ := ix.GetOrCreate(context.Background(), "chat_1")
	chunks, vectors := testChunks()
	if err := col.Add(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("Add() with existing collection error = %v", err)
	}
}

func TestAddRejectsRaggedBatch(t *testing.T) {
	ix := NewIndex("http://unused")
	col, _ := ix.GetOrCreate(context.Background(), "chat_1")

	chunks, _ := testChunks()
	err := col.Add(context.Background(), chunks, [][]float32{{0.1, 0.2}, {0.3}})
	if !domain.IsKind(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
	err = col.Add(context.Background(), chunks, [][]float32{{0.1, 0.2}})
	if !domain.IsKind(err, domain.ErrLengthMismatch) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
}

func TestSearchConvertsScoreToDistance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/chat_1":
			_, _ = w.Write([]byte(`{"result":{}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/collections/chat_1/points/search":
			_, _ = w.Write([]byte(`{"result":[
				{"score":0.95,"payload":{"text":"near"}},
				{"score":0.20,"payload":{"text":"far"}}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ix := NewIndex(server.URL)
	col, _ := ix.GetOrCreate(context.Background(), "chat_1")
	matches, err := col.Search(context.Background(), []float32{0.1, 0.2}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ChunkText != "near" || matches[0].Distance > matches[1].Distance {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestSearchMissingCollectionReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	ix := NewIndex(server.URL)
	col, _ := ix.GetOrCreate(context.Background(), "chat_1")
	matches, err := col.Search(context.Background(), []float32{0.1}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected empty matches, got %+v", matches)
	}
}

func TestErrorIncludesResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/chat_1" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	ix := NewIndex(server.URL)
	col, _ := ix.GetOrCreate(context.Background(), "chat_1")
	chunks, vectors := testChunks()
	err := col.Add(context.Background(), chunks, vectors)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error with response body, got %v", err)
	}
}

func TestLookupMissingCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	ix := NewIndex(server.URL)
	_, err := ix.Lookup(context.Background(), "chat_missing")
	if !domain.IsKind(err, domain.ErrNoActiveCollection) {
		t.Fatalf("expected no active collection, got %v", err)
	}
}
