package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/redline/pkg/adapters/memory"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/persistence/middleware"
	"github.com/aretw0/redline/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, middleware.KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func sealed(t *testing.T, next ports.CheckpointStore, cfg middleware.EncryptionConfig) ports.CheckpointStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	if err != nil {
		t.Fatalf("NewEncryptionMiddleware: %v", err)
	}
	return mw(next)
}

func confidentialTask(id string) *domain.TaskState {
	doc := &domain.Document{ID: "msa", Clauses: []domain.Clause{{ID: "7", Text: "Liability is capped at the fees paid."}}}
	st := domain.NewTaskState(id, "supply", doc, []domain.ChecklistItem{{ClauseID: "7"}})
	st.Node = domain.NodeHumanApproval
	st.Status = domain.StatusAwaitingApproval
	return st
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunCheckpointStoreContract(t, sealed(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := memory.NewStore()
	secureStore := sealed(t, underlyingStore, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	ctx := context.Background()
	if err := secureStore.Save(ctx, "t1", confidentialTask("t1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	stored, err := underlyingStore.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if stored.Document != nil {
		t.Fatal("Expected the document to be hidden in the envelope")
	}
	if stored.Sealed == "" {
		t.Fatal("Expected a sealed payload in the envelope")
	}
	if stored.Status != domain.StatusAwaitingApproval || stored.TaskID != "t1" {
		t.Errorf("Envelope should keep status and id in clear, got %q %q", stored.Status, stored.TaskID)
	}
	raw, _ := base64.StdEncoding.DecodeString(stored.Sealed)
	if strings.Contains(string(raw), "Liability") {
		t.Fatal("Ciphertext contains clause text")
	}

	loaded, err := secureStore.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load via middleware failed: %v", err)
	}
	if got := loaded.Document.ClauseText("7"); got != "Liability is capped at the fees paid." {
		t.Errorf("Expected clause text back, got %q", got)
	}
	if loaded.Sealed != "" {
		t.Error("Loaded task should not carry the sealed payload")
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureStoreOld := sealed(t, underlyingStore, middleware.EncryptionConfig{ActiveKey: oldKey})
	if err := secureStoreOld.Save(ctx, "rot", confidentialTask("rot")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	secureStoreNew := sealed(t, underlyingStore, middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	loaded, err := secureStoreNew.Load(ctx, "rot")
	if err != nil {
		t.Fatalf("Load with rotated key failed: %v", err)
	}

	loaded.CurrentClauseID = "7"
	if err := secureStoreNew.Save(ctx, "rot", loaded); err != nil {
		t.Fatalf("Save with new key failed: %v", err)
	}

	if _, err := secureStoreOld.Load(ctx, "rot"); err == nil {
		t.Error("Expected failure when loading new-key encryption with old-key middleware")
	}
}

func TestEncryptionMiddleware_PlainCheckpoint(t *testing.T) {
	underlyingStore := memory.NewStore()
	ctx := context.Background()
	if err := underlyingStore.Save(ctx, "plain", confidentialTask("plain")); err != nil {
		t.Fatal(err)
	}

	secureStore := sealed(t, underlyingStore, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	if _, err := secureStore.Load(ctx, "plain"); !errors.Is(err, middleware.ErrNotSealed) {
		t.Errorf("Expected ErrNotSealed, got %v", err)
	}
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	if _, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")}); err == nil {
		t.Error("Expected error for invalid key size")
	}
}

func TestDecodeKey(t *testing.T) {
	key := generateKey(t)
	got, err := middleware.DecodeKey(base64.StdEncoding.EncodeToString(key))
	if err != nil || string(got) != string(key) {
		t.Fatalf("DecodeKey roundtrip failed: %v", err)
	}
	if _, err := middleware.DecodeKey("not base64!"); err == nil {
		t.Error("Expected error for invalid base64")
	}
	if _, err := middleware.DecodeKey(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Error("Expected error for short key")
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) middleware.Middleware {
		return func(next ports.CheckpointStore) ports.CheckpointStore {
			return recordingStore{CheckpointStore: next, name: name, order: &order}
		}
	}

	store := middleware.Chain(memory.NewStore(), tag("outer"), tag("inner"))
	if err := store.Save(context.Background(), "x", confidentialTask("x")); err != nil {
		t.Fatal(err)
	}
	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("unexpected order %v", order)
	}
}

type recordingStore struct {
	ports.CheckpointStore
	name  string
	order *[]string
}

func (r recordingStore) Save(ctx context.Context, id string, st *domain.TaskState) error {
	*r.order = append(*r.order, r.name)
	return r.CheckpointStore.Save(ctx, id, st)
}
