package memory_test

import (
	"testing"

	"github.com/aretw0/redline/pkg/adapters/memory"
	"github.com/aretw0/redline/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunCheckpointStoreContract(t, store)
}
