package memory_test

import (
	"testing"

	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunRepositoryContract(t, memory.NewStore())
}

func TestMemoryLocker_Contract(t *testing.T) {
	ports.RunLockerContract(t, memory.NewLocker())
}
