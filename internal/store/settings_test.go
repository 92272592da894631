package store

import (
	"context"
	"testing"

	"github.com/erazemk/claimwildcats/internal/db"
)

func TestGetSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// First call should generate a secret.
	secret1, err := GetSecret(ctx, database, SessionSecretKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	// Second call should return the same secret.
	secret2, err := GetSecret(ctx, database, SessionSecretKey)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}

	// Other keys get their own secret.
	other, err := GetSecret(ctx, database, StorageSecretKey)
	if err != nil {
		t.Fatal(err)
	}
	if other == secret1 {
		t.Fatal("expected distinct secrets per key")
	}
}
