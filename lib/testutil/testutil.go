package testutil

import (
	"fmt"
	"testing"

	"loadscout-backend/lib/telemetry"
	"loadscout-backend/services/store"

	"gorm.io/gorm"
)

// SetupService wires test telemetry and an in-memory store for a
// service test.
func SetupService(t testing.TB, name string) (*gorm.DB, func()) {
	cleanup := telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", name))

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	return db, cleanup
}
