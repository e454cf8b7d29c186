//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestTestDB_SchemaApplied(t *testing.T) {
	testDB := GetTestDB(t)

	ctx := context.Background()

	tables := []string{
		"dim_company", "dim_location", "dim_role", "dim_portal", "dim_date", "dim_skill",
		"job_fact", "job_skill", "job_key_phrase", "job_entity", "audit_log",
	}
	for _, table := range tables {
		var exists bool
		err := testDB.DB.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
			table).Scan(&exists)
		if err != nil {
			t.Fatalf("failed to check table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("expected table %s to exist", table)
		}
	}
}

func TestTestDB_SessionTimeZoneIsUTC(t *testing.T) {
	testDB := GetTestDB(t)

	var tz string
	if err := testDB.DB.QueryRow(context.Background(), "SHOW TIME ZONE").Scan(&tz); err != nil {
		t.Fatalf("failed to read time zone: %v", err)
	}
	if tz != "UTC" {
		t.Errorf("expected UTC session time zone, got %s", tz)
	}
}
