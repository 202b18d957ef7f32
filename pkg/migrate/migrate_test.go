package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("shipped migrations should validate: %v", err)
	}
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "not_versioned.sql", "-- +goose Up\n-- +goose Down\n")

	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected error for unversioned filename")
	}
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20260101000000_first.sql", "-- +goose Up\n-- +goose Down\n")
	writeMigration(t, dir, "20260101000000_second.sql", "-- +goose Up\n-- +goose Down\n")

	err := ValidateDir(dir)
	if err == nil {
		t.Fatal("expected duplicate version error")
	}
	if !strings.Contains(err.Error(), "duplicate migration version") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDirRequiresGooseMarkers(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20260101000000_missing_down.sql", "-- +goose Up\nCREATE TABLE t (id INT);\n")

	err := ValidateDir(dir)
	if err == nil {
		t.Fatal("expected missing Down marker error")
	}
	if !strings.Contains(err.Error(), "+goose Down") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Reorder Point!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}

	base := filepath.Base(path)
	if !strings.HasSuffix(base, "_add_reorder_point.sql") {
		t.Fatalf("unexpected filename %q", base)
	}

	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := CreateSQLMigration(t.TempDir(), "!!!"); err == nil {
		t.Fatal("expected error for name with no usable characters")
	}
}

// The schema invariants live in SQL, so pin the shipped files to them.
func TestShippedMigrationsCarrySchemaGuards(t *testing.T) {
	cases := []struct {
		file     string
		contains []string
	}{
		{
			file: "20260815090000_create_products.sql",
			contains: []string{
				"CHECK (stock_quantity >= 0)",
				"UNIQUE (sku)",
				"low_stock_threshold",
			},
		},
		{
			file: "20260815090100_create_stock_movements.sql",
			contains: []string{
				"REFERENCES products (id) ON DELETE CASCADE",
				"CHECK (quantity > 0)",
				"'stock_in', 'stock_out', 'adjustment'",
				"previous_quantity",
				"new_quantity",
			},
		},
		{
			file: "20260815090200_create_notifications.sql",
			contains: []string{
				"REFERENCES products (id) ON DELETE CASCADE",
				"'low_stock', 'out_of_stock', 'system'",
				"read_at",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			b, err := os.ReadFile(filepath.Join("migrations", tc.file))
			if err != nil {
				t.Fatalf("read migration: %v", err)
			}
			sql := string(b)
			for _, want := range tc.contains {
				if !strings.Contains(sql, want) {
					t.Errorf("migration %s missing %q", tc.file, want)
				}
			}
		})
	}
}

func writeMigration(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
