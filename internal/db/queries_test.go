package db

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hpungsan/stump/internal/errors"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleCapture(id string, createdAt int64) *Capture {
	return &Capture{
		ID:           id,
		TracePath:    "/work/build.json",
		ArchivePath:  "/work/" + id + ".zip",
		Flavor:       "AotCompilerTask",
		TaskCount:    2,
		AssetCount:   7,
		ArchiveBytes: 4096,
		CreatedAt:    createdAt,
	}
}

func TestInsertAndGetByID(t *testing.T) {
	db := openTestDB(t)
	want := sampleCapture("01HZX", 1700000000)

	if err := Insert(db, want); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	got, err := GetByID(db, want.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetByID() mismatch (-want +got):\n%s", diff)
	}
}

func TestInsert_Duplicate(t *testing.T) {
	db := openTestDB(t)
	c := sampleCapture("01DUP", 1)

	if err := Insert(db, c); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	err := Insert(db, c)
	if !errors.Is(err, errors.ErrAlreadyExists) {
		t.Errorf("second Insert() = %v, want ALREADY_EXISTS", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetByID(db, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetByID() = %v, want NOT_FOUND", err)
	}
}

func TestList_NewestFirst(t *testing.T) {
	db := openTestDB(t)
	for i := 1; i <= 3; i++ {
		if err := Insert(db, sampleCapture(fmt.Sprintf("01C%d", i), int64(i))); err != nil {
			t.Fatal(err)
		}
	}

	got, total, err := List(db, ListFilters{}, 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	var ids []string
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	if diff := cmp.Diff([]string{"01C3", "01C2", "01C1"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestList_Pagination(t *testing.T) {
	db := openTestDB(t)
	for i := 1; i <= 5; i++ {
		if err := Insert(db, sampleCapture(fmt.Sprintf("01P%d", i), int64(i))); err != nil {
			t.Fatal(err)
		}
	}

	got, total, err := List(db, ListFilters{}, 2, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(got) != 2 || got[0].ID != "01P3" || got[1].ID != "01P2" {
		t.Errorf("page = %+v, want 01P3, 01P2", got)
	}

	got, _, err = List(db, ListFilters{}, 10, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("past-the-end page has %d items", len(got))
	}
}

func TestList_FlavorFilter(t *testing.T) {
	db := openTestDB(t)
	a := sampleCapture("01F1", 1)
	b := sampleCapture("01F2", 2)
	b.Flavor = "Android"
	for _, c := range []*Capture{a, b} {
		if err := Insert(db, c); err != nil {
			t.Fatal(err)
		}
	}

	got, total, err := List(db, ListFilters{Flavor: "Android"}, 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || len(got) != 1 || got[0].ID != "01F2" {
		t.Errorf("List(Android) = %+v (total %d)", got, total)
	}
}

func TestDelete(t *testing.T) {
	db := openTestDB(t)
	if err := Insert(db, sampleCapture("01DEL", 1)); err != nil {
		t.Fatal(err)
	}

	if err := Delete(db, "01DEL"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := GetByID(db, "01DEL"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetByID after Delete = %v, want NOT_FOUND", err)
	}
	if err := Delete(db, "01DEL"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second Delete() = %v, want NOT_FOUND", err)
	}
}
