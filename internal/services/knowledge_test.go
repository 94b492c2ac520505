package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/smixab/ihub-bot/internal/models"
)

func newTestStore(t *testing.T) (*KnowledgeStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge_base.json")
	s, err := NewKnowledgeStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, path
}

func TestMissingFileIsSeeded(t *testing.T) {
	s, path := newTestStore(t)

	if got := len(s.List()); got != 6 {
		t.Fatalf("seeded tool count = %d, want 6", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("seeded file should exist: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file should not be left behind")
	}
}

func TestCRUDPersistsAcrossReload(t *testing.T) {
	s, path := newTestStore(t)

	created, err := s.Create(models.ToolRecord{
		Name:     "Vinyl Cutter",
		Category: "Fabrication",
		Keywords: []string{"vinyl", "stickers"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 7 {
		t.Fatalf("new id = %d, want 7", created.ID)
	}

	created.Location = "Maker Space - Room 103"
	if err := s.Update(created); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Delete(1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	reloaded, err := NewKnowledgeStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := len(reloaded.List()); got != 6 {
		t.Fatalf("tool count after reload = %d, want 6", got)
	}
	tool, ok := reloaded.Get(7)
	if !ok {
		t.Fatal("created tool missing after reload")
	}
	if tool.Location != "Maker Space - Room 103" {
		t.Fatalf("location = %q, update was not persisted", tool.Location)
	}
	if _, ok := reloaded.Get(1); ok {
		t.Fatal("deleted tool still present after reload")
	}
}

func TestUpdateAndDeleteUnknownID(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Update(models.ToolRecord{ID: 999, Name: "ghost"}); err != ErrNotFound {
		t.Fatalf("update err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(999); err != ErrNotFound {
		t.Fatalf("delete err = %v, want ErrNotFound", err)
	}
}

func TestCreateReusesNoIDs(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Delete(6); err != nil {
		t.Fatalf("delete: %v", err)
	}
	created, err := s.Create(models.ToolRecord{Name: "Soldering Station"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 6 {
		t.Fatalf("id = %d, want 6 (max remaining id + 1)", created.ID)
	}
}

func TestCategories(t *testing.T) {
	s, _ := newTestStore(t)

	got := s.Categories()
	want := []string{"Computing", "Electronics", "Fabrication", "Research", "Study Space"}
	if len(got) != len(want) {
		t.Fatalf("categories = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("categories[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	fab := s.FilterByCategory("fabrication")
	if len(fab) != 2 {
		t.Fatalf("fabrication tools = %d, want 2 (filter should be case-insensitive)", len(fab))
	}
}

func TestExportWritesBackup(t *testing.T) {
	s, path := newTestStore(t)

	name, err := s.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	backup := filepath.Join(filepath.Dir(path), name)
	data, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	var kb models.KnowledgeBase
	if err := json.Unmarshal(data, &kb); err != nil {
		t.Fatalf("parse backup: %v", err)
	}
	if len(kb.Tools) != 6 {
		t.Fatalf("backup tool count = %d, want 6", len(kb.Tools))
	}
}

func TestImportMergeAndReplace(t *testing.T) {
	s, _ := newTestStore(t)

	doc, _ := json.Marshal(models.KnowledgeBase{Tools: []models.ToolRecord{
		{ID: 1, Name: "Duplicate of existing"},
		{ID: 100, Name: "Brand new tool"},
	}})

	added, err := s.Import(doc, false)
	if err != nil {
		t.Fatalf("import merge: %v", err)
	}
	if added != 1 {
		t.Fatalf("merged count = %d, want 1 (existing id skipped)", added)
	}
	if got := len(s.List()); got != 7 {
		t.Fatalf("tool count after merge = %d, want 7", got)
	}

	added, err = s.Import(doc, true)
	if err != nil {
		t.Fatalf("import replace: %v", err)
	}
	if added != 2 {
		t.Fatalf("replaced count = %d, want 2", added)
	}
	if got := len(s.List()); got != 2 {
		t.Fatalf("tool count after replace = %d, want 2", got)
	}

	if _, err := s.Import([]byte("{not json"), false); err == nil {
		t.Fatal("expected an error for a malformed document")
	}
}
