package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smixab/ihub-bot/internal/models"
)

// ErrNotFound is returned for lookups of records or IPs that do not exist.
var ErrNotFound = errors.New("not found")

// KnowledgeStore holds the tool records in memory and persists every
// mutation back to the JSON document. A single lock serializes access;
// request volume is low and a coarse lock is sufficient.
type KnowledgeStore struct {
	mu    sync.RWMutex
	path  string
	tools []models.ToolRecord
}

// NewKnowledgeStore loads the knowledge base from path. A missing file is
// seeded with the default records and written out.
func NewKnowledgeStore(path string) (*KnowledgeStore, error) {
	s := &KnowledgeStore{path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var kb models.KnowledgeBase
		if err := json.Unmarshal(data, &kb); err != nil {
			return nil, fmt.Errorf("failed to parse knowledge base %s: %w", path, err)
		}
		s.tools = kb.Tools
	case os.IsNotExist(err):
		s.tools = defaultTools()
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to read knowledge base %s: %w", path, err)
	}
	return s, nil
}

// List returns a copy of all tool records in insertion order.
func (s *KnowledgeStore) List() []models.ToolRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ToolRecord, len(s.tools))
	copy(out, s.tools)
	return out
}

// Get returns the record with the given id.
func (s *KnowledgeStore) Get(id int) (models.ToolRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tools {
		if t.ID == id {
			return t, true
		}
	}
	return models.ToolRecord{}, false
}

// Create assigns the next free id, appends the record and persists.
func (s *KnowledgeStore) Create(t models.ToolRecord) (models.ToolRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxID := 0
	for _, existing := range s.tools {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	t.ID = maxID + 1
	s.tools = append(s.tools, t)
	if err := s.persistLocked(); err != nil {
		return models.ToolRecord{}, err
	}
	return t, nil
}

// Update replaces the record with the same id and persists.
func (s *KnowledgeStore) Update(t models.ToolRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tools {
		if s.tools[i].ID == t.ID {
			s.tools[i] = t
			return s.persistLocked()
		}
	}
	return ErrNotFound
}

// Delete removes the record with the given id and persists.
func (s *KnowledgeStore) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tools {
		if s.tools[i].ID == id {
			s.tools = append(s.tools[:i], s.tools[i+1:]...)
			return s.persistLocked()
		}
	}
	return ErrNotFound
}

// Categories returns the sorted set of distinct categories.
func (s *KnowledgeStore) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, t := range s.tools {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	sort.Strings(out)
	return out
}

// FilterByCategory returns all records in the given category (case-insensitive).
func (s *KnowledgeStore) FilterByCategory(category string) []models.ToolRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ToolRecord
	for _, t := range s.tools {
		if strings.EqualFold(t.Category, category) {
			out = append(out, t)
		}
	}
	return out
}

// Export writes a timestamped backup copy of the document next to it and
// returns the backup filename.
func (s *KnowledgeStore) Export() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(models.KnowledgeBase{Tools: s.tools}, "", "  ")
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("knowledge_base_backup_%s.json", time.Now().Format("20060102_150405"))
	backup := filepath.Join(filepath.Dir(s.path), name)
	if err := os.WriteFile(backup, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return name, nil
}

// Import loads records from a knowledge-base document. When replace is true
// the whole collection is swapped; otherwise records whose ids are not
// already present are merged in. Returns the number of records taken.
func (s *KnowledgeStore) Import(data []byte, replace bool) (int, error) {
	var kb models.KnowledgeBase
	if err := json.Unmarshal(data, &kb); err != nil {
		return 0, fmt.Errorf("invalid knowledge base document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if replace {
		s.tools = kb.Tools
		if err := s.persistLocked(); err != nil {
			return 0, err
		}
		return len(kb.Tools), nil
	}

	existing := make(map[int]bool, len(s.tools))
	for _, t := range s.tools {
		existing[t.ID] = true
	}
	added := 0
	for _, t := range kb.Tools {
		if !existing[t.ID] {
			s.tools = append(s.tools, t)
			added++
		}
	}
	if err := s.persistLocked(); err != nil {
		return 0, err
	}
	return added, nil
}

// persistLocked writes the document atomically (temp file + rename) so a
// crash mid-write never leaves a truncated knowledge base behind.
// Caller must hold the lock.
func (s *KnowledgeStore) persistLocked() error {
	data, err := json.MarshalIndent(models.KnowledgeBase{Tools: s.tools}, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.path, data)
}

func atomicWrite(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// defaultTools seeds a fresh installation with sample school resources.
func defaultTools() []models.ToolRecord {
	return []models.ToolRecord{
		{
			ID:               1,
			Name:             "3D Printers (Bambu Lab X1C)",
			Category:         "Fabrication",
			Location:         "Maker Space - Room 101",
			Description:      "Three Bambu Lab X1C 3D printers for high-quality prototyping and creating plastic parts with automatic multi-material capabilities",
			Availability:     "Available during lab hours (9 AM - 5 PM)",
			TrainingRequired: true,
			Contact:          "Dr. Smith - ext. 1234",
			Keywords:         []string{"3d printing", "prototyping", "plastic", "maker", "fabrication", "bambu lab", "x1c", "multi-material", "ams"},
		},
		{
			ID:               2,
			Name:             "Laser Cutter",
			Category:         "Fabrication",
			Location:         "Maker Space - Room 102",
			Description:      "CO2 laser cutter for cutting and engraving wood, acrylic, and fabric",
			Availability:     "Available with supervision Mon-Fri 10 AM - 4 PM",
			TrainingRequired: true,
			Contact:          "Prof. Johnson - ext. 5678",
			Keywords:         []string{"laser cutting", "engraving", "wood", "acrylic", "cutting"},
		},
		{
			ID:               3,
			Name:             "Computer Lab",
			Category:         "Computing",
			Location:         "Building A - Room 205",
			Description:      "30 computers with design software including AutoCAD, SolidWorks, and Adobe Creative Suite",
			Availability:     "24/7 with student ID card access",
			TrainingRequired: false,
			Contact:          "IT Help Desk - ext. 9999",
			Keywords:         []string{"computer", "software", "autocad", "solidworks", "adobe", "design"},
		},
		{
			ID:               4,
			Name:             "Electronics Lab",
			Category:         "Electronics",
			Location:         "Engineering Building - Room 150",
			Description:      "Oscilloscopes, function generators, multimeters, and breadboarding supplies",
			Availability:     "Open lab hours: Mon-Thu 1 PM - 8 PM, Fri 1 PM - 5 PM",
			TrainingRequired: true,
			Contact:          "Lab Manager - ext. 4321",
			Keywords:         []string{"electronics", "oscilloscope", "multimeter", "breadboard", "circuits"},
		},
		{
			ID:               5,
			Name:             "Library Study Rooms",
			Category:         "Study Space",
			Location:         "Main Library - 2nd Floor",
			Description:      "Quiet study rooms for individual and group work, equipped with whiteboards",
			Availability:     "Reservable online, 2-hour time slots",
			TrainingRequired: false,
			Contact:          "Library Front Desk - ext. 1111",
			Keywords:         []string{"study", "library", "quiet", "group work", "whiteboard", "reservation"},
		},
		{
			ID:               6,
			Name:             "Microscopy Lab",
			Category:         "Research",
			Location:         "Science Building - Room 301",
			Description:      "Light and electron microscopes for material analysis and biological samples",
			Availability:     "By appointment only",
			TrainingRequired: true,
			Contact:          "Dr. Williams - ext. 7890",
			Keywords:         []string{"microscope", "microscopy", "electron", "analysis", "samples"},
		},
	}
}
