package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store exposes persona retrieval for services and HTTP handlers.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
// Later entries replace earlier ones with the same ID.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{}
	for _, item := range items {
		s.put(item)
	}
	return s
}

func (s *MemoryStore) put(p Persona) {
	for i, item := range s.items {
		if item.ID == p.ID {
			s.items[i] = p
			return
		}
	}
	s.items = append(s.items, p)
}

// List returns the configured personas.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

type personaFile struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile reads additional personas from a YAML document of the form
//
//	personas:
//	  - id: ...
//	    greeting: ...
func LoadFile(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}

	var doc personaFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse persona file %s: %w", path, err)
	}

	for _, p := range doc.Personas {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("persona file %s: %w", path, err)
		}
	}
	return doc.Personas, nil
}
