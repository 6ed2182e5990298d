// Package strategy holds the fixed catalog of retrieval strategies and the
// single current selection. Strategy ids are forwarded to the backend as-is.
package strategy

import (
	"errors"
	"fmt"
	"sync"
)

type ID string

const (
	Vector               ID = "vector"
	Keyword              ID = "keyword"
	Hybrid               ID = "hybrid"
	MultiQueryVector     ID = "multi_query_vector"
	MultiQueryHybrid     ID = "multi_query_hybrid"
	QueryDecomposeVector ID = "query_decompose_vector"
	QueryDecomposeHybrid ID = "query_decompose_hybrid"
)

const Default = Vector

var ErrUnknownStrategy = errors.New("unknown retrieval strategy")

type Strategy struct {
	ID          ID     `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var catalog = []Strategy{
	{Vector, "Vector Search", "Fast semantic search"},
	{Keyword, "Keyword Search", "Exact phrase matching"},
	{Hybrid, "Hybrid Search", "Combined Vector + Keyword (RRF)"},
	{MultiQueryVector, "Multi-Query Vector", "3 Variations -> Vector"},
	{MultiQueryHybrid, "Multi-Query Hybrid", "3 Variations -> Hybrid"},
	{QueryDecomposeVector, "Decompose Vector", "Sub-questions -> Vector"},
	{QueryDecomposeHybrid, "Decompose Hybrid", "Sub-questions -> Hybrid"},
}

// Catalog returns the strategies in display order.
func Catalog() []Strategy {
	out := make([]Strategy, len(catalog))
	copy(out, catalog)
	return out
}

func Lookup(id ID) (Strategy, error) {
	for _, s := range catalog {
		if s.ID == id {
			return s, nil
		}
	}
	return Strategy{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, id)
}

func Valid(id ID) bool {
	_, err := Lookup(id)
	return err == nil
}

// Selector holds exactly one selected strategy.
type Selector struct {
	mu      sync.RWMutex
	current Strategy
}

func NewSelector(initial ID) (*Selector, error) {
	if initial == "" {
		initial = Default
	}
	s, err := Lookup(initial)
	if err != nil {
		return nil, err
	}
	return &Selector{current: s}, nil
}

func (s *Selector) Select(id ID) error {
	st, err := Lookup(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = st
	s.mu.Unlock()
	return nil
}

func (s *Selector) Current() Strategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
