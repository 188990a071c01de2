// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package grid

// orderedSet is an insertion-ordered set with O(1) add, remove and lookup.
// Removal swaps the last item into the hole, so iteration order is
// deterministic for a given sequence of operations but not stable across
// removals.
type orderedSet[K comparable] struct {
	items []K
	index map[K]int
}

func newOrderedSet[K comparable](capacity int) *orderedSet[K] {
	return &orderedSet[K]{
		items: make([]K, 0, capacity),
		index: make(map[K]int, capacity),
	}
}

func (s *orderedSet[K]) add(k K) bool {
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = len(s.items)
	s.items = append(s.items, k)
	return true
}

func (s *orderedSet[K]) remove(k K) bool {
	i, ok := s.index[k]
	if !ok {
		return false
	}
	last := len(s.items) - 1
	if i != last {
		moved := s.items[last]
		s.items[i] = moved
		s.index[moved] = i
	}
	var zero K
	s.items[last] = zero
	s.items = s.items[:last]
	delete(s.index, k)
	return true
}

func (s *orderedSet[K]) has(k K) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[k]
	return ok
}

func (s *orderedSet[K]) len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// values returns a copy of the items, safe to hold across mutations.
func (s *orderedSet[K]) values() []K {
	if s == nil {
		return nil
	}
	out := make([]K, len(s.items))
	copy(out, s.items)
	return out
}
