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

import (
	"errors"
	"fmt"
)

// Sentinel errors for grid operations.
var (
	// ErrContractViolation marks an element that does not follow the
	// symmetric adjacency contract. Violations are reported through
	// Diagnostics and never abort a mutation.
	ErrContractViolation = errors.New("element adjacency contract violated")

	// ErrPartitionViolation is returned by CheckInvariants when the network
	// partition no longer matches the adjacency relation.
	ErrPartitionViolation = errors.New("network partition violated")
)

// ViolationKind identifies which half of the adjacency contract was broken.
type ViolationKind int

const (
	// ViolationEdgeKept means A dropped B as a neighbour but B still lists A.
	ViolationEdgeKept ViolationKind = iota + 1

	// ViolationEdgeMissing means A added B as a neighbour but B does not list A.
	ViolationEdgeMissing
)

// String returns the string representation of the kind.
func (k ViolationKind) String() string {
	switch k {
	case ViolationEdgeKept:
		return "edge_kept"
	case ViolationEdgeMissing:
		return "edge_missing"
	default:
		return "unknown"
	}
}

// ContractViolation describes an element pair whose reported neighbour sets
// disagree.
//
// A is the element being refreshed and B the neighbour whose reverse edge was
// checked. Both are kept as opaque values; their %v formatting is what ends up
// in logs, so element types should implement fmt.Stringer.
type ContractViolation struct {
	Kind ViolationKind
	A    any
	B    any
}

// Error implements error.
func (v *ContractViolation) Error() string {
	switch v.Kind {
	case ViolationEdgeKept:
		return fmt.Sprintf("%s: edge B -> A was kept when edge A -> B was removed (A = %v, B = %v)",
			ErrContractViolation, v.A, v.B)
	case ViolationEdgeMissing:
		return fmt.Sprintf("%s: edge B -> A was not added when edge A -> B was added (A = %v, B = %v)",
			ErrContractViolation, v.A, v.B)
	default:
		return fmt.Sprintf("%s (A = %v, B = %v)", ErrContractViolation, v.A, v.B)
	}
}

// Is reports whether target is ErrContractViolation.
func (v *ContractViolation) Is(target error) bool {
	return target == ErrContractViolation
}
