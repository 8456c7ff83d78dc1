package analyzer

import "sort"

// ComputeComplexity returns 1 plus the number of branch nodes that start
// inside the entity's span. Imports and modules are not scored and return 0.
func ComputeComplexity(u *SourceUnit, e StructuralEntity) int {
	if !e.Kind.Scored() {
		return 0
	}
	offsets := u.branchOffsets()
	lo := sort.SearchInts(offsets, e.Span.StartByte)
	hi := sort.SearchInts(offsets, e.Span.EndByte)
	return 1 + hi - lo
}
