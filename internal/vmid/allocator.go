// Package vmid allocates Proxmox VM identifiers.
//
// Identifiers are allocated by scanning upward from a starting value past
// every identifier the cluster already uses. A batch shares one Allocator so
// that each template receives an identifier strictly greater than the one
// before it, even though the in-use set is queried again for every template.
package vmid

import (
	"context"
	"fmt"
)

// MinID is the lowest identifier Proxmox accepts for guests; 0-99 are
// reserved.
const MinID = 100

// Source reports the identifiers currently in use.
//
// In production this is satisfied by *pve.Client.
type Source interface {
	UsedIDs(ctx context.Context) ([]int, error)
}

// Allocate returns the smallest integer >= start that is not in used.
// The scan always terminates because used is finite.
func Allocate(start int, used map[int]bool) int {
	id := start
	for used[id] {
		id++
	}
	return id
}

// Allocator hands out increasing identifiers for one batch run.
type Allocator struct {
	source Source
	next   int
}

// NewAllocator creates an allocator whose first candidate is start.
// Values below MinID are raised to MinID.
func NewAllocator(source Source, start int) *Allocator {
	if start < MinID {
		start = MinID
	}
	return &Allocator{source: source, next: start}
}

// Next queries the in-use identifiers and returns the smallest free one at or
// above the cursor. The cursor then moves to the returned value + 1, so a
// later call never returns the same or a smaller identifier.
func (a *Allocator) Next(ctx context.Context) (int, error) {
	ids, err := a.source.UsedIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list used VM IDs: %w", err)
	}

	used := make(map[int]bool, len(ids))
	for _, id := range ids {
		used[id] = true
	}

	id := Allocate(a.next, used)
	a.next = id + 1
	return id, nil
}

// Peek returns the next candidate without querying or advancing.
func (a *Allocator) Peek() int {
	return a.next
}
