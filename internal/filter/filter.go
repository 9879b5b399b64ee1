// Package filter defines the reporting scope of a dashboard view: which
// groups are selected and which calendar days are covered.
package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"groupspend/internal/core"
)

// Context is an immutable reporting scope. A filter change produces a new
// Context; nothing mutates one after construction.
type Context struct {
	groupIDs []int64
	dates    core.DateRange
}

// New normalizes groupIDs (sorted, deduplicated) and captures the range.
func New(groupIDs []int64, dates core.DateRange) Context {
	ids := slices.Clone(groupIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	return Context{groupIDs: ids, dates: dates}
}

// GroupIDs returns a copy of the normalized selection.
func (c Context) GroupIDs() []int64 {
	return slices.Clone(c.groupIDs)
}

// Range returns the inclusive date range.
func (c Context) Range() core.DateRange {
	return c.dates
}

// Empty reports whether no group is selected.
func (c Context) Empty() bool {
	return len(c.groupIDs) == 0
}

// Has reports whether groupID is part of the selection.
func (c Context) Has(groupID int64) bool {
	_, ok := slices.BinarySearch(c.groupIDs, groupID)
	return ok
}

// Equal compares normalized selections and ranges.
func (c Context) Equal(o Context) bool {
	return slices.Equal(c.groupIDs, o.groupIDs) &&
		c.dates.Start.Equal(o.dates.Start.Time) &&
		c.dates.End.Equal(o.dates.End.Time)
}

// Fingerprint is a sha256 hex digest of the normalized tuple
// (sorted group ids, start, end). Equal contexts yield equal fingerprints.
func (c Context) Fingerprint() string {
	var b strings.Builder
	b.WriteString("groups=")
	for i, id := range c.groupIDs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	b.WriteString(";start=")
	b.WriteString(c.dates.Start.String())
	b.WriteString(";end=")
	b.WriteString(c.dates.End.String())

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (c Context) String() string {
	parts := make([]string, len(c.groupIDs))
	for i, id := range c.groupIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "groups[" + strings.Join(parts, ",") + "] " + c.dates.String()
}
