// Package jobid generates the job identifiers named by the data model
// (§3): unique and lexicographically sortable by creation time.
package jobid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugo-lorenzo-mato/council/internal/core"
)

// New returns a job identifier for now: a UTC timestamp prefix
// (sortable, filesystem-safe) followed by a short uuid suffix so two
// jobs created in the same nanosecond never collide.
func New(now time.Time) core.JobID {
	ts := now.UTC().Format("20060102T150405.000000000Z")
	return core.JobID(fmt.Sprintf("%s-%s", ts, uuid.NewString()[:8]))
}
