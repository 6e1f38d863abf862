package core

// InclusionReason tags why a file was pulled into a context bundle.
type InclusionReason string

const (
	ReasonTarget   InclusionReason = "target"
	ReasonImport   InclusionReason = "import"
	ReasonNeighbor InclusionReason = "neighbor"
)

// ContextFile is one entry in a ContextBundle: a relative path, its
// content (possibly truncated), the reason it was included, and whether
// the byte cap cut it short.
type ContextFile struct {
	Path      string          `json:"path"`
	Content   string          `json:"content"`
	Reason    InclusionReason `json:"reason"`
	Truncated bool            `json:"truncated"`
}

// ContextBundle is the ordered set of files shown to a model role.
// Invariant: every Path is relative to the job's repo root and lies
// within it; TotalBytes never exceeds the configured cap.
type ContextBundle struct {
	Files      []ContextFile `json:"files"`
	TotalBytes int64         `json:"total_bytes"`
}

// Add appends a file to the bundle and updates TotalBytes.
func (b *ContextBundle) Add(f ContextFile) {
	b.Files = append(b.Files, f)
	b.TotalBytes += int64(len(f.Content))
}
