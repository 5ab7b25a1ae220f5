package face

import (
	"fmt"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

const (
	// LoginThreshold is used by kiosks to identify who is standing in front
	// of the camera.
	LoginThreshold = 0.70
	// AdminThreshold is used for administrative re-verification.
	AdminThreshold = 0.85
)

type MatchReason string

const (
	MatchFound               MatchReason = "matched"
	MatchEmptyGallery        MatchReason = "empty_gallery"
	MatchIncompatibleGallery MatchReason = "incompatible_gallery"
	MatchBelowThreshold      MatchReason = "below_threshold"
)

type Candidate struct {
	Employee   domain.Employee
	Enrollment domain.FaceEnrollment
	Similarity float64
}

type MatchResult struct {
	Match          *Candidate
	Reason         MatchReason
	BestSimilarity float64
	Compared       int
	Skipped        int
}

// Matcher performs an exact linear scan over a gallery snapshot.
type Matcher struct {
	version string
	logger  *slog.Logger
}

// NewMatcher returns a matcher for embeddings produced by the model tagged
// version.
func NewMatcher(version string, logger *slog.Logger) *Matcher {
	return &Matcher{
		version: version,
		logger:  logger.With("component", "matcher"),
	}
}

// Compatible reports why an enrollment cannot be compared with a probe of
// the given dimension, or nil when it can. A tagged enrollment must carry
// the current model version; untagged enrollments are judged by dimension
// alone.
func (m *Matcher) Compatible(e domain.FaceEnrollment, dimension int) error {
	if e.ModelVersion != "" && m.version != "" && e.ModelVersion != m.version {
		return fmt.Errorf("model version %q, want %q", e.ModelVersion, m.version)
	}
	if len(e.Embedding) != dimension {
		return fmt.Errorf("dimension %d, want %d", len(e.Embedding), dimension)
	}
	if e.Dimension != 0 && e.Dimension != len(e.Embedding) {
		return fmt.Errorf("declared dimension %d but vector has %d", e.Dimension, len(e.Embedding))
	}
	return nil
}

// FindBestMatch scores every compatible entry and accepts the best one when
// its similarity is >= threshold. Ties keep the entry seen first.
func (m *Matcher) FindBestMatch(probe []float64, gallery []domain.GalleryEntry, threshold float64) MatchResult {
	if len(gallery) == 0 {
		return MatchResult{Reason: MatchEmptyGallery}
	}

	dimension := len(probe)
	result := MatchResult{}
	var best *Candidate

	for i := range gallery {
		entry := &gallery[i]

		if err := m.Compatible(entry.Enrollment, dimension); err != nil {
			result.Skipped++
			m.logger.Warn("skipping incompatible enrollment",
				slog.String("employee_id", entry.Employee.ID.String()),
				slog.String("reason", err.Error()),
			)
			continue
		}

		result.Compared++
		sim := CosineSimilarity(probe, entry.Enrollment.Embedding)
		if best == nil || sim > best.Similarity {
			best = &Candidate{
				Employee:   entry.Employee,
				Enrollment: entry.Enrollment,
				Similarity: sim,
			}
		}
	}

	if best == nil {
		result.Reason = MatchIncompatibleGallery
		return result
	}

	result.BestSimilarity = best.Similarity
	// A NaN threshold accepts nothing.
	if !(best.Similarity >= threshold) {
		result.Reason = MatchBelowThreshold
		return result
	}

	result.Match = best
	result.Reason = MatchFound
	return result
}
