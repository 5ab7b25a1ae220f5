package face

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

func entry(name string, version string, embedding []float64) domain.GalleryEntry {
	id := uuid.New()
	return domain.GalleryEntry{
		Employee: domain.Employee{ID: id, Name: name, IsActive: true},
		Enrollment: domain.FaceEnrollment{
			ID:           uuid.New(),
			EmployeeID:   id,
			Embedding:    embedding,
			Dimension:    len(embedding),
			ModelVersion: version,
		},
	}
}

func TestMatcher_FindBestMatch(t *testing.T) {
	m := NewMatcher("v1", testLogger())

	alice := entry("alice", "v1", Normalize([]float64{1, 0, 0}))
	bob := entry("bob", "v1", Normalize([]float64{0, 1, 0}))
	carol := entry("carol", "v1", Normalize([]float64{1, 1, 0}))

	tests := []struct {
		name      string
		probe     []float64
		gallery   []domain.GalleryEntry
		threshold float64
		want      string
		reason    MatchReason
	}{
		{"empty gallery", []float64{1, 0, 0}, nil, LoginThreshold, "", MatchEmptyGallery},
		{"exact match", []float64{1, 0, 0}, []domain.GalleryEntry{alice, bob}, LoginThreshold, "alice", MatchFound},
		{"best of several", Normalize([]float64{0.9, 1, 0}), []domain.GalleryEntry{alice, bob, carol}, LoginThreshold, "carol", MatchFound},
		{"below threshold", Normalize([]float64{0, 0, 1}), []domain.GalleryEntry{alice, bob}, LoginThreshold, "", MatchBelowThreshold},
		{"admin threshold is stricter", Normalize([]float64{1, 0.7, 0}), []domain.GalleryEntry{alice, bob}, AdminThreshold, "", MatchBelowThreshold},
		{"login threshold accepts same probe", Normalize([]float64{1, 0.7, 0}), []domain.GalleryEntry{alice, bob}, LoginThreshold, "alice", MatchFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.FindBestMatch(tt.probe, tt.gallery, tt.threshold)
			assert.Equal(t, tt.reason, res.Reason)
			if tt.want == "" {
				assert.Nil(t, res.Match)
				return
			}
			require.NotNil(t, res.Match)
			assert.Equal(t, tt.want, res.Match.Employee.Name)
			assert.GreaterOrEqual(t, res.Match.Similarity, tt.threshold)
		})
	}
}

func TestMatcher_ThresholdIsInclusive(t *testing.T) {
	m := NewMatcher("v1", testLogger())
	e := entry("alice", "v1", []float64{1, 0})
	probe := []float64{1, 0}

	res := m.FindBestMatch(probe, []domain.GalleryEntry{e}, CosineSimilarity(probe, e.Enrollment.Embedding))
	assert.Equal(t, MatchFound, res.Reason)
}

func TestMatcher_NaNThresholdMatchesNothing(t *testing.T) {
	m := NewMatcher("v1", testLogger())
	stranger := entry("stranger", "v1", []float64{0, 1})
	self := entry("self", "v1", []float64{1, 0})

	res := m.FindBestMatch([]float64{1, 0}, []domain.GalleryEntry{stranger}, math.NaN())
	assert.Nil(t, res.Match)
	assert.Equal(t, MatchBelowThreshold, res.Reason)

	res = m.FindBestMatch([]float64{1, 0}, []domain.GalleryEntry{self}, math.NaN())
	assert.Nil(t, res.Match)
}

func TestMatcher_TiesKeepFirstSeen(t *testing.T) {
	m := NewMatcher("v1", testLogger())
	first := entry("first", "v1", []float64{1, 0})
	second := entry("second", "v1", []float64{1, 0})

	res := m.FindBestMatch([]float64{1, 0}, []domain.GalleryEntry{first, second}, LoginThreshold)
	require.NotNil(t, res.Match)
	assert.Equal(t, "first", res.Match.Employee.Name)

	res = m.FindBestMatch([]float64{1, 0}, []domain.GalleryEntry{second, first}, LoginThreshold)
	require.NotNil(t, res.Match)
	assert.Equal(t, "second", res.Match.Employee.Name)
}

func TestMatcher_SkipsIncompatibleEnrollments(t *testing.T) {
	m := NewMatcher("v1", testLogger())

	shortVec := entry("short", "v1", []float64{1, 0})
	otherModel := entry("other-model", "v2", []float64{1, 0, 0})
	untagged := entry("legacy", "", []float64{1, 0, 0})

	res := m.FindBestMatch([]float64{1, 0, 0}, []domain.GalleryEntry{shortVec, otherModel, untagged}, LoginThreshold)
	require.NotNil(t, res.Match)
	assert.Equal(t, "legacy", res.Match.Employee.Name, "untagged enrollment is judged by dimension alone")
	assert.Equal(t, 1, res.Compared)
	assert.Equal(t, 2, res.Skipped)
}

func TestMatcher_OnlyIncompatible(t *testing.T) {
	m := NewMatcher("v1", testLogger())
	res := m.FindBestMatch([]float64{1, 0, 0}, []domain.GalleryEntry{entry("a", "v1", []float64{1, 0})}, LoginThreshold)

	assert.Equal(t, MatchIncompatibleGallery, res.Reason)
	assert.Nil(t, res.Match)
	assert.Equal(t, 0, res.Compared)
	assert.Equal(t, 1, res.Skipped)
}

func TestMatcher_Compatible(t *testing.T) {
	m := NewMatcher("v1", testLogger())

	assert.NoError(t, m.Compatible(domain.FaceEnrollment{Embedding: []float64{1, 2}, Dimension: 2, ModelVersion: "v1"}, 2))
	assert.NoError(t, m.Compatible(domain.FaceEnrollment{Embedding: []float64{1, 2}}, 2))
	assert.Error(t, m.Compatible(domain.FaceEnrollment{Embedding: []float64{1, 2}, ModelVersion: "v0"}, 2))
	assert.Error(t, m.Compatible(domain.FaceEnrollment{Embedding: []float64{1, 2}, ModelVersion: "v1"}, 3))
	assert.Error(t, m.Compatible(domain.FaceEnrollment{Embedding: []float64{1, 2}, Dimension: 4}, 2))

	untaggedMatcher := NewMatcher("", testLogger())
	assert.NoError(t, untaggedMatcher.Compatible(domain.FaceEnrollment{Embedding: []float64{1}, ModelVersion: "anything"}, 1))
}

// Raising the threshold can only turn a match into a miss, never the reverse.
func TestMatcher_ThresholdMonotonic(t *testing.T) {
	m := NewMatcher("v1", testLogger())
	r := rand.New(rand.NewSource(3))

	gallery := make([]domain.GalleryEntry, 20)
	for i := range gallery {
		gallery[i] = entry("e", "v1", Normalize(randomVector(r, 8)))
	}

	for i := 0; i < 50; i++ {
		probe := Normalize(randomVector(r, 8))
		low := m.FindBestMatch(probe, gallery, 0.3)
		high := m.FindBestMatch(probe, gallery, 0.8)

		if high.Match != nil {
			require.NotNil(t, low.Match)
			assert.Equal(t, low.Match.Employee.ID, high.Match.Employee.ID)
		}
		assert.Equal(t, low.BestSimilarity, high.BestSimilarity)
	}
}

func stubExtractor(version string, out []float64) *Extractor {
	model := &stubModel{out: out}
	return NewExtractor(func(context.Context) (provider.EmbeddingModel, error) {
		return model, nil
	}, version, len(out), testLogger())
}

func TestEnrollThenMatch_ModelUpgrade(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	raw := randomVector(r, 1000)

	v1 := stubExtractor("v1", raw)
	enrolled, err := v1.Extract(context.Background(), testFrame())
	require.NoError(t, err)

	gallery := []domain.GalleryEntry{entry("dana", v1.ModelVersion(), enrolled)}

	probe, err := v1.Extract(context.Background(), testFrame())
	require.NoError(t, err)

	res := NewMatcher(v1.ModelVersion(), testLogger()).FindBestMatch(probe, gallery, LoginThreshold)
	require.NotNil(t, res.Match)
	assert.InDelta(t, 1.0, res.Match.Similarity, 1e-9)

	// Same vectors, new model tag: the old enrollment is no longer eligible.
	v2 := stubExtractor("v2", raw)
	probe, err = v2.Extract(context.Background(), testFrame())
	require.NoError(t, err)

	res = NewMatcher(v2.ModelVersion(), testLogger()).FindBestMatch(probe, gallery, LoginThreshold)
	assert.Nil(t, res.Match)
	assert.Equal(t, MatchIncompatibleGallery, res.Reason)
}
