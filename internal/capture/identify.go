package capture

import (
	"context"
	"encoding/json"
	"math"

	log "github.com/sirupsen/logrus"
)

// MatchStatus is the verdict of an identification.
type MatchStatus string

const (
	MatchSuccess MatchStatus = "success"
	MatchUnknown MatchStatus = "unknown"
	MatchFail    MatchStatus = "fail"
)

// FailReasonNoFace is reported when no single face could be captured.
const FailReasonNoFace = "no_face_or_multiple"

// MatchResult is the outcome of an identification. Distance is nil when
// there were no candidates to compare against.
type MatchResult struct {
	Status   MatchStatus
	User     string
	Distance *float64
	Reason   string
}

// MarshalJSON renders the three response shapes: success carries user and
// distance, unknown carries distance (possibly null), fail carries reason.
func (r MatchResult) MarshalJSON() ([]byte, error) {
	out := map[string]any{"status": r.Status}
	switch r.Status {
	case MatchSuccess:
		out["user"] = r.User
		out["distance"] = r.Distance
	case MatchUnknown:
		out["distance"] = r.Distance
	case MatchFail:
		out["reason"] = r.Reason
	}
	return json.Marshal(out)
}

// Matcher compares a query embedding against every registered embedding.
type Matcher struct {
	catalog Catalog
	store   FileStore
}

// NewMatcher creates a Matcher.
func NewMatcher(catalog Catalog, store FileStore) *Matcher {
	return &Matcher{catalog: catalog, store: store}
}

// Identify returns the closest registered identity if its distance is below
// tolerance. Candidates are scanned in catalog order and ties keep the first
// one seen. Unloadable candidates are skipped.
func (m *Matcher) Identify(ctx context.Context, query Embedding, tolerance float64) (MatchResult, error) {
	logger := log.WithFields(log.Fields{"component": "matcher"})

	refs, err := m.catalog.ListRegisteredEmbeddings(ctx)
	if err != nil {
		return MatchResult{}, storageError("list registered embeddings", err)
	}

	best := math.Inf(1)
	bestLabel := ""
	compared := 0

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return MatchResult{}, err
		}

		candidate, err := m.store.LoadEmbedding(ref.Path)
		if err != nil {
			logger.WithError(err).Warnf("Skipping embedding %s of %s", ref.Path, ref.Label)
			continue
		}
		if len(candidate) != len(query) {
			logger.Warnf("Skipping embedding %s of %s: dimension %d, expected %d", ref.Path, ref.Label, len(candidate), len(query))
			continue
		}

		compared++
		if d := query.Distance(candidate); d < best {
			best = d
			bestLabel = ref.Label
		}
	}

	if compared == 0 {
		return MatchResult{Status: MatchUnknown}, nil
	}

	distance := best
	if best < tolerance {
		logger.WithField("label", bestLabel).Debugf("Matched with distance %.4f", best)
		return MatchResult{Status: MatchSuccess, User: bestLabel, Distance: &distance}, nil
	}
	return MatchResult{Status: MatchUnknown, Distance: &distance}, nil
}
