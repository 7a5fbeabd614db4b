package memory

import "sort"

// Default ranking policy. The exact weights are tunable configuration,
// not a hard law; they are documented here and kept fixed at runtime
// so identical inputs always rank identically.
const (
	DefaultSimilarityWeight = 0.7
	DefaultImportanceWeight = 0.3
	DefaultMaxResults       = 15
)

// Ranker orders store candidates by combined similarity and
// importance. It is stateless and deterministic.
type Ranker struct {
	similarityWeight float64
	importanceWeight float64
}

// NewRanker creates a Ranker. Non-positive weights fall back to the
// defaults.
func NewRanker(similarityWeight, importanceWeight float64) *Ranker {
	if similarityWeight <= 0 {
		similarityWeight = DefaultSimilarityWeight
	}
	if importanceWeight <= 0 {
		importanceWeight = DefaultImportanceWeight
	}
	return &Ranker{
		similarityWeight: similarityWeight,
		importanceWeight: importanceWeight,
	}
}

// Score computes the combined ranking score for one candidate.
func (r *Ranker) Score(c SearchResult) float64 {
	return c.Similarity*r.similarityWeight + c.Record.Importance()*r.importanceWeight
}

// Rank returns at most maxResults records ordered by score descending,
// ties broken by most-recent creation first. Candidates are expected
// to be pre-filtered by the Store's similarity threshold. Duplicate
// record IDs are collapsed, keeping the higher-similarity occurrence.
//
// An empty or nil query yields an empty result rather than an error:
// memory-less response generation must still be possible.
func (r *Ranker) Rank(query []float32, candidates []SearchResult, maxResults int) []*Record {
	if len(query) == 0 {
		return nil
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	// Deduplicate by record ID.
	seen := make(map[string]SearchResult, len(candidates))
	for _, c := range candidates {
		if c.Record == nil {
			continue
		}
		if prev, ok := seen[c.Record.ID]; ok && prev.Similarity >= c.Similarity {
			continue
		}
		seen[c.Record.ID] = c
	}

	unique := make([]SearchResult, 0, len(seen))
	for _, c := range seen {
		unique = append(unique, c)
	}

	sort.Slice(unique, func(i, j int) bool {
		si, sj := r.Score(unique[i]), r.Score(unique[j])
		if si != sj {
			return si > sj
		}
		ti, tj := unique[i].Record.CreatedAt, unique[j].Record.CreatedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		// Total order even for identical score and timestamp.
		return unique[i].Record.ID < unique[j].Record.ID
	})

	if len(unique) > maxResults {
		unique = unique[:maxResults]
	}

	out := make([]*Record, len(unique))
	for i, c := range unique {
		out[i] = c.Record
	}
	return out
}
