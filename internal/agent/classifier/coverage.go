package classifier

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sous-chef/server/internal/agent/model"
)

const coverageConcurrency = 4

type QueryResult struct {
	Query  string             `json:"query"`
	Result model.IntentResult `json:"result"`
}

// Coverage summarizes how a batch of queries was classified.
type Coverage struct {
	Total             int                  `json:"total_queries"`
	Distribution      map[model.Intent]int `json:"intent_distribution"`
	AverageConfidence float64              `json:"average_confidence"`
	Results           []QueryResult        `json:"detailed_results"`
}

// ValidateCoverage classifies every query with an empty context. Results keep
// the order of queries.
func (c *Classifier) ValidateCoverage(ctx context.Context, queries []string) (*Coverage, error) {
	results := make([]QueryResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(coverageConcurrency)
	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = QueryResult{Query: q, Result: c.Classify(gctx, q, Context{})}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cov := &Coverage{
		Total:        len(queries),
		Distribution: make(map[model.Intent]int),
		Results:      results,
	}
	var sum float64
	for _, r := range results {
		cov.Distribution[r.Result.Intent]++
		sum += r.Result.Confidence
	}
	if len(results) > 0 {
		cov.AverageConfidence = sum / float64(len(results))
	}
	return cov, nil
}
