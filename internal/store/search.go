package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sous-chef/server/internal/recipe"
	logx "github.com/sous-chef/server/pkg/logger"
)

const (
	DefaultTopK          = 5
	DefaultSimilarTopK   = 3
	DefaultMinSimilarity = 0.3

	warmupBatchSize = 16
)

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is implemented by stores that can rank recipes by embedding
// distance themselves.
type VectorIndex interface {
	SetEmbedding(ctx context.Context, id string, vec []float32) error
	NearestByEmbedding(ctx context.Context, vec []float32, limit int, excludeID string) ([]Result, error)
}

type Result struct {
	Recipe *recipe.Recipe
	Score  float64
}

// Searcher ranks recipes by embedding similarity when an Embedder is
// available and by keyword overlap otherwise.
type Searcher struct {
	repo          Repository
	embedder      Embedder
	minSimilarity float64

	mu    sync.RWMutex
	cache map[string][]float32
}

// NewSearcher builds a searcher; embedder may be nil.
func NewSearcher(repo Repository, embedder Embedder) *Searcher {
	return &Searcher{
		repo:          repo,
		embedder:      embedder,
		minSimilarity: DefaultMinSimilarity,
		cache:         make(map[string][]float32),
	}
}

func (s *Searcher) Semantic() bool { return s.embedder != nil }

// Search returns up to topK recipes matching query, best first.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	if vi, ok := s.repo.(VectorIndex); ok && s.embedder != nil {
		res, err := s.searchIndex(ctx, vi, query, topK, "")
		if err == nil && len(res) > 0 {
			return res, nil
		}
		if err != nil && !errors.Is(err, ErrVectorUnsupported) {
			logx.Warn().Err(err).Msg("vector index search failed")
		}
	}

	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	return s.rank(ctx, query, all, topK), nil
}

// FindSimilar ranks the rest of the collection against r.
func (s *Searcher) FindSimilar(ctx context.Context, r *recipe.Recipe, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultSimilarTopK
	}
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	others := make([]*recipe.Recipe, 0, len(all))
	for _, o := range all {
		if o.ID != r.ID {
			others = append(others, o)
		}
	}
	return s.rank(ctx, r.SearchText(), others, topK), nil
}

// Index embeds r and hands the vector to the store when it keeps an index.
func (s *Searcher) Index(ctx context.Context, r *recipe.Recipe) error {
	if s.embedder == nil {
		return nil
	}
	vecs, err := s.embedTexts(ctx, []string{r.SearchText()})
	if err != nil {
		return err
	}
	if vi, ok := s.repo.(VectorIndex); ok {
		if err := vi.SetEmbedding(ctx, r.ID, vecs[0]); err != nil && !errors.Is(err, ErrVectorUnsupported) {
			return err
		}
	}
	return nil
}

// Warmup embeds the whole collection in concurrent batches.
func (s *Searcher) Warmup(ctx context.Context, concurrency int) error {
	if s.embedder == nil {
		return nil
	}
	all, err := s.repo.All(ctx)
	if err != nil {
		return err
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	vi, indexed := s.repo.(VectorIndex)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for start := 0; start < len(all); start += warmupBatchSize {
		batch := all[start:min(start+warmupBatchSize, len(all))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, r := range batch {
				texts[i] = r.SearchText()
			}
			vecs, err := s.embedTexts(gctx, texts)
			if err != nil {
				return err
			}
			if !indexed {
				return nil
			}
			for i, r := range batch {
				if err := vi.SetEmbedding(gctx, r.ID, vecs[i]); err != nil {
					if errors.Is(err, ErrVectorUnsupported) {
						return nil
					}
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("warm up embeddings: %w", err)
	}
	logx.Info().Int("recipes", len(all)).Msg("embeddings warmed up")
	return nil
}

func (s *Searcher) searchIndex(ctx context.Context, vi VectorIndex, query string, topK int, exclude string) ([]Result, error) {
	vecs, err := s.embedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	res, err := vi.NearestByEmbedding(ctx, vecs[0], topK, exclude)
	if err != nil {
		return nil, err
	}
	out := res[:0]
	for _, r := range res {
		if r.Score >= s.minSimilarity {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Searcher) rank(ctx context.Context, query string, recipes []*recipe.Recipe, topK int) []Result {
	if len(recipes) == 0 {
		return nil
	}
	if s.embedder != nil {
		res, err := s.semantic(ctx, query, recipes, topK)
		if err == nil {
			return res
		}
		logx.Warn().Err(err).Msg("semantic search failed, using keyword search")
	}
	return KeywordSearch(query, recipes, topK)
}

func (s *Searcher) semantic(ctx context.Context, query string, recipes []*recipe.Recipe, topK int) ([]Result, error) {
	texts := make([]string, 0, len(recipes)+1)
	texts = append(texts, query)
	for _, r := range recipes {
		texts = append(texts, r.SearchText())
	}
	vecs, err := s.embedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}

	qv := vecs[0]
	var out []Result
	for i, r := range recipes {
		score := CosineSimilarity(qv, vecs[i+1])
		if score >= s.minSimilarity {
			out = append(out, Result{Recipe: r, Score: score})
		}
	}
	sortResults(out)
	return truncate(out, topK), nil
}

// embedTexts serves cached vectors and embeds the rest in one call.
func (s *Searcher) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	s.mu.RLock()
	for i, t := range texts {
		if v, ok := s.cache[t]; ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	s.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := s.embedder.Embed(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(vecs), len(missing))
	}

	s.mu.Lock()
	for j, v := range vecs {
		s.cache[missing[j]] = v
		out[missingIdx[j]] = v
	}
	s.mu.Unlock()
	return out, nil
}

// KeywordSearch scores by the share of query words found in the recipe text.
func KeywordSearch(query string, recipes []*recipe.Recipe, topK int) []Result {
	queryWords := wordSet(query)
	if len(queryWords) == 0 {
		return nil
	}

	var out []Result
	for _, r := range recipes {
		words := wordSet(r.SearchText())
		matches := 0
		for w := range queryWords {
			if _, ok := words[w]; ok {
				matches++
			}
		}
		if matches > 0 {
			out = append(out, Result{Recipe: r, Score: float64(matches) / float64(len(queryWords))})
		}
	}
	sortResults(out)
	return truncate(out, topK)
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func sortResults(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Score > rs[j].Score })
}

func truncate(rs []Result, k int) []Result {
	if k > 0 && len(rs) > k {
		return rs[:k]
	}
	return rs
}

// CosineSimilarity is 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
