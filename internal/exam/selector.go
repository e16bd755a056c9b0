package exam

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/certlane/certlane-exam/internal/errs"
	"github.com/certlane/certlane-exam/internal/question"
)

// Quota splits a total across difficulty tiers: 30% easy, 20% hard (floored),
// remainder to moderate so the parts always sum to the total.
type Quota struct {
	Easy     int
	Moderate int
	Hard     int
}

func QuotaFor(total int) Quota {
	e := total * 30 / 100
	h := total * 20 / 100
	return Quota{Easy: e, Moderate: total - e - h, Hard: h}
}

// Selector draws a fixed-size, difficulty-weighted, duplicate-free question
// set from the pool.
type Selector struct {
	pool question.Pool

	// rand.Rand is not safe for concurrent use; Select runs from parallel
	// request handlers against one shared Selector.
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSelector(pool question.Pool) *Selector {
	return &Selector{pool: pool, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewSelectorWithSeed pins the permutation for tests.
func NewSelectorWithSeed(pool question.Pool, seed int64) *Selector {
	return &Selector{pool: pool, rng: rand.New(rand.NewSource(seed))}
}

// Select returns exactly total unique questions whenever the pool allows.
// Each tier contributes up to its quota; shortfalls are backfilled from the
// remaining pool. A result still short of total after backfill means the
// global pool is too small, which rejects attempt creation.
func (s *Selector) Select(ctx context.Context, total int) ([]question.Question, error) {
	if total <= 0 {
		return nil, errs.Validation("total must be positive")
	}
	q := QuotaFor(total)

	tiers := []struct {
		d     question.Difficulty
		quota int
	}{
		{question.Easy, q.Easy},
		{question.Moderate, q.Moderate},
		{question.Hard, q.Hard},
	}

	picked := make([]question.Question, 0, total)
	seen := make(map[string]bool, total)
	var leftover []question.Question

	for _, t := range tiers {
		pool, err := s.pool.FetchByDifficulty(ctx, t.d)
		if err != nil {
			return nil, err
		}
		drawn := s.permute(pool)
		n := t.quota
		if n > len(drawn) {
			n = len(drawn)
		}
		for _, it := range drawn[:n] {
			seen[it.ID] = true
		}
		picked = append(picked, drawn[:n]...)
		leftover = append(leftover, drawn[n:]...)
	}

	// Backfill from the remaining pool, all tiers mixed, same technique.
	if len(picked) < total {
		for _, it := range s.permute(leftover) {
			if len(picked) == total {
				break
			}
			if seen[it.ID] {
				continue
			}
			seen[it.ID] = true
			picked = append(picked, it)
		}
	}

	if len(picked) < total {
		return nil, errs.Conflict("question pool has %d active questions, need %d", len(picked), total)
	}

	// Final shuffle so tier blocks are not visible in presentation order.
	return s.permute(picked), nil
}

// permute returns a uniform random permutation by attaching an independent
// random key to each element and sorting by key. The input is not modified.
func (s *Selector) permute(in []question.Question) []question.Question {
	type keyed struct {
		k float64
		q question.Question
	}
	ks := make([]keyed, len(in))
	s.mu.Lock()
	for i, q := range in {
		ks[i] = keyed{k: s.rng.Float64(), q: q}
	}
	s.mu.Unlock()
	sort.Slice(ks, func(i, j int) bool { return ks[i].k < ks[j].k })
	out := make([]question.Question, len(in))
	for i, e := range ks {
		out[i] = e.q
	}
	return out
}
