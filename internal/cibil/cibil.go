// Package cibil simulates a credit bureau lookup keyed by applicant email.
// Scores are deterministic per email so repeated lookups agree, with a
// cache in front to avoid recomputation and keep seeded overrides warm.
package cibil

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/credora-labs/credora/internal/domain"
)

const (
	cacheKeyPrefix = "cibil:"
	cacheTTL       = 24 * time.Hour
)

// Service implements domain.CibilProvider.
type Service struct {
	cache domain.Cache

	mu        sync.RWMutex
	overrides map[string]int
}

// NewService creates a lookup service. The cache may be nil; lookups then
// recompute on every call, which is still deterministic.
func NewService(cache domain.Cache) *Service {
	return &Service{
		cache:     cache,
		overrides: make(map[string]int),
	}
}

// SetScore seeds a fixed score for an email, bypassing the hash banding.
// Used for known test identities and back-office corrections.
func (s *Service) SetScore(email string, score int) error {
	if score < 300 || score > 900 {
		return fmt.Errorf("cibil score %d out of range [300,900]", score)
	}

	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	s.overrides[email] = score
	s.mu.Unlock()
	return nil
}

// Score returns the credit score for an email. Overrides win; otherwise the
// score is derived from the email hash via a banded distribution skewed
// toward the 650-750 range.
func (s *Service) Score(ctx context.Context, email string) (int, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return 0, fmt.Errorf("email is required for cibil lookup")
	}

	s.mu.RLock()
	score, ok := s.overrides[email]
	s.mu.RUnlock()
	if ok {
		return score, nil
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKeyPrefix+email); err == nil && cached != nil {
			if v, err := strconv.Atoi(string(cached)); err == nil {
				return v, nil
			}
		}
	}

	score = derivedScore(email)

	if s.cache != nil {
		// Best effort; a cache write failure never fails the lookup.
		_ = s.cache.Set(ctx, cacheKeyPrefix+email, []byte(strconv.Itoa(score)), cacheTTL)
	}

	return score, nil
}

// Score bands with their cumulative percentile cutoffs.
var bands = []struct {
	cutoff   uint64
	min, max int
}{
	{10, 300, 550}, // poor
	{30, 550, 650}, // fair
	{70, 650, 750}, // good
	{95, 750, 850}, // very good
	{100, 850, 900},
}

func derivedScore(email string) int {
	h := fnv.New64a()
	h.Write([]byte(email))
	sum := h.Sum64()

	percentile := sum % 100
	for _, band := range bands {
		if percentile < band.cutoff {
			return band.min + int(sum%uint64(band.max-band.min+1))
		}
	}
	return 650 // unreachable
}
