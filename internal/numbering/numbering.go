// Package numbering allocates per-site RFQ numbers of the form GP-{site}-{seq}.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"quoteflow/internal/apperr"
	"quoteflow/internal/store"
)

const (
	Prefix = "GP"
	digits = 3
)

// Format renders the number for seq at site code.
func Format(siteCode string, seq int) string {
	return fmt.Sprintf("%s-%s-%0*d", Prefix, siteCode, digits, seq)
}

// Parse extracts the sequence from a number allocated for siteCode. Only
// all-digit suffixes of at least three characters parse.
func Parse(siteCode, number string) (int, bool) {
	rest, ok := strings.CutPrefix(number, sitePrefix(siteCode))
	if !ok || len(rest) < digits {
		return 0, false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func sitePrefix(siteCode string) string {
	return Prefix + "-" + siteCode + "-"
}

// CommitFunc persists the aggregate that receives number, inside tx.
type CommitFunc func(ctx context.Context, tx store.Tx, number string) error

// Generator hands out numbers. Allocations for one site are serialised by an
// in-process lock and by the store's site row lock; the UNIQUE constraint on
// rfqs.number catches anything that slips past both.
type Generator struct {
	store      store.Store
	log        zerolog.Logger
	locks      sync.Map // site code -> *sync.Mutex
	maxRetries uint64
	retryWait  time.Duration
}

type Option func(*Generator)

func WithRetry(maxRetries uint64, wait time.Duration) Option {
	return func(g *Generator) {
		g.maxRetries = maxRetries
		g.retryWait = wait
	}
}

func New(s store.Store, log zerolog.Logger, opts ...Option) *Generator {
	g := &Generator{
		store:      s,
		log:        log.With().Str("component", "numbering").Logger(),
		maxRetries: 5,
		retryWait:  10 * time.Millisecond,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Generator) siteLock(siteCode string) *sync.Mutex {
	mu, _ := g.locks.LoadOrStore(siteCode, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Allocate picks the next number for the site and runs commit with it in the
// same unit of work. An AllocationConflict from commit re-reads the existing
// numbers and tries again, up to the retry limit. Any other error stops.
func (g *Generator) Allocate(ctx context.Context, siteID, siteCode string, commit CommitFunc) (string, error) {
	mu := g.siteLock(siteCode)
	mu.Lock()
	defer mu.Unlock()

	var number string
	attempt := 0
	op := func() error {
		attempt++
		err := g.store.InTx(ctx, func(tx store.Tx) error {
			if err := tx.LockSite(ctx, siteID); err != nil {
				return err
			}
			next, err := g.next(ctx, tx, siteCode)
			if err != nil {
				return err
			}
			number = next
			return commit(ctx, tx, next)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, apperr.ErrAllocationConflict) {
			g.log.Warn().Str("site", siteCode).Str("number", number).Int("attempt", attempt).Msg("number already taken, retrying")
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(g.retryWait), g.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, apperr.ErrAllocationConflict) {
			return "", apperr.AllocationConflict("could not allocate a number for site %s after %d attempts", siteCode, attempt)
		}
		return "", err
	}
	return number, nil
}

func (g *Generator) next(ctx context.Context, tx store.Tx, siteCode string) (string, error) {
	existing, err := tx.RFQNumbers(ctx, sitePrefix(siteCode))
	if err != nil {
		return "", fmt.Errorf("read numbers for %s: %w", siteCode, err)
	}
	highest := 0
	for _, n := range existing {
		seq, ok := Parse(siteCode, n)
		if !ok {
			g.log.Warn().Str("site", siteCode).Str("number", n).Msg("skipping malformed rfq number")
			continue
		}
		if seq > highest {
			highest = seq
		}
	}
	return Format(siteCode, highest+1), nil
}
