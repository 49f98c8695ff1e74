package catalog

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Versioned is implemented by readers that know the version of the
// catalog they serve.
type Versioned interface {
	CatalogVersion(ctx context.Context) (string, error)
}

// maxConcurrentReads bounds the per-row reads issued by Load.
const maxConcurrentReads = 8

// Load reads every table of r and builds an in-memory Catalog. Top-level
// lists are fetched in parallel, then per-question and per-theorem links.
func Load(ctx context.Context, r Reader) (*Catalog, error) {
	var data Data

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		cats, err := r.ListCategories(egCtx)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		data.Categories = cats
		return nil
	})
	eg.Go(func() error {
		ths, err := r.ListActiveTheorems(egCtx)
		if err != nil {
			return fmt.Errorf("list theorems: %w", err)
		}
		data.Theorems = ths
		return nil
	})
	eg.Go(func() error {
		qs, err := r.ListActiveQuestions(egCtx)
		if err != nil {
			return fmt.Errorf("list questions: %w", err)
		}
		data.Questions = qs
		return nil
	})
	eg.Go(func() error {
		opts, err := r.ListAnswerOptions(egCtx)
		if err != nil {
			return fmt.Errorf("list answer options: %w", err)
		}
		data.AnswerOptions = opts
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	eg, egCtx = errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentReads)

	for _, q := range data.Questions {
		eg.Go(func() error {
			ths, err := r.ListTheoremsForQuestion(egCtx, q.ID)
			if err != nil {
				return fmt.Errorf("list theorems for question %d: %w", q.ID, err)
			}
			ms, err := r.ListAnswerMultipliers(egCtx, q.ID)
			if err != nil {
				return fmt.Errorf("list multipliers for question %d: %w", q.ID, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, t := range ths {
				data.QuestionLinks = append(data.QuestionLinks, QuestionLink{TheoremID: t.ID, QuestionID: q.ID})
			}
			data.Multipliers = append(data.Multipliers, ms...)
			return nil
		})
	}
	for _, t := range data.Theorems {
		eg.Go(func() error {
			links, err := r.ListCategoriesForTheorem(egCtx, t.ID)
			if err != nil {
				return fmt.Errorf("list categories for theorem %d: %w", t.ID, err)
			}
			mu.Lock()
			data.CategoryLinks = append(data.CategoryLinks, links...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if v, ok := r.(Versioned); ok {
		ver, err := v.CatalogVersion(ctx)
		if err != nil {
			return nil, fmt.Errorf("catalog version: %w", err)
		}
		data.Version = ver
	}

	return New(data)
}

// Cache holds a loaded Catalog and reloads it from the underlying reader
// after Invalidate. It implements Reader so the engine can read through it.
type Cache struct {
	source Reader

	mu      sync.RWMutex
	current *Catalog
}

var _ Reader = (*Cache)(nil)

// NewCache creates a cache over source. Nothing is loaded until first use.
func NewCache(source Reader) *Cache {
	return &Cache{source: source}
}

// Get returns the cached catalog, loading it if needed.
func (c *Cache) Get(ctx context.Context) (*Catalog, error) {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()
	if cur != nil {
		return cur, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return c.current, nil
	}
	loaded, err := Load(ctx, c.source)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	c.current = loaded
	return loaded, nil
}

// Invalidate drops the cached catalog; the next read reloads it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

func (c *Cache) ListCategories(ctx context.Context) ([]Category, error) {
	cat, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return cat.ListCategories(ctx)
}

func (c *Cache) ListActiveTheorems(ctx context.Context) ([]Theorem, error) {
	cat, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return cat.ListActiveTheorems(ctx)
}

func (c *Cache) ListActiveQuestions(ctx context.Context) ([]Question, error) {
	cat, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return cat.ListActiveQuestions(ctx)
}

func (c *Cache) ListTheoremsForQuestion(ctx context.Context, questionID int) ([]Theorem, error) {
	cat, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return cat.ListTheoremsForQuestion(ctx, questionID)
}

func (c *Cache) ListCategoriesForTheorem(ctx context.Context, theoremID int) ([]CategoryLink, error) {
	cat, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return cat.ListCategoriesForTheorem(ctx, theoremID)
}

func (c *Cache) ListAnswerMultipliers(ctx context.Context, questionID int) ([]AnswerMultiplier, error) {
	cat, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return cat.ListAnswerMultipliers(ctx, questionID)
}

func (c *Cache) ListAnswerOptions(ctx context.Context) ([]AnswerOption, error) {
	cat, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return cat.ListAnswerOptions(ctx)
}

func (c *Cache) CatalogVersion(ctx context.Context) (string, error) {
	cat, err := c.Get(ctx)
	if err != nil {
		return "", err
	}
	return cat.Version(), nil
}
