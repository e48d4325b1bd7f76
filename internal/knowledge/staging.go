package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/seenimoa/tradelens/internal/store"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
)

// ItemStatus is the review state of a staged technique.
type ItemStatus string

const (
	StatusProposed ItemStatus = "proposed"
	StatusAccepted ItemStatus = "accepted"
	StatusRejected ItemStatus = "rejected"
)

// StagedItem is one proposed technique in a batch.
type StagedItem struct {
	Technique models.LearnedTechnique `json:"technique"`
	Selected  bool                    `json:"selected"`
	Status    ItemStatus              `json:"status"`
}

// Batch is a set of proposed techniques waiting for review.
type Batch struct {
	ID        int64        `json:"id"`
	CreatedAt time.Time    `json:"createdAt"`
	Items     []StagedItem `json:"items"`
	Closed    bool         `json:"closed"`
}

// Staging holds review batches in memory until the user accepts them.
type Staging struct {
	techniques *store.Collection[models.LearnedTechnique, *models.LearnedTechnique]

	mu      sync.Mutex
	nextID  int64
	batches map[int64]*Batch
}

// NewStaging creates a staging area committing into the technique collection.
func NewStaging(techniques *store.Collection[models.LearnedTechnique, *models.LearnedTechnique]) *Staging {
	return &Staging{techniques: techniques, batches: make(map[int64]*Batch)}
}

// NewBatch stages candidates with every item pre-selected.
func (s *Staging) NewBatch(cands []models.LearnedTechnique) Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	b := &Batch{ID: s.nextID, CreatedAt: time.Now().UTC()}
	for _, c := range cands {
		b.Items = append(b.Items, StagedItem{Technique: c, Selected: true, Status: StatusProposed})
	}
	s.batches[b.ID] = b
	return clone(b)
}

// Get returns a copy of a batch.
func (s *Staging) Get(id int64) (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return Batch{}, errNoBatch
	}
	return clone(b), nil
}

// Pending lists open batches, oldest first.
func (s *Staging) Pending() []Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Batch, 0, len(s.batches))
	for _, b := range s.batches {
		if !b.Closed {
			out = append(out, clone(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Toggle flips the selection of one proposed item.
func (s *Staging) Toggle(id int64, index int) (Batch, error) {
	return s.mutate(id, index, func(it *StagedItem) { it.Selected = !it.Selected })
}

// Edit replaces the definition of one proposed item. Provenance is kept.
// The edited values must pass the same completeness check as extraction.
func (s *Staging) Edit(id int64, index int, t models.LearnedTechnique) (Batch, error) {
	c := models.TechniqueCandidate{
		Name:        strings.TrimSpace(t.Name),
		Type:        models.TechniqueType(strings.TrimSpace(string(t.Type))),
		Description: strings.TrimSpace(t.Description),
		Parameters:  strings.TrimSpace(t.Parameters),
	}
	if !c.Complete() {
		return Batch{}, apperr.Newf(apperr.KindValidation, "A technique needs a name, a type and a description.")
	}
	return s.mutate(id, index, func(it *StagedItem) {
		it.Technique.Name = c.Name
		it.Technique.Type = c.Type
		it.Technique.Description = c.Description
		it.Technique.Parameters = c.Parameters
	})
}

// Reject marks one item rejected.
func (s *Staging) Reject(id int64, index int) (Batch, error) {
	return s.mutate(id, index, func(it *StagedItem) {
		it.Selected = false
		it.Status = StatusRejected
	})
}

func (s *Staging) mutate(id int64, index int, fn func(*StagedItem)) (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok || b.Closed {
		return Batch{}, errNoBatch
	}
	if index < 0 || index >= len(b.Items) {
		return Batch{}, apperr.Newf(apperr.KindValidation, "Item %d is not part of batch %d.", index, id)
	}
	if b.Items[index].Status != StatusProposed {
		return Batch{}, apperr.Newf(apperr.KindValidation, "Item %d was already reviewed.", index)
	}
	fn(&b.Items[index])
	return clone(b), nil
}

// Accept commits every selected proposed item to the technique collection
// and rejects the rest. The batch is closed even when nothing was selected.
func (s *Staging) Accept(ctx context.Context, id int64) ([]models.LearnedTechnique, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok || b.Closed {
		return nil, errNoBatch
	}

	var added []models.LearnedTechnique
	for i := range b.Items {
		it := &b.Items[i]
		if it.Status != StatusProposed {
			continue
		}
		if !it.Selected {
			it.Status = StatusRejected
			continue
		}
		t := it.Technique
		if _, err := s.techniques.Add(ctx, &t); err != nil {
			return added, err
		}
		it.Technique = t
		it.Status = StatusAccepted
		added = append(added, t)
	}
	b.Closed = true
	return added, nil
}

var errNoBatch = apperr.Newf(apperr.KindNotFound, "No such technique review batch.")

func clone(b *Batch) Batch {
	c := *b
	c.Items = append([]StagedItem(nil), b.Items...)
	return c
}
