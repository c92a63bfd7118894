package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/geo"
)

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when a write violates a unique constraint
	ErrConflict = errors.New("unique constraint violation")
)

// Pagination selects a page of results. Page is 1-based.
type Pagination struct {
	Page  int
	Limit int
}

// Normalize fills in defaults for unset values
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	return p
}

// Offset returns the number of documents to skip
func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// Page is a paginated result set
type Page[T any] struct {
	Docs        []T  `json:"docs"`
	TotalDocs   int  `json:"totalDocs"`
	Limit       int  `json:"limit"`
	Page        int  `json:"page"`
	TotalPages  int  `json:"totalPages"`
	HasPrevPage bool `json:"hasPrevPage"`
	HasNextPage bool `json:"hasNextPage"`
	PrevPage    *int `json:"prevPage"`
	NextPage    *int `json:"nextPage"`
}

// NewPage builds the page metadata for docs taken from totalDocs matches
func NewPage[T any](docs []T, totalDocs int, p Pagination) Page[T] {
	p = p.Normalize()
	if docs == nil {
		docs = []T{}
	}

	totalPages := (totalDocs + p.Limit - 1) / p.Limit
	if totalPages < 1 {
		totalPages = 1
	}

	page := Page[T]{
		Docs:        docs,
		TotalDocs:   totalDocs,
		Limit:       p.Limit,
		Page:        p.Page,
		TotalPages:  totalPages,
		HasPrevPage: p.Page > 1,
		HasNextPage: p.Page < totalPages,
	}
	if page.HasPrevPage {
		prev := p.Page - 1
		page.PrevPage = &prev
	}
	if page.HasNextPage {
		next := p.Page + 1
		page.NextPage = &next
	}
	return page
}

// ContainerFilter selects containers; zero fields do not filter
type ContainerFilter struct {
	PublicNumber string
	LegacyID     string
	Within       *geo.Bounds
}

// SignalFilter selects signals; zero fields do not filter
type SignalFilter struct {
	ReporterUniqueID string
	ReferenceID      string
	Category         db.SignalCategory
	StatusNotIn      []db.SignalStatus
}

// ContainerSignalCount is a container with the number of open
// waste-container signals that reference it
type ContainerSignalCount struct {
	db.WasteContainer
	OpenSignals int `json:"openSignals"`
}

// Store is the document store the engine works against.
// Results are ordered newest first.
type Store interface {
	FindContainers(ctx context.Context, filter ContainerFilter, p Pagination) (Page[db.WasteContainer], error)
	FindContainerByID(ctx context.Context, id uuid.UUID) (*db.WasteContainer, error)
	CreateContainer(ctx context.Context, container *db.WasteContainer) error
	UpdateContainer(ctx context.Context, id uuid.UUID, patch db.ContainerPatch) (*db.WasteContainer, error)

	// FindContainersWithOpenSignals lists containers referenced by at least
	// one open waste-container signal, most reported first.
	FindContainersWithOpenSignals(ctx context.Context, p Pagination) (Page[ContainerSignalCount], error)

	FindSignals(ctx context.Context, filter SignalFilter, p Pagination) (Page[db.Signal], error)
	FindSignalByID(ctx context.Context, id uuid.UUID) (*db.Signal, error)
	CreateSignal(ctx context.Context, signal *db.Signal) error
	UpdateSignal(ctx context.Context, id uuid.UUID, patch db.SignalPatch) (*db.Signal, error)
}

// FindContainerByPublicNumber returns the container with the given public
// number, or ErrNotFound.
func FindContainerByPublicNumber(ctx context.Context, s Store, publicNumber string) (*db.WasteContainer, error) {
	page, err := s.FindContainers(ctx, ContainerFilter{PublicNumber: publicNumber}, Pagination{Page: 1, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Docs) == 0 {
		return nil, ErrNotFound
	}
	return &page.Docs[0], nil
}

// IsOpenWasteReport reports whether s counts against the one-open-report
// per reporter and container rule.
func IsOpenWasteReport(s *db.Signal) bool {
	return s.Category == db.CategoryWasteContainer &&
		s.ReporterUniqueID != "" &&
		s.ReferenceID() != "" &&
		!s.Status.IsTerminal()
}
