package engine

import (
	"context"

	"github.com/septivank/city-signals/internal/auth"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/errs"
	"github.com/septivank/city-signals/internal/metrics"
	"github.com/septivank/city-signals/internal/store"
	"go.uber.org/zap"
)

// ContainerDefaults are the attributes of auto-provisioned containers
type ContainerDefaults struct {
	Status         db.ContainerStatus
	WasteType      db.WasteType
	CapacitySize   db.CapacitySize
	CapacityVolume float64
	// NotePrefix is followed by the referenced object's name or DefaultName
	NotePrefix  string
	DefaultName string
}

// Config tunes the submission rules
type Config struct {
	MaxReportDistanceMeters float64
	PublicNumberPrefix      string
	Defaults                ContainerDefaults
	Policies                Policies
}

// DefaultConfig returns the production rule set
func DefaultConfig() Config {
	return Config{
		MaxReportDistanceMeters: 30,
		PublicNumberPrefix:      "SOF-WASTE-",
		Defaults: ContainerDefaults{
			Status:         db.ContainerActive,
			WasteType:      db.WasteGeneral,
			CapacitySize:   db.CapacityStandard,
			CapacityVolume: 3,
			NotePrefix:     "Auto-created from signal. ",
			DefaultName:    "New container",
		},
		Policies: DefaultPolicies,
	}
}

// Prepared reports what the pre-commit steps changed
type Prepared struct {
	// Provisioned is the container created for the draft, if any
	Provisioned *db.WasteContainer
}

// step is one pre-commit rule with its declared infrastructure-error policy
type step struct {
	name    string
	policy  Policy
	applies func(draft *db.Signal, actor auth.Actor) bool
	run     func(ctx context.Context, draft *db.Signal, prep *Prepared) error
	// abort converts an infrastructure failure into the surfaced error
	abort func(err error) error
}

// Engine runs the signal submission rules against a store
type Engine struct {
	store  store.Store
	cfg    Config
	logger *zap.Logger
	steps  []step
}

// New creates an engine. Zero config values fall back to DefaultConfig.
func New(st store.Store, cfg Config, logger *zap.Logger) *Engine {
	def := DefaultConfig()
	if cfg.MaxReportDistanceMeters <= 0 {
		cfg.MaxReportDistanceMeters = def.MaxReportDistanceMeters
	}
	if cfg.PublicNumberPrefix == "" {
		cfg.PublicNumberPrefix = def.PublicNumberPrefix
	}
	if cfg.Defaults == (ContainerDefaults{}) {
		cfg.Defaults = def.Defaults
	}
	cfg.Policies = cfg.Policies.resolve(def.Policies)

	e := &Engine{store: st, cfg: cfg, logger: logger}
	e.steps = []step{
		{
			name:    "proximity",
			policy:  cfg.Policies.Proximity,
			applies: proximityApplies,
			run:     e.checkProximity,
			abort:   infraAbort("failed to check reporter proximity"),
		},
		{
			name:    "provision",
			policy:  cfg.Policies.Provision,
			applies: provisionApplies,
			run:     e.provisionContainer,
			abort:   func(err error) error { return errs.Provisioning(err) },
		},
		{
			name:    "dedup",
			policy:  cfg.Policies.Dedup,
			applies: dedupApplies,
			run:     e.checkDuplicate,
			abort:   infraAbort("failed to check for duplicate signals"),
		},
	}
	return e
}

// Config returns the effective configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// BeforeCreate runs the pre-commit steps in order. It may mutate draft
// (back-filling the container reference) and returns a request error when
// the submission must be rejected.
func (e *Engine) BeforeCreate(ctx context.Context, draft *db.Signal, actor auth.Actor) (*Prepared, error) {
	prep := &Prepared{}
	for _, s := range e.steps {
		if !s.applies(draft, actor) {
			continue
		}
		if err := e.runStep(ctx, s, draft, prep); err != nil {
			return prep, err
		}
	}
	return prep, nil
}

func (e *Engine) runStep(ctx context.Context, s step, draft *db.Signal, prep *Prepared) error {
	err := s.run(ctx, draft, prep)
	if err == nil {
		return nil
	}

	if errs.IsRequestError(err) {
		return err
	}

	if s.policy == PassThrough {
		e.logger.Error("submission step failed, continuing",
			zap.String("step", s.name),
			zap.Error(err),
		)
		metrics.StepFailOpenTotal.WithLabelValues(s.name).Inc()
		return nil
	}

	e.logger.Error("submission step failed, aborting",
		zap.String("step", s.name),
		zap.Error(err),
	)
	return s.abort(err)
}

func infraAbort(message string) func(error) error {
	return func(err error) error { return errs.Infrastructure(message, err) }
}

func isWasteReport(s *db.Signal) bool {
	return s.Category == db.CategoryWasteContainer
}
