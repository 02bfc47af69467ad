// Package service runs the container build: it resolves the compiler passes of
// all configured modules, checks the resulting plan and publishes it.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/bundlekit/passctl/internal/config"
	"github.com/bundlekit/passctl/internal/container"
	"github.com/bundlekit/passctl/internal/logging"
	"github.com/bundlekit/passctl/internal/metrics"
	"github.com/bundlekit/passctl/internal/policy"
	"github.com/bundlekit/passctl/internal/progress"
	"github.com/bundlekit/passctl/internal/s3"
	"github.com/bundlekit/passctl/pkg/builder"
)

type Service struct {
	config   *config.Root
	registry builder.Registry
	filter   []glob.Glob
	storages map[string]s3.ObjectStorage
	dryRun   bool
	progress bool
	log      *logging.Logger
	status   Status
}

func New() *Service {
	return &Service{
		log:      logging.NewNoOpLogger(),
		storages: make(map[string]s3.ObjectStorage),
	}
}

func (s *Service) WithConfig(cfg *config.Root) *Service {
	s.config = cfg
	return s
}

func (s *Service) WithLogger(log *logging.Logger) *Service {
	s.log = log
	return s
}

// WithRegistry overrides the driver registry derived from the configuration.
func (s *Service) WithRegistry(r builder.Registry) *Service {
	s.registry = r
	return s
}

// WithModuleFilter restricts the build to the modules whose name matches one of
// the glob patterns. No patterns means all modules.
func (s *Service) WithModuleFilter(patterns []string) (*Service, error) {
	s.filter = s.filter[:0]
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid module pattern %q: %w", p, err)
		}
		s.filter = append(s.filter, g)
	}
	return s, nil
}

// WithStorage replaces the object storage of the named output.
func (s *Service) WithStorage(output string, storage s3.ObjectStorage) *Service {
	s.storages[output] = storage
	return s
}

// WithDryRun skips publishing the plan.
func (s *Service) WithDryRun(dryRun bool) *Service {
	s.dryRun = dryRun
	return s
}

func (s *Service) WithProgress(enabled bool) *Service {
	s.progress = enabled
	return s
}

func (s *Service) Status() Status {
	return s.status
}

// Build resolves every enabled module in name order and registers its passes.
// Any failure aborts the build: nothing is published and no plan is returned.
func (s *Service) Build(ctx context.Context) (*container.Plan, error) {
	start := time.Now()
	metrics.BuildStarted(start)

	if s.config == nil {
		return nil, s.fail(BuildStateConfigInvalid, errors.New("no configuration"))
	}

	registry := s.registry
	if registry == nil {
		registry = s.config.Registry()
	}

	modules := s.modules()
	s.log.Infof("Resolving %d module(s).", len(modules))

	var bar *progress.Bar
	if s.progress {
		bar = progress.New(nil, len(modules), "resolving")
	}

	b := builder.New().WithRegistry(registry)
	c := container.New()

	for _, m := range modules {
		log := s.log.With("module", m.Name)

		d, err := m.Descriptor()
		if err != nil {
			return nil, s.fail(BuildStateConfigInvalid, fmt.Errorf("module %q: %w", m.Name, err))
		}

		specs, err := b.Resolve(d)
		if err != nil {
			metrics.ModuleResolveFailed.WithLabelValues(m.Name, errorType(err)).Inc()
			log.Errorf("failed to resolve module: %v", err)
			return nil, s.fail(BuildStateResolveFailed, fmt.Errorf("module %q: %w", m.Name, err))
		}

		metrics.ModuleResolveCount.Inc()

		if d.ModelNamespace != nil {
			for _, kind := range skipped(d.SupportedDrivers, specs) {
				metrics.DriverSkipped.WithLabelValues(kind.String()).Inc()
				log.Debugf("driver %v not installed, skipped", kind)
			}
		}

		if err := c.Register(m.Name, d.Prefix(), specs); err != nil {
			log.Errorf("failed to register compiler passes: %v", err)
			return nil, s.fail(BuildStateRegisterFailed, err)
		}

		for _, spec := range specs {
			metrics.CompilerPassRegistered.WithLabelValues(spec.Driver.String()).Inc()
		}

		log.Debugf("registered %d compiler pass(es)", len(specs))
		bar.Add(1)
	}

	bar.Finish()

	plan := c.Plan()

	if err := s.check(ctx, plan); err != nil {
		return nil, s.fail(BuildStatePolicyFailed, err)
	}

	revision, err := config.ResolveRevision(ctx, s.config.Revision, revisionInput(plan))
	if err != nil {
		return nil, s.fail(BuildStateRevisionFailed, err)
	}
	plan.Revision = revision

	if !s.dryRun {
		if err := s.publish(ctx, plan); err != nil {
			return nil, s.fail(BuildStatePublishFailed, err)
		}
	}

	s.log.Infof("Build plan with %d compiler pass(es) completed in %v.", len(plan.Passes), time.Since(start).Round(time.Millisecond))
	metrics.BuildSucceeded(start)
	s.status = Status{State: BuildStateSuccess}

	return plan, nil
}

func (s *Service) modules() []*config.Module {
	var modules []*config.Module
	for _, m := range s.config.SortedModules() {
		if m.Disabled {
			s.log.Debugf("module %q disabled, skipped", m.Name)
			continue
		}
		if !s.matches(m.Name) {
			continue
		}
		modules = append(modules, m)
	}
	return modules
}

func (s *Service) matches(name string) bool {
	if len(s.filter) == 0 {
		return true
	}
	return slices.ContainsFunc(s.filter, func(g glob.Glob) bool { return g.Match(name) })
}

func (s *Service) check(ctx context.Context, plan *container.Plan) error {
	if s.config.Policy == nil {
		return nil
	}

	files, err := s.config.Policy.Files()
	if err != nil {
		return err
	}

	input, err := plan.Input()
	if err != nil {
		return err
	}

	return policy.New(s.config.Policy.PolicyQuery(), files).Check(ctx, input)
}

type upload struct {
	output  string
	storage s3.ObjectStorage
	data    []byte
}

// publish uploads the plan to every output. All storages are opened and all
// encodings produced before the first upload starts, so a misconfigured
// output fails the build without publishing anything.
func (s *Service) publish(ctx context.Context, plan *container.Plan) error {
	var uploads []upload

	for _, o := range s.config.SortedOutputs() {
		storage, ok := s.storages[o.Name]
		if !ok {
			var err error
			storage, err = s3.New(ctx, o.ObjectStorage)
			if err != nil {
				return fmt.Errorf("output %q: %w", o.Name, err)
			}
		}

		var buf bytes.Buffer
		if err := plan.Encode(&buf, container.Format(o.Format)); err != nil {
			return fmt.Errorf("output %q: %w", o.Name, err)
		}

		uploads = append(uploads, upload{output: o.Name, storage: storage, data: buf.Bytes()})
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, u := range uploads {
		g.Go(func() error {
			start := time.Now()
			if err := u.storage.Upload(ctx, bytes.NewReader(u.data), plan.Revision); err != nil {
				s.log.Warnf("failed to publish plan to output %q: %v", u.output, err)
				return fmt.Errorf("output %q: %w", u.output, err)
			}
			metrics.PlanPublished(u.output, start)
			s.log.Debugf("Plan published to output %q.", u.output)
			return nil
		})
	}

	return g.Wait()
}

func (s *Service) fail(state BuildState, err error) error {
	s.status = Status{State: state, Message: err.Error()}
	metrics.BuildFailedWith(state.String())
	return err
}

// skipped returns the declared drivers without a resolved pass. Resolution
// succeeded, so these are the drivers whose provider is unavailable.
func skipped(declared []builder.DriverKind, specs []builder.CompilerPassSpec) []builder.DriverKind {
	var out []builder.DriverKind
	for _, kind := range declared {
		if !slices.ContainsFunc(specs, func(s builder.CompilerPassSpec) bool { return s.Driver == kind }) {
			out = append(out, kind)
		}
	}
	return out
}

func errorType(err error) string {
	var unknown *builder.UnknownDriverError
	var invalid *builder.InvalidMappingFormatError
	switch {
	case errors.As(err, &unknown):
		return "unknown_driver"
	case errors.As(err, &invalid):
		return "invalid_mapping_format"
	default:
		return "other"
	}
}

func revisionInput(plan *container.Plan) map[string]any {
	modules := plan.Modules()
	names := make([]any, len(modules))
	for i, m := range modules {
		names[i] = m
	}
	return map[string]any{
		"modules": names,
		"passes":  len(plan.Passes),
	}
}
