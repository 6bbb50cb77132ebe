package build

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/specbuilder/internal/barrel"
	"git.home.luguber.info/inful/specbuilder/internal/config"
	sberrors "git.home.luguber.info/inful/specbuilder/internal/errors"
	"git.home.luguber.info/inful/specbuilder/internal/eventstore"
	"git.home.luguber.info/inful/specbuilder/internal/filegraph"
	"git.home.luguber.info/inful/specbuilder/internal/logfields"
	"git.home.luguber.info/inful/specbuilder/internal/metrics"
	"git.home.luguber.info/inful/specbuilder/internal/naming"
	"git.home.luguber.info/inful/specbuilder/internal/observability"
	"git.home.luguber.info/inful/specbuilder/internal/pipeline"
	"git.home.luguber.info/inful/specbuilder/internal/plugin"
	"git.home.luguber.info/inful/specbuilder/internal/util/sets"
)

// Publisher receives the BuildCompleted and BuildFailed events of every build.
type Publisher interface {
	Publish(ctx context.Context, e pipeline.Event) error
}

// DefaultService is the standard implementation of Service.
type DefaultService struct {
	recorder   metrics.Recorder
	store      eventstore.Appender
	publishers []Publisher
	logger     *slog.Logger
	barrel     *barrel.Synthesizer
	retry      pipeline.RetryPolicy
	dlq        *pipeline.DeadLetterQueue
	newID      func() string
}

// NewService creates a DefaultService with no persistence and no publishers.
func NewService() *DefaultService {
	return &DefaultService{
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		retry:    pipeline.DefaultRetryPolicy(),
		dlq:      pipeline.NewDeadLetterQueue(100),
		newID:    uuid.NewString,
	}
}

// WithRecorder sets the metrics recorder.
func (s *DefaultService) WithRecorder(r metrics.Recorder) *DefaultService {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithEventStore persists every build and hook event.
func (s *DefaultService) WithEventStore(store eventstore.Appender) *DefaultService {
	s.store = store
	return s
}

// WithPublisher adds a publisher for build outcome events. Delivery is
// retried per the service retry policy; exhausted events land in DeadLetters.
func (s *DefaultService) WithPublisher(p Publisher) *DefaultService {
	if p != nil {
		s.publishers = append(s.publishers, p)
	}
	return s
}

// WithLogger sets the base logger handed to plugins and middleware.
func (s *DefaultService) WithLogger(logger *slog.Logger) *DefaultService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithBarrel replaces the index synthesizer derived from output.index_extension.
func (s *DefaultService) WithBarrel(b *barrel.Synthesizer) *DefaultService {
	s.barrel = b
	return s
}

// WithRetryPolicy sets the retry policy used for publishers.
func (s *DefaultService) WithRetryPolicy(p pipeline.RetryPolicy) *DefaultService {
	s.retry = p
	return s
}

// WithIDGenerator overrides build id generation.
func (s *DefaultService) WithIDGenerator(gen func() string) *DefaultService {
	if gen != nil {
		s.newID = gen
	}
	return s
}

// DeadLetters returns outcome events that could not be published.
func (s *DefaultService) DeadLetters() []pipeline.FailedEvent {
	return s.dlq.GetAll()
}

// build carries the state of one Run.
type build struct {
	svc    *DefaultService
	ctx    context.Context
	result *Result
	files  *filegraph.Manager
	bus    *pipeline.Bus
}

// Run executes a build: validate config, register plugins, run the
// lifecycle, synthesize index files, run writeFile, then record and publish
// the outcome.
func (s *DefaultService) Run(ctx context.Context, req Request) (*Result, error) {
	startTime := time.Now()
	buildID := s.newID()
	ctx = observability.WithBuildID(ctx, buildID)

	b := &build{
		svc:    s,
		ctx:    ctx,
		result: &Result{BuildID: buildID, Status: StatusRunning, StartTime: startTime},
		files:  filegraph.NewManager(),
		bus:    s.newBus(),
	}

	cfg := req.Config
	if cfg == nil {
		return b.fail(sberrors.ConfigInvalid(ErrConfigRequired))
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return b.fail(sberrors.ConfigInvalid(err))
	}
	if len(req.Plugins) == 0 {
		return b.fail(sberrors.RegistrationFailed(ErrNoPlugins))
	}

	registry := plugin.NewRegistry()
	if err := registry.Register(req.Plugins...); err != nil {
		return b.fail(sberrors.RegistrationFailed(err))
	}
	b.result.Registry = registry

	order := registry.Order()
	keys := make([]string, len(order))
	for i, p := range order {
		keys[i] = p.Metadata().Key.String()
	}
	observability.InfoContext(ctx, "Build started",
		logfields.Input(cfg.InputPath()),
		logfields.Path(cfg.OutputPath()),
		slog.Any("plugins", keys))
	b.publish(pipeline.NewEvent(buildID, pipeline.EventBuildStarted, eventstore.BuildStarted{
		Input:   cfg.InputPath(),
		Output:  cfg.OutputPath(),
		Plugins: keys,
	}))

	runner := pipeline.NewRunner(cfg, registry, b.files,
		pipeline.WithBuildID(buildID),
		pipeline.WithLogger(s.logger),
		pipeline.WithMiddleware(
			pipeline.LoggingMiddleware(s.logger),
			pipeline.MetricsMiddleware(s.recorder),
			pipeline.EventMiddleware(b.bus),
		))

	execution, err := runner.Run(ctx)
	b.result.Execution = execution
	if err != nil {
		return b.fail(classify(err))
	}

	if cfg.Output.Barrel && naming.ModeOf(cfg.OutputPath()) == naming.ModeDirectory {
		synth := s.barrel
		if synth == nil {
			synth = barrel.New(cfg.Output.IndexExtension)
		}
		created, err := synth.Synthesize(b.files, barrel.Options{Root: cfg.OutputPath()})
		if err != nil {
			return b.fail(sberrors.InternalError("index synthesis failed", err))
		}
		observability.DebugContext(ctx, "Index files synthesized", logfields.Files(len(created)))
	}

	if cfg.Output.Write {
		writes, err := runner.WriteFiles(ctx, b.files.All())
		b.result.Written = countWritten(writes)
		if err != nil {
			return b.fail(classify(err))
		}
	}

	return b.succeed()
}

func (s *DefaultService) newBus() *pipeline.Bus {
	var bus *pipeline.Bus
	if s.store != nil {
		bus = pipeline.NewBusWithEventStore(s.store)
	} else {
		bus = pipeline.NewBus()
	}
	bus.WithLogger(s.logger)
	for _, p := range s.publishers {
		h := pipeline.WithRetry(p.Publish, s.retry, s.dlq)
		bus.Subscribe(pipeline.EventBuildCompleted, h)
		bus.Subscribe(pipeline.EventBuildFailed, h)
	}
	return bus
}

func (b *build) publish(e pipeline.Event) {
	if err := b.bus.Publish(b.ctx, e); err != nil {
		observability.WarnContext(b.ctx, "Build event delivery failed", logfields.Name(e.Type), logfields.Error(err))
	}
}

func (b *build) finish(status Status) {
	r := b.result
	r.Status = status
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Files = b.files.All()

	b.svc.recorder.ObserveBuildDuration(r.Duration)
	b.svc.recorder.SetFilesEmitted(len(r.Files))
	switch status {
	case StatusSucceeded:
		b.svc.recorder.IncBuildOutcome(metrics.BuildOutcomeSuccess)
	case StatusCanceled:
		b.svc.recorder.IncBuildOutcome(metrics.BuildOutcomeCanceled)
	default:
		b.svc.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
	}
}

func (b *build) succeed() (*Result, error) {
	b.finish(StatusSucceeded)
	r := b.result
	observability.InfoContext(b.ctx, "Build completed",
		logfields.Files(len(r.Files)),
		slog.Int("written", r.Written),
		logfields.Elapsed(r.Duration))
	b.publish(pipeline.NewEvent(r.BuildID, pipeline.EventBuildCompleted, eventstore.BuildCompleted{
		Status:     string(StatusSucceeded),
		Files:      len(r.Files),
		Written:    r.Written,
		DurationMS: r.Duration.Milliseconds(),
	}))
	return r, nil
}

func (b *build) fail(err *sberrors.SpecBuilderError) (*Result, error) {
	status := StatusFailed
	if err.Category == sberrors.CategoryCanceled {
		status = StatusCanceled
	}
	b.finish(status)
	r := b.result

	payload := eventstore.BuildFailed{
		Status:     string(status),
		Error:      err.Error(),
		Files:      len(r.Files),
		DurationMS: r.Duration.Milliseconds(),
	}
	var hookErr *pipeline.HookExecutionError
	if errors.As(err, &hookErr) {
		payload.Plugin = hookErr.PluginKey.String()
		payload.Hook = hookErr.Hook.String()
	}

	observability.ErrorContext(b.ctx, "Build failed",
		slog.String("category", string(err.Category)),
		logfields.Files(len(r.Files)),
		logfields.Error(err))
	b.publish(pipeline.NewEvent(r.BuildID, pipeline.EventBuildFailed, payload))
	return r, err
}

// classify maps a lifecycle error onto the structured error type.
func classify(err error) *sberrors.SpecBuilderError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return sberrors.BuildCanceled(err)
	}
	if errors.Is(err, pipeline.ErrVetoed) {
		return sberrors.BuildVetoed(err)
	}
	var hookErr *pipeline.HookExecutionError
	if errors.As(err, &hookErr) {
		return sberrors.HookFailed(hookErr.PluginKey.String(), hookErr.Hook.String(), err)
	}
	return sberrors.InternalError("lifecycle failed", err)
}

func countWritten(writes []pipeline.HookExecution) int {
	paths := sets.New[string]()
	for _, w := range writes {
		if w.Err == nil {
			paths.Add(w.FilePath)
		}
	}
	return len(paths)
}
