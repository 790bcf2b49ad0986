// Package classifier runs one image through the two-layer network:
// normalize, hidden layer, ReLU, output layer, log-softmax, argmax.
//
// A Classifier owns the resources registered with it (typically the compute
// session behind an offload executor). When a step fails it moves to the
// Failed state, closes those resources exactly once and rejects every later
// call with ErrFailed.
package classifier

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/born-ml/tilenet/internal/activation"
	"github.com/born-ml/tilenet/internal/device"
	"github.com/born-ml/tilenet/internal/engine"
	"github.com/born-ml/tilenet/internal/errs"
	"github.com/born-ml/tilenet/internal/params"
)

// Result holds the prediction and every intermediate vector.
type Result struct {
	Class     int
	Input     []float32 // Normalized pixels.
	HiddenPre []float32 // Hidden layer before ReLU.
	Hidden    []float32 // Hidden layer after ReLU.
	Logits    []float32 // Output layer before log-softmax.
	LogProbs  []float32
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger for state transitions and vector dumps.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithExecutor runs both layers on exec. The default is
// engine.NewDirectExecutor().
func WithExecutor(exec engine.TileExecutor) Option {
	return func(c *Classifier) {
		c.exec = exec
	}
}

// WithSession runs both layers on an offload executor over s and takes
// ownership of s.
func WithSession(s *device.Session) Option {
	return func(c *Classifier) {
		c.exec = engine.NewOffloadExecutor(s)
		c.closers = append(c.closers, s)
	}
}

// WithCloser registers a resource closed together with the classifier.
func WithCloser(cl io.Closer) Option {
	return func(c *Classifier) {
		c.closers = append(c.closers, cl)
	}
}

// Classifier predicts the class of one image at a time. Classify calls are
// serialized.
type Classifier struct {
	cfg     Config
	model   *params.Model
	exec    engine.TileExecutor
	engine  *engine.Engine
	closers []io.Closer
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	closed   bool
	closeErr error
}

// New creates a classifier for model. On error every resource registered
// through opts is closed.
func New(model *params.Model, cfg Config, opts ...Option) (*Classifier, error) {
	c := &Classifier{
		cfg:    cfg,
		model:  model,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.check(); err != nil {
		return nil, errors.Join(err, c.closeResources())
	}
	if c.exec == nil {
		c.exec = engine.NewDirectExecutor()
	}
	c.engine = engine.New(c.exec, engine.WithLogger(c.logger))
	c.logger.Debug("classifier ready", "executor", c.exec.Name(),
		"tile1", cfg.Tile1, "tile2", cfg.Tile2)
	return c, nil
}

func (c *Classifier) check() error {
	if c.model == nil {
		return fmt.Errorf("classifier: nil model: %w", errs.ErrInvalidArgument)
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	if got := c.model.Topology(); got != c.cfg.Topology {
		return fmt.Errorf("classifier: model is %d-%d-%d, config %d-%d-%d: %w",
			got.InputSize, got.Hidden, got.Classes,
			c.cfg.Topology.InputSize, c.cfg.Topology.Hidden, c.cfg.Topology.Classes,
			errs.ErrInvalidArgument)
	}
	return nil
}

// State returns the current state.
func (c *Classifier) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Executor returns the executor both layers run on.
func (c *Classifier) Executor() engine.TileExecutor {
	return c.exec
}

// Classify runs one inference over 8-bit pixels.
func (c *Classifier) Classify(pixels []byte) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Failed {
		return nil, ErrFailed
	}
	if c.closed {
		return nil, ErrClosed
	}

	res := &Result{}
	var err error

	if res.Input, err = c.cfg.Normalize.Apply(pixels); err != nil {
		return nil, c.fail(Loaded, err)
	}
	c.enter(Loaded)

	shape1 := engine.Shape{Neurons: c.cfg.Topology.Hidden, InputSize: c.cfg.Topology.InputSize, TileSize: c.cfg.Tile1}
	if res.HiddenPre, err = c.engine.Forward(shape1, c.model.Hidden.Weights, c.model.Hidden.Biases, res.Input); err != nil {
		return nil, c.fail(Layer1Computed, err)
	}
	c.enter(Layer1Computed)
	c.logger.Debug("hidden layer before relu", "values", res.HiddenPre)

	res.Hidden = append([]float32(nil), res.HiddenPre...)
	activation.Rectify(res.Hidden)
	c.enter(Activated)
	c.logger.Debug("hidden layer after relu", "values", res.Hidden)

	shape2 := engine.Shape{Neurons: c.cfg.Topology.Classes, InputSize: c.cfg.Topology.Hidden, TileSize: c.cfg.Tile2}
	if res.Logits, err = c.engine.Forward(shape2, c.model.Output.Weights, c.model.Output.Biases, res.Hidden); err != nil {
		return nil, c.fail(Layer2Computed, err)
	}
	c.enter(Layer2Computed)
	c.logger.Debug("output layer before log-softmax", "values", res.Logits)

	res.LogProbs = append([]float32(nil), res.Logits...)
	if err := activation.LogSoftmax(res.LogProbs); err != nil {
		return nil, c.fail(Normalized, err)
	}
	c.enter(Normalized)
	c.logger.Debug("output layer after log-softmax", "values", res.LogProbs)

	if res.Class, err = activation.Argmax(res.LogProbs); err != nil {
		return nil, c.fail(Classified, err)
	}
	c.enter(Classified)
	c.logger.Debug("classified", "class", res.Class)

	c.enter(Idle)
	return res, nil
}

// Verify recomputes both layers of res without tiling and returns the
// largest absolute difference to the tiled results.
func (c *Classifier) Verify(res *Result) (float32, error) {
	if res == nil {
		return 0, fmt.Errorf("classifier: nil result: %w", errs.ErrInvalidArgument)
	}
	t := c.cfg.Topology
	hidden, err := engine.Reference(engine.Shape{Neurons: t.Hidden, InputSize: t.InputSize, TileSize: t.InputSize},
		c.model.Hidden.Weights, c.model.Hidden.Biases, res.Input)
	if err != nil {
		return 0, err
	}
	logits, err := engine.Reference(engine.Shape{Neurons: t.Classes, InputSize: t.Hidden, TileSize: t.Hidden},
		c.model.Output.Weights, c.model.Output.Biases, res.Hidden)
	if err != nil {
		return 0, err
	}
	return max(maxAbsDiff(hidden, res.HiddenPre), maxAbsDiff(logits, res.Logits)), nil
}

func maxAbsDiff(a, b []float32) float32 {
	var d float32
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		d = max(d, diff)
	}
	return d
}

// Close releases every registered resource. Later calls return the first
// result.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeResources()
}

func (c *Classifier) enter(s State) {
	c.logger.Debug("state", "from", c.state.String(), "to", s.String())
	c.state = s
}

// fail enters Failed, releases resources and wraps err with the stage.
func (c *Classifier) fail(stage State, err error) error {
	c.logger.Debug("state", "from", c.state.String(), "to", Failed.String(), "stage", stage.Step(), "err", err)
	c.state = Failed
	if cerr := c.closeResources(); cerr != nil {
		c.logger.Warn("release after failure", "err", cerr)
	}
	return &StageError{Stage: stage, Err: err}
}

// closeResources closes registered resources once, last registered first.
func (c *Classifier) closeResources() error {
	if c.closed {
		return c.closeErr
	}
	c.closed = true
	var errList []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errList = append(errList, err)
		}
	}
	c.closeErr = errors.Join(errList...)
	return c.closeErr
}
