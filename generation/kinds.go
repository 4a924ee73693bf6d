package generation

import (
	"fmt"

	"github.com/google/uuid"

	"hordesdk/logging"
)

// Kind identifies the category of work a generation represents. Each
// kind carries a profile: whether an inference phase exists, whether
// post-processing follows by default, and which transition table
// applies.
type Kind string

const (
	// KindImage is image generation: inference, post-processing, and a
	// mandatory safety check before submission.
	KindImage Kind = "image"

	// KindAlchemy is image transformation (interrogation, upscaling,
	// captioning). Alchemy has no inference phase of its own and no
	// safety check pipeline.
	KindAlchemy Kind = "alchemy"

	// KindText is text generation: inference but no post-processing and
	// no safety check pipeline.
	KindText Kind = "text"
)

// kindProfile is the built-in configuration for each Kind. Options can
// override individual fields.
type kindProfile struct {
	requiresGeneration     bool
	requiresPostProcessing bool
	transitions            TransitionTable
	errorLimits            map[Progress]int
}

func profileFor(kind Kind) (kindProfile, error) {
	switch kind {
	case KindImage:
		return kindProfile{
			requiresGeneration:     true,
			requiresPostProcessing: true,
			transitions:            BaseTransitions(),
			errorLimits:            DefaultStateErrorLimits(),
		}, nil
	case KindAlchemy:
		return kindProfile{
			requiresGeneration:     false,
			requiresPostProcessing: true,
			transitions:            NoSafetyCheckTransitions(),
			errorLimits:            DefaultStateErrorLimits(),
		}, nil
	case KindText:
		return kindProfile{
			requiresGeneration:     true,
			requiresPostProcessing: false,
			transitions:            NoSafetyCheckTransitions(),
			errorLimits:            DefaultStateErrorLimits(),
		}, nil
	default:
		return kindProfile{}, fmt.Errorf("unknown generation kind %q", kind)
	}
}

// Option customizes a SingleGeneration at construction time.
type Option func(*options)

type options struct {
	id                     *uuid.UUID
	batchIDs               []uuid.UUID
	batchSize              int
	transitions            TransitionTable
	errorLimits            map[Progress]int
	requiresPostProcessing *bool
	lenient                bool
	extraLogging           bool
	logger                 *logging.Logger
}

// WithGenerationID sets the generation's identifier instead of
// generating a random one. Used when the server has already assigned the
// ID.
func WithGenerationID(id uuid.UUID) Option {
	return func(o *options) { o.id = &id }
}

// WithBatchIDs sets the per-result identifiers explicitly. The batch
// size becomes len(ids).
func WithBatchIDs(ids []uuid.UUID) Option {
	return func(o *options) { o.batchIDs = ids }
}

// WithBatchSize sets the number of results the generation expects; a
// random identifier is created for each slot. Default is 1.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithTransitions replaces the kind's transition table.
func WithTransitions(table TransitionTable) Option {
	return func(o *options) { o.transitions = table.Clone() }
}

// WithErrorLimits replaces the per-state error limits.
func WithErrorLimits(limits map[Progress]int) Option {
	return func(o *options) {
		o.errorLimits = make(map[Progress]int, len(limits))
		for state, limit := range limits {
			o.errorLimits[state] = limit
		}
	}
}

// WithRequiresPostProcessing overrides the kind's default for whether a
// post-processing phase follows generation.
func WithRequiresPostProcessing(required bool) Option {
	return func(o *options) {
		o.requiresPostProcessing = &required
	}
}

// WithLenientTransitions makes stepping into the current state a logged
// no-op instead of an error. Useful for callers that cannot guarantee
// each transition method fires exactly once.
func WithLenientTransitions() Option {
	return func(o *options) { o.lenient = true }
}

// WithExtraLogging enables debug logging of every attempted transition.
func WithExtraLogging() Option {
	return func(o *options) { o.extraLogging = true }
}

// WithLogger sets the logger for transition diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates a SingleGeneration of the given kind in the
// ProgressNotStarted state, with the kind's default transition table and
// error limits unless overridden by options.
func New[T any](kind Kind, opts ...Option) (*SingleGeneration[T], error) {
	profile, err := profileFor(kind)
	if err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New()
	if o.id != nil {
		id = *o.id
	}

	batchIDs := o.batchIDs
	if batchIDs == nil {
		size := o.batchSize
		if size <= 0 {
			size = 1
		}
		batchIDs = make([]uuid.UUID, size)
		for i := range batchIDs {
			batchIDs[i] = uuid.New()
		}
	}
	if len(batchIDs) == 0 {
		return nil, fmt.Errorf("generation %s: batch size must be at least 1", id)
	}

	transitions := profile.transitions
	if o.transitions != nil {
		transitions = o.transitions
	}

	errorLimits := profile.errorLimits
	if o.errorLimits != nil {
		errorLimits = o.errorLimits
	}

	requiresPP := profile.requiresPostProcessing
	if o.requiresPostProcessing != nil {
		requiresPP = *o.requiresPostProcessing
	}

	g := &SingleGeneration[T]{
		id:   id,
		kind: kind,

		progress:    InitialProgress,
		history:     []ProgressEntry{{State: InitialProgress, At: timeNow()}},
		transitions: transitions,

		errorCounts: make(map[Progress]int),
		errorLimits: errorLimits,

		requiresGeneration:     profile.requiresGeneration,
		requiresPostProcessing: requiresPP,

		batchIDs: batchIDs,

		lenient:      o.lenient,
		extraLogging: o.extraLogging,
		logger:       o.logger,
	}

	return g, nil
}

// ImageResult is the payload of one finished image generation.
type ImageResult struct {
	// Image is the encoded image bytes (typically WebP).
	Image []byte

	// Seed is the seed actually used by inference.
	Seed int64
}

// TextResult is the payload of one finished text generation.
type TextResult struct {
	// Text is the generated continuation.
	Text string
}

// AlchemyResult is the payload of one finished alchemy operation.
type AlchemyResult struct {
	// Image holds encoded image bytes for transformative forms
	// (upscaling), nil for interrogation forms.
	Image []byte

	// Caption holds the textual output for interrogation forms.
	Caption string
}

// ImageGeneration tracks one image generation job through its lifecycle.
type ImageGeneration = SingleGeneration[ImageResult]

// TextGeneration tracks one text generation job through its lifecycle.
type TextGeneration = SingleGeneration[TextResult]

// AlchemyGeneration tracks one alchemy job through its lifecycle.
type AlchemyGeneration = SingleGeneration[AlchemyResult]

// NewImageGeneration creates an image generation with the safety check
// pipeline enabled.
func NewImageGeneration(opts ...Option) (*ImageGeneration, error) {
	return New[ImageResult](KindImage, opts...)
}

// NewTextGeneration creates a text generation. Text skips post-processing
// and the safety check pipeline.
func NewTextGeneration(opts ...Option) (*TextGeneration, error) {
	return New[TextResult](KindText, opts...)
}

// NewAlchemyGeneration creates an alchemy generation. Alchemy has no
// inference phase and skips the safety check pipeline.
func NewAlchemyGeneration(opts ...Option) (*AlchemyGeneration, error) {
	return New[AlchemyResult](KindAlchemy, opts...)
}
