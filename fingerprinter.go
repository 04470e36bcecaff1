// Package vmcheck computes canonical fingerprints of the live state of a program under
// model checking.
//
// A Fingerprinter is assembled from name-keyed strategies selected by a config.Config and
// from functional options:
//
//	fp, err := vmcheck.PrepareFingerprinter(
//		vmcheck.WithConfig(cfg),
//		vmcheck.WithTransform(stategraph.SymmetricThreads{}),
//	)
//	v, err := fp.Fingerprint(state)
package vmcheck

import (
	"fmt"
	"log/slog"

	"vmcheck/abstraction"
	"vmcheck/config"
	"vmcheck/fields"
	"vmcheck/serialize"
	"vmcheck/stategraph"
	"vmcheck/vector"
	"vmcheck/vm"
)

type Option interface{}

type configOption struct{ cfg config.Config }

// Use the provided configuration.
//
// Default value is config.Default()
func WithConfig(cfg config.Config) Option {
	return configOption{cfg: cfg}
}

type configFileOption struct{ path string }

// Load the configuration from the YAML file at path.
func WithConfigFile(path string) Option {
	return configFileOption{path: path}
}

type loggerOption struct{ logger *slog.Logger }

// Log with the provided logger. Default value is slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return loggerOption{logger: logger}
}

type objectAmmendmentOption struct{ a abstraction.ObjectAmmendment }

// Revise the object abstractor of every class. Ammendments run in the order they are provided.
func WithObjectAmmendment(a abstraction.ObjectAmmendment) Option {
	return objectAmmendmentOption{a: a}
}

type staticsAmmendmentOption struct{ a abstraction.StaticsAmmendment }

// Revise the statics abstractor of every class.
func WithStaticsAmmendment(a abstraction.StaticsAmmendment) Option {
	return staticsAmmendmentOption{a: a}
}

type frameAmmendmentOption struct{ a abstraction.FrameAmmendment }

// Revise the frame abstractor of every method.
func WithFrameAmmendment(a abstraction.FrameAmmendment) Option {
	return frameAmmendmentOption{a: a}
}

type fieldAmmendmentOption struct{ a fields.Ammendment }

// Revise the decision to include a field in the fingerprint.
//
// Field ammendments run after the annotation rules and the configured filter hints.
func WithFieldAmmendment(a fields.Ammendment) Option {
	return fieldAmmendmentOption{a: a}
}

type transformOption struct{ t stategraph.Transform }

// Apply t to every state graph after the configured transforms.
func WithTransform(t stategraph.Transform) Option {
	return transformOption{t: t}
}

type heuristicOption struct{ h stategraph.Heuristic }

// Use h instead of the configured heuristic.
func WithHeuristic(h stategraph.Heuristic) Option {
	return heuristicOption{h: h}
}

type collectionOption struct{ collect bool }

// Configure whether the filtering serializer removes unreachable objects from heaps
// implementing vm.Collector.
//
// Default value is true
func WithCollection(collect bool) Option {
	return collectionOption{collect: collect}
}

// Fingerprinter computes the fingerprint of live states.
//
// It is not safe for concurrent use.
type Fingerprinter struct {
	cfg        config.Config
	conf       abstraction.Configuration
	masks      *fields.MaskCache
	graph      *serialize.GraphSerializer
	serializer serialize.Serializer
	logger     *slog.Logger
}

// Prepare a Fingerprinter.
//
// Every strategy name of the configuration is resolved here. An unknown name or an invalid
// configuration is returned as a *config.ConfigError.
func PrepareFingerprinter(opts ...Option) (*Fingerprinter, error) {
	var (
		cfg     = config.Default()
		logger  = slog.Default()
		collect = true

		heuristic    stategraph.Heuristic
		extra        []stategraph.Transform
		objectAmmend []abstraction.ObjectAmmendment
		staticAmmend []abstraction.StaticsAmmendment
		frameAmmend  []abstraction.FrameAmmendment
		fieldAmmend  []fields.Ammendment
	)

	for _, opt := range opts {
		switch t := opt.(type) {
		case configOption:
			cfg = t.cfg
		case configFileOption:
			loaded, err := config.LoadFile(t.path)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		case loggerOption:
			if t.logger != nil {
				logger = t.logger
			}
		case objectAmmendmentOption:
			objectAmmend = append(objectAmmend, t.a)
		case staticsAmmendmentOption:
			staticAmmend = append(staticAmmend, t.a)
		case frameAmmendmentOption:
			frameAmmend = append(frameAmmend, t.a)
		case fieldAmmendmentOption:
			fieldAmmend = append(fieldAmmend, t.a)
		case transformOption:
			extra = append(extra, t.t)
		case heuristicOption:
			heuristic = t.h
		case collectionOption:
			collect = t.collect
		default:
			return nil, fmt.Errorf("vmcheck: unknown option %T", opt)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	filter, err := fields.NewFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}
	for _, a := range fieldAmmend {
		filter.Add(a)
	}
	masks := fields.NewMaskCache(filter, fields.NewCache())

	ammendable := abstraction.NewAmmendableConfiguration(abstraction.NewDefaultConfiguration(masks, logger))
	for _, a := range objectAmmend {
		ammendable.AddObjectAmmendment(a)
	}
	for _, a := range staticAmmend {
		ammendable.AddStaticsAmmendment(a)
	}
	for _, a := range frameAmmend {
		ammendable.AddFrameAmmendment(a)
	}
	conf := abstraction.NewCachedConfiguration(ammendable)
	if err := conf.Attach(cfg); err != nil {
		return nil, err
	}

	if heuristic == nil {
		hf, err := resolve("heuristic", heuristics, cfg.Heuristic)
		if err != nil {
			return nil, err
		}
		heuristic = hf(cfg.HeuristicDepth)
	}
	lf, err := resolve("linearizer", linearizers, cfg.Linearizer)
	if err != nil {
		return nil, err
	}
	var ts []stategraph.Transform
	for _, name := range cfg.Transforms {
		tf, err := resolve("transform", transforms, name)
		if err != nil {
			return nil, err
		}
		ts = append(ts, tf())
	}
	ts = append(ts, extra...)
	sf, err := resolve("serializer", serializers, cfg.Serializer)
	if err != nil {
		return nil, err
	}

	step, _ := config.ParseGrowth(cfg.Vector.Growth)
	parts := SerializerParts{
		Builder:    abstraction.NewBuilder(conf, abstraction.NewDefaultObject(masks), logger),
		Linearizer: lf(heuristic, logger),
		Transforms: ts,
		Masks:      masks,
		Growth:     vector.NewGrowth(step),
		Collect:    collect,
		Logger:     logger,
	}
	logger.Debug("prepared fingerprinter",
		"serializer", cfg.Serializer,
		"linearizer", cfg.Linearizer,
		"heuristic", cfg.Heuristic,
		"heuristic_depth", cfg.HeuristicDepth,
		"transforms", len(ts),
	)
	return &Fingerprinter{
		cfg:        cfg,
		conf:       conf,
		masks:      masks,
		graph:      serialize.NewGraphSerializer(parts.Builder, parts.Linearizer, parts.Transforms, parts.Growth, logger),
		serializer: sf(parts),
		logger:     logger,
	}, nil
}

// Fingerprint returns the fingerprint of state.
func (f *Fingerprinter) Fingerprint(state vm.State) (*vector.IntVector, error) {
	fp, err := f.serializer.Serialize(state)
	if err != nil {
		return nil, fmt.Errorf("vmcheck: %w", err)
	}
	return fp, nil
}

// Serialize is Fingerprint. It lets a Fingerprinter serve as a serialize.Serializer.
func (f *Fingerprinter) Serialize(state vm.State) (*vector.IntVector, error) {
	return f.Fingerprint(state)
}

// Graph returns the linearized state graph of state, independently of the configured
// serializer.
func (f *Fingerprinter) Graph(state vm.State) (*stategraph.Graph, error) {
	return f.graph.Graph(state)
}

// Prepare resolves the abstractors and field masks of the provided classes and methods, so
// configuration errors surface before the search starts.
func (f *Fingerprinter) Prepare(classes []*vm.ClassInfo, methods []*vm.MethodInfo) error {
	return abstraction.Prepare(f.conf, f.masks, classes, methods)
}

func (f *Fingerprinter) Config() config.Config {
	return f.cfg
}
