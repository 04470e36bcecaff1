package vmcheck

import (
	"fmt"
	"log/slog"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"vmcheck/abstraction"
	"vmcheck/config"
	"vmcheck/fields"
	"vmcheck/serialize"
	"vmcheck/stategraph"
	"vmcheck/vector"
)

// Strategies are selected by name in the configuration and resolved once, when the
// fingerprinter is prepared.

type HeuristicFactory func(depth int) stategraph.Heuristic

type LinearizerFactory func(h stategraph.Heuristic, logger *slog.Logger) stategraph.Linearizer

type TransformFactory func() stategraph.Transform

// SerializerParts holds the components a serializer may be assembled from.
type SerializerParts struct {
	Builder    *abstraction.Builder
	Linearizer stategraph.Linearizer
	Transforms []stategraph.Transform
	Masks      *fields.MaskCache
	Growth     vector.GrowthStrategy
	Collect    bool
	Logger     *slog.Logger
}

type SerializerFactory func(parts SerializerParts) serialize.Serializer

var (
	heuristics = map[string]HeuristicFactory{
		"structural": func(depth int) stategraph.Heuristic { return stategraph.Structural{Depth: depth} },
		"shallow":    func(int) stategraph.Heuristic { return stategraph.Shallow{} },
	}

	linearizers = map[string]LinearizerFactory{
		"bfs": func(h stategraph.Heuristic, logger *slog.Logger) stategraph.Linearizer {
			return stategraph.NewBFS(h, logger)
		},
		"ordered": func(stategraph.Heuristic, *slog.Logger) stategraph.Linearizer {
			return stategraph.OrderedBFS{}
		},
	}

	transforms = map[string]TransformFactory{
		"symmetric-threads": func() stategraph.Transform { return stategraph.SymmetricThreads{} },
	}

	serializers = map[string]SerializerFactory{
		"graph": func(p SerializerParts) serialize.Serializer {
			return serialize.NewGraphSerializer(p.Builder, p.Linearizer, p.Transforms, p.Growth, p.Logger)
		},
		"filtering": func(p SerializerParts) serialize.Serializer {
			return serialize.NewFilteringSerializer(p.Masks, p.Collect, p.Growth, p.Logger)
		},
	}
)

// Register a heuristic under name. An existing heuristic with the same name is replaced.
//
// Not safe to call concurrently with PrepareFingerprinter.
func RegisterHeuristic(name string, f HeuristicFactory) {
	heuristics[name] = f
}

// Register a linearizer under name. An existing linearizer with the same name is replaced.
func RegisterLinearizer(name string, f LinearizerFactory) {
	linearizers[name] = f
}

// Register a transform under name. An existing transform with the same name is replaced.
func RegisterTransform(name string, f TransformFactory) {
	transforms[name] = f
}

// Register a serializer under name. An existing serializer with the same name is replaced.
func RegisterSerializer(name string, f SerializerFactory) {
	serializers[name] = f
}

func resolve[T any](key string, registry map[string]T, name string) (T, error) {
	f, ok := registry[name]
	if !ok {
		var zero T
		names := maps.Keys(registry)
		slices.Sort(names)
		return zero, &config.ConfigError{
			Key:    key,
			Value:  name,
			Reason: fmt.Sprintf("unknown %v, expected one of %v", key, names),
		}
	}
	return f, nil
}
