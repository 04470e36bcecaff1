// Package search explores the state space of a program depth first, backtracking over
// choice generators and matching states by their fingerprint.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"vmcheck/choice"
	"vmcheck/serialize"
	"vmcheck/vm"
)

var (
	ErrNoMoreStates     = errors.New("search: no more states to explore")
	ErrPropertyViolated = errors.New("search: a property is violated")
)

// System is the program under test as seen by the search.
type System interface {
	// State returns the current live state.
	State() vm.State

	// Choices returns the generator of the next decision in the current state, or false if
	// the state is terminal. The generator is returned before its first choice.
	Choices() (choice.Generator, bool)

	// Execute runs the transition selected by the current choice of g.
	Execute(g choice.Generator) error

	// Store returns a token from which Restore can recreate the current state.
	Store() any

	Restore(token any)
}

type frame struct {
	gen    choice.Generator
	stored any
	node   *StateSpace
}

// Search is a depth first search over the choices of a System.
//
// It is not safe for concurrent use.
type Search struct {
	sys        System
	serializer serialize.Serializer
	visited    *StateSet
	properties []Property
	maxDepth   int
	record     bool
	rnd        *rand.Rand
	logger     *slog.Logger

	started   bool
	stack     []*frame
	root      *StateSpace
	stats     Stats
	violation *Violation
}

type Option interface{}

type maxDepthOption struct{ maxDepth int }

// Configure the maximum depth explored.
//
// Default value is 1000. New states at the maximum depth are checked but not expanded.
func MaxDepth(maxDepth int) Option {
	return maxDepthOption{maxDepth: maxDepth}
}

type propertyOption struct{ props []Property }

// Specify properties that must hold in every explored state.
func WithProperty(props ...Property) Option {
	return propertyOption{props: props}
}

type recordOption struct{}

// Record the explored state space so it can be exported.
func RecordStateSpace() Option {
	return recordOption{}
}

type randomOption struct{ seed int64 }

// Randomize the order in which the choices of every decision are explored.
//
// The search remains exhaustive. Only the order in which states are reached changes, which
// helps finding a violation early in a state space too large to finish.
func RandomizeChoices(seed int64) Option {
	return randomOption{seed: seed}
}

type loggerOption struct{ logger *slog.Logger }

func WithLogger(logger *slog.Logger) Option {
	return loggerOption{logger: logger}
}

// Create a new Search of sys using serializer to fingerprint states.
func New(sys System, serializer serialize.Serializer, opts ...Option) *Search {
	s := &Search{
		sys:        sys,
		serializer: serializer,
		visited:    NewStateSet(),
		maxDepth:   1000,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		switch t := opt.(type) {
		case maxDepthOption:
			s.maxDepth = t.maxDepth
		case propertyOption:
			s.properties = append(s.properties, t.props...)
		case recordOption:
			s.record = true
		case randomOption:
			s.rnd = rand.New(rand.NewSource(t.seed))
		case loggerOption:
			if t.logger != nil {
				s.logger = t.logger
			}
		}
	}
	return s
}

// Run steps the search until the state space is exhausted, a property is violated or ctx
// is done.
func (s *Search) Run(ctx context.Context) (Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return s.Result(), err
		}
		err := s.Step()
		if errors.Is(err, ErrNoMoreStates) || errors.Is(err, ErrPropertyViolated) {
			break
		}
		if err != nil {
			return s.Result(), err
		}
	}
	s.logger.Debug("search finished",
		"states", s.stats.States,
		"revisits", s.stats.Revisits,
		"transitions", s.stats.Transitions,
		"backtracks", s.stats.Backtracks,
	)
	return s.Result(), nil
}

// Step visits the initial state on the first call and takes one transition on every
// following call.
//
// Returns ErrNoMoreStates once every choice has been explored and ErrPropertyViolated
// once a property is broken.
func (s *Search) Step() error {
	if s.violation != nil {
		return ErrPropertyViolated
	}
	if !s.started {
		s.started = true
		return s.visit(nil, "init", 0)
	}
	for len(s.stack) > 0 {
		top := s.stack[len(s.stack)-1]
		if !top.gen.HasMoreChoices() {
			s.pop()
			continue
		}
		// The generator may change the state it selects from, so it advances after Restore
		s.sys.Restore(top.stored)
		top.gen.Advance()
		if err := s.sys.Execute(top.gen); err != nil {
			return fmt.Errorf("search: executing %v: %w", top.gen, err)
		}
		s.stats.Transitions++
		return s.visit(top.node, top.gen.String(), len(s.stack))
	}
	return ErrNoMoreStates
}

func (s *Search) pop() {
	top := s.stack[len(s.stack)-1]
	if r, ok := top.gen.(interface{ Release() }); ok {
		r.Release()
	}
	s.stack = s.stack[:len(s.stack)-1]
	s.stats.Backtracks++
}

func (s *Search) visit(parent *StateSpace, label string, depth int) error {
	state := s.sys.State()
	fp, err := s.serializer.Serialize(state)
	if err != nil {
		return fmt.Errorf("search: fingerprinting state at depth %v: %w", depth, err)
	}
	isNew := s.visited.Add(fp)

	var node *StateSpace
	if s.record {
		t := Transition{Choice: label, Revisit: !isNew}
		if parent == nil {
			node = newStateSpace(t)
			s.root = node
		} else {
			node = parent.addChild(t)
		}
	}

	if !isNew {
		s.stats.Revisits++
		return nil
	}
	s.stats.States++

	gen, more := s.sys.Choices()
	st := State{State: state, Depth: depth, IsTerminal: !more}
	for i, p := range s.properties {
		if !p(st) {
			s.violation = &Violation{Property: i, Path: s.path(), Depth: depth}
			s.logger.Debug("property violated", "property", i, "depth", depth)
			return ErrPropertyViolated
		}
	}

	if !more {
		return nil
	}
	if depth >= s.maxDepth {
		s.stats.Truncated++
		return nil
	}
	if s.rnd != nil {
		gen = gen.Randomize(s.rnd)
	}
	s.stack = append(s.stack, &frame{gen: gen, stored: s.sys.Store(), node: node})
	return nil
}

func (s *Search) path() []string {
	path := make([]string, 0, len(s.stack))
	for _, f := range s.stack {
		path = append(path, f.gen.String())
	}
	return path
}

// Result returns the outcome of the search so far.
func (s *Search) Result() Result {
	return Result{
		Stats:      s.stats,
		Violation:  s.violation,
		StateSpace: s.root,
	}
}
