package abstraction

import (
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"vmcheck/config"
	"vmcheck/fields"
	"vmcheck/stategraph"
	"vmcheck/vector"
	"vmcheck/vm"
)

// Abstractor names accepted in the configuration.
const (
	DefaultName   = "default"
	UnorderedName = "unordered"
	IgnoreName    = "ignore"
	PCOnlyName    = "pc-only"
)

// Configuration resolves the abstractors used for each class and method.
//
// Attach reads the abstractor selection of a configuration and must be called before any
// abstractor is resolved. Resolution fails with a *config.ConfigError.
type Configuration interface {
	Attach(cfg config.Config) error
	ObjectAbstractor(cls *vm.ClassInfo) (ObjectAbstractor, error)
	StaticsAbstractor(cls *vm.ClassInfo) (StaticsAbstractor, error)
	FrameAbstractor(m *vm.MethodInfo) (FrameAbstractor, error)
}

// DefaultConfiguration resolves abstractors by class or method name from the "abstractor"
// section of the configuration. Unlisted classes and methods use the default abstractors.
type DefaultConfiguration struct {
	objects map[string]ObjectAbstractor
	statics map[string]StaticsAbstractor
	frames  map[string]FrameAbstractor

	byClass  map[string]string
	byStatic map[string]string
	byMethod map[string]string

	logger *slog.Logger
}

// Create a new DefaultConfiguration whose field abstractors read the masks in masks.
func NewDefaultConfiguration(masks *fields.MaskCache, logger *slog.Logger) *DefaultConfiguration {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultConfiguration{
		objects: map[string]ObjectAbstractor{
			DefaultName:   NewDefaultObject(masks),
			UnorderedName: NewUnorderedObject(masks),
			IgnoreName:    IgnoreObject{},
		},
		statics: map[string]StaticsAbstractor{
			DefaultName: NewDefaultStatics(masks),
			IgnoreName:  IgnoreStatics{},
		},
		frames: map[string]FrameAbstractor{
			DefaultName: DefaultFrame{},
			PCOnlyName:  PCOnlyFrame{},
		},
		logger: logger,
	}
}

func (c *DefaultConfiguration) Attach(cfg config.Config) error {
	if err := checkNames("abstractor.objects", cfg.Abstractor.Objects, c.objects); err != nil {
		return err
	}
	if err := checkNames("abstractor.statics", cfg.Abstractor.Statics, c.statics); err != nil {
		return err
	}
	if err := checkNames("abstractor.frames", cfg.Abstractor.Frames, c.frames); err != nil {
		return err
	}
	c.byClass = maps.Clone(cfg.Abstractor.Objects)
	c.byStatic = maps.Clone(cfg.Abstractor.Statics)
	c.byMethod = maps.Clone(cfg.Abstractor.Frames)
	return nil
}

func checkNames[T any](key string, selection map[string]string, known map[string]T) error {
	targets := maps.Keys(selection)
	slices.Sort(targets)
	for _, target := range targets {
		name := selection[target]
		if _, ok := known[name]; !ok {
			names := maps.Keys(known)
			slices.Sort(names)
			return &config.ConfigError{
				Key:    key + "." + target,
				Value:  name,
				Reason: fmt.Sprintf("unknown abstractor, expected one of %v", names),
			}
		}
	}
	return nil
}

func (c *DefaultConfiguration) ObjectAbstractor(cls *vm.ClassInfo) (ObjectAbstractor, error) {
	name := lookup(c.byClass, cls.Name)
	c.logger.Debug("resolved object abstractor", "class", cls.Name, "abstractor", name)
	return c.objects[name], nil
}

func (c *DefaultConfiguration) StaticsAbstractor(cls *vm.ClassInfo) (StaticsAbstractor, error) {
	name := lookup(c.byStatic, cls.Name)
	c.logger.Debug("resolved statics abstractor", "class", cls.Name, "abstractor", name)
	return c.statics[name], nil
}

func (c *DefaultConfiguration) FrameAbstractor(m *vm.MethodInfo) (FrameAbstractor, error) {
	name := lookup(c.byMethod, m.FullName())
	c.logger.Debug("resolved frame abstractor", "method", m.FullName(), "abstractor", name)
	return c.frames[name], nil
}

func lookup(selection map[string]string, key string) string {
	if name, ok := selection[key]; ok {
		return name
	}
	return DefaultName
}

// CachedConfiguration memoizes the abstractors resolved by another configuration, keyed by
// class and method id.
//
// It is not safe for concurrent use.
type CachedConfiguration struct {
	Configuration
	objects *vector.ObjVector[ObjectAbstractor]
	statics *vector.ObjVector[StaticsAbstractor]
	frames  *vector.ObjVector[FrameAbstractor]
}

func NewCachedConfiguration(inner Configuration) *CachedConfiguration {
	return &CachedConfiguration{
		Configuration: inner,
		objects:       vector.NewObjVector[ObjectAbstractor](64, nil),
		statics:       vector.NewObjVector[StaticsAbstractor](64, nil),
		frames:        vector.NewObjVector[FrameAbstractor](64, nil),
	}
}

// Attach forwards to the wrapped configuration and drops every cached abstractor.
func (c *CachedConfiguration) Attach(cfg config.Config) error {
	c.objects.Clear()
	c.statics.Clear()
	c.frames.Clear()
	return c.Configuration.Attach(cfg)
}

func (c *CachedConfiguration) ObjectAbstractor(cls *vm.ClassInfo) (ObjectAbstractor, error) {
	return cached(c.objects, cls.Id, func() (ObjectAbstractor, error) {
		return c.Configuration.ObjectAbstractor(cls)
	})
}

func (c *CachedConfiguration) StaticsAbstractor(cls *vm.ClassInfo) (StaticsAbstractor, error) {
	return cached(c.statics, cls.Id, func() (StaticsAbstractor, error) {
		return c.Configuration.StaticsAbstractor(cls)
	})
}

func (c *CachedConfiguration) FrameAbstractor(m *vm.MethodInfo) (FrameAbstractor, error) {
	return cached(c.frames, m.Id, func() (FrameAbstractor, error) {
		return c.Configuration.FrameAbstractor(m)
	})
}

func cached[T comparable](cache *vector.ObjVector[T], id int, resolve func() (T, error)) (T, error) {
	var zero T
	if a := cache.Get(id); a != zero {
		return a, nil
	}
	a, err := resolve()
	if err != nil {
		return zero, err
	}
	cache.Set(id, a)
	return a, nil
}

// Ammendments revise the abstractor decided for a class or method. They receive the
// decision of the previous step and return the new one. Returning nil is a defect and
// fails the resolution.
type (
	ObjectAmmendment  func(cls *vm.ClassInfo, current ObjectAbstractor) ObjectAbstractor
	StaticsAmmendment func(cls *vm.ClassInfo, current StaticsAbstractor) StaticsAbstractor
	FrameAmmendment   func(m *vm.MethodInfo, current FrameAbstractor) FrameAbstractor
)

// AmmendableConfiguration applies ordered chains of ammendments to the decisions of
// another configuration.
type AmmendableConfiguration struct {
	Configuration
	objects []ObjectAmmendment
	statics []StaticsAmmendment
	frames  []FrameAmmendment
}

func NewAmmendableConfiguration(inner Configuration) *AmmendableConfiguration {
	return &AmmendableConfiguration{Configuration: inner}
}

// AddObjectAmmendment registers a after the existing object ammendments.
func (c *AmmendableConfiguration) AddObjectAmmendment(a ObjectAmmendment) {
	c.objects = append(c.objects, a)
}

// AddStaticsAmmendment registers a after the existing statics ammendments.
func (c *AmmendableConfiguration) AddStaticsAmmendment(a StaticsAmmendment) {
	c.statics = append(c.statics, a)
}

// AddFrameAmmendment registers a after the existing frame ammendments.
func (c *AmmendableConfiguration) AddFrameAmmendment(a FrameAmmendment) {
	c.frames = append(c.frames, a)
}

func (c *AmmendableConfiguration) ObjectAbstractor(cls *vm.ClassInfo) (ObjectAbstractor, error) {
	a, err := c.Configuration.ObjectAbstractor(cls)
	if err != nil {
		return nil, err
	}
	for i, ammend := range c.objects {
		if a = ammend(cls, a); a == nil {
			return nil, noDecision("objects", cls.Name, i)
		}
	}
	return a, nil
}

func (c *AmmendableConfiguration) StaticsAbstractor(cls *vm.ClassInfo) (StaticsAbstractor, error) {
	a, err := c.Configuration.StaticsAbstractor(cls)
	if err != nil {
		return nil, err
	}
	for i, ammend := range c.statics {
		if a = ammend(cls, a); a == nil {
			return nil, noDecision("statics", cls.Name, i)
		}
	}
	return a, nil
}

func (c *AmmendableConfiguration) FrameAbstractor(m *vm.MethodInfo) (FrameAbstractor, error) {
	a, err := c.Configuration.FrameAbstractor(m)
	if err != nil {
		return nil, err
	}
	for i, ammend := range c.frames {
		if a = ammend(m, a); a == nil {
			return nil, noDecision("frames", m.FullName(), i)
		}
	}
	return a, nil
}

func noDecision(kind, target string, i int) error {
	return &config.ConfigError{
		Key:    "abstractor." + kind,
		Value:  target,
		Reason: fmt.Sprintf("ammendment %v returned no abstractor", i),
	}
}

// Prepare resolves the abstractors of every class and method and builds their field masks,
// so that configuration errors surface before the search starts. Ids that do not fit in a
// type tag are rejected.
func Prepare(c Configuration, masks *fields.MaskCache, classes []*vm.ClassInfo, methods []*vm.MethodInfo) error {
	for _, cls := range classes {
		if err := checkID("class", cls.Name, cls.Id); err != nil {
			return err
		}
		if _, err := c.ObjectAbstractor(cls); err != nil {
			return err
		}
		if _, err := c.StaticsAbstractor(cls); err != nil {
			return err
		}
		if _, err := masks.Instance(cls); err != nil {
			return err
		}
		if _, err := masks.Static(cls); err != nil {
			return err
		}
	}
	for _, m := range methods {
		if err := checkID("method", m.FullName(), m.Id); err != nil {
			return err
		}
		if _, err := c.FrameAbstractor(m); err != nil {
			return err
		}
	}
	return nil
}

func checkID(kind, name string, id int) error {
	if id < 0 || id > stategraph.MaxClassID {
		return &config.ConfigError{
			Key:    kind + "." + name,
			Value:  strconv.Itoa(id),
			Reason: "id does not fit in a type tag",
		}
	}
	return nil
}
