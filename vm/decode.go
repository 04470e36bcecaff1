package vm

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type snapshotDoc struct {
	Classes []classDoc                  `yaml:"classes"`
	Methods []methodDoc                 `yaml:"methods"`
	Objects []objectDoc                 `yaml:"objects"`
	Threads []threadDoc                 `yaml:"threads"`
	Statics map[string]map[string]int64 `yaml:"statics"`
	Pinned  []int32                     `yaml:"pinned"`
}

type fieldDoc struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Annotations []string `yaml:"annotations"`
}

type classDoc struct {
	Name    string     `yaml:"name"`
	Fields  []fieldDoc `yaml:"fields"`
	Statics []fieldDoc `yaml:"statics"`
	// Array is the element type of array classes
	Array string `yaml:"array"`
}

type methodDoc struct {
	Class string `yaml:"class"`
	Name  string `yaml:"name"`
}

type objectDoc struct {
	Ref      int32            `yaml:"ref"`
	Class    string           `yaml:"class"`
	Fields   map[string]int64 `yaml:"fields"`
	Elements []int64          `yaml:"elements"`
}

type valueDoc struct {
	Value int32 `yaml:"value"`
	Ref   bool  `yaml:"ref"`
}

type frameDoc struct {
	Method   string     `yaml:"method"`
	PC       int        `yaml:"pc"`
	Locals   []valueDoc `yaml:"locals"`
	Operands []valueDoc `yaml:"operands"`
}

type threadDoc struct {
	Object int32      `yaml:"object"`
	Status string     `yaml:"status"`
	Frames []frameDoc `yaml:"frames"`
}

// DecodeSnapshot reads a YAML description of a live state.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var doc snapshotDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("vm: decoding snapshot: %w", err)
	}

	s := NewSnapshot()
	for _, cd := range doc.Classes {
		if cd.Array != "" {
			elem, ok := ParseFieldType(cd.Array)
			if !ok {
				return nil, fmt.Errorf("vm: class %v: unknown element type %v", cd.Name, cd.Array)
			}
			s.DefineArrayClass(cd.Name, elem)
			continue
		}
		fields, err := fieldDecls(cd.Name, cd.Fields)
		if err != nil {
			return nil, err
		}
		statics, err := fieldDecls(cd.Name, cd.Statics)
		if err != nil {
			return nil, err
		}
		s.DefineClass(cd.Name, fields, statics)
	}

	methods := map[string]*MethodInfo{}
	for _, md := range doc.Methods {
		cls, err := s.Class(md.Class)
		if err != nil {
			return nil, err
		}
		m := s.DefineMethod(cls, md.Name)
		methods[m.FullName()] = m
	}

	for _, od := range doc.Objects {
		cls, err := s.Class(od.Class)
		if err != nil {
			return nil, err
		}
		if cls.IsArray {
			ei := s.NewArrayAt(od.Ref, cls, len(od.Elements))
			for i, v := range od.Elements {
				setValue(ei.Slots, &FieldInfo{Type: cls.ElementType, Slot: i * cls.ElementType.Slots()}, v)
			}
			continue
		}
		ei := s.NewObjectAt(od.Ref, cls)
		for name, v := range od.Fields {
			f := fieldNamed(cls.Fields, name)
			if f == nil {
				return nil, fmt.Errorf("vm: class %v has no field %v", cls.Name, name)
			}
			setValue(ei.Slots, f, v)
		}
	}

	for className, values := range doc.Statics {
		cls, err := s.Class(className)
		if err != nil {
			return nil, err
		}
		for name, v := range values {
			f := fieldNamed(cls.StaticFields, name)
			if f == nil {
				return nil, fmt.Errorf("vm: class %v has no static field %v", cls.Name, name)
			}
			setValue(s.statics[cls.Id].Slots, f, v)
		}
	}

	for _, td := range doc.Threads {
		status, ok := parseThreadStatus(td.Status)
		if !ok {
			return nil, fmt.Errorf("vm: unknown thread status %v", td.Status)
		}
		ti := s.AddThread(td.Object, status)
		for _, fd := range td.Frames {
			m, ok := methods[fd.Method]
			if !ok {
				return nil, fmt.Errorf("vm: unknown method %v", fd.Method)
			}
			sf := s.PushFrame(ti, m, fd.PC)
			for i, v := range fd.Locals {
				sf.SetLocal(i, v.Value, v.Ref)
			}
			for _, v := range fd.Operands {
				sf.Push(v.Value, v.Ref)
			}
		}
	}

	for _, ref := range doc.Pinned {
		s.Pin(ref)
	}
	return s, nil
}

func fieldDecls(class string, docs []fieldDoc) ([]FieldDecl, error) {
	decls := make([]FieldDecl, 0, len(docs))
	for _, fd := range docs {
		t, ok := ParseFieldType(fd.Type)
		if !ok {
			return nil, fmt.Errorf("vm: field %v.%v: unknown type %v", class, fd.Name, fd.Type)
		}
		decls = append(decls, FieldDecl{Name: fd.Name, Type: t, Annotations: fd.Annotations})
	}
	return decls, nil
}

func parseThreadStatus(name string) (ThreadStatus, bool) {
	if name == "" {
		return Running, true
	}
	for i, n := range threadStatusNames {
		if n == name {
			return ThreadStatus(i), true
		}
	}
	return 0, false
}
