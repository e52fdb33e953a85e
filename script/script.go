package script

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/sharedref/errors"
)

// Op is a scenario step operation.
type Op string

const (
	OpNew        Op = "new"
	OpNull       Op = "new-null"
	OpClone      Op = "clone"
	OpAssign     Op = "assign"
	OpRelease    Op = "release"
	OpReleaseAll Op = "release-all"
	OpGet        Op = "get"
	OpValid      Op = "valid"
	OpCount      Op = "count"
)

// Script is a named sequence of handle operations over int64 values.
type Script struct {
	Expect      *Expect `yaml:"expect,omitempty"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Steps       []Step  `yaml:"steps"`
	Atomic      bool    `yaml:"atomic,omitempty"`
}

// Step is one operation. Handle names the handle operated on; From names
// the source handle for clone and assign.
type Step struct {
	Value  *int64  `yaml:"value,omitempty"`
	Expect *Expect `yaml:"expect,omitempty"`
	Op     Op      `yaml:"op"`
	Handle string  `yaml:"handle,omitempty"`
	From   string  `yaml:"from,omitempty"`
}

// Expect lists assertions checked after a step, or after the whole script.
// Retired counts values dropped so far; null pairs are not counted.
type Expect struct {
	Value   *int64 `yaml:"value,omitempty"`
	Count   *int64 `yaml:"count,omitempty"`
	Valid   *bool  `yaml:"valid,omitempty"`
	Retired *int64 `yaml:"retired,omitempty"`
	Error   string `yaml:"error,omitempty"`
}

// Parse decodes a scenario. Unknown fields are rejected.
func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		if err == io.EOF {
			return nil, errors.InvalidInput(errors.PhaseParse, "empty scenario")
		}
		return nil, errors.ParseFailed("scenario", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindNotFound, err, "read "+path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate checks that every step names what its operation needs.
func (s *Script) Validate() error {
	if s.Name == "" {
		return errors.InvalidInput(errors.PhaseParse, "scenario has no name")
	}
	if len(s.Steps) == 0 {
		return errors.InvalidInput(errors.PhaseParse, fmt.Sprintf("scenario %q has no steps", s.Name))
	}
	for i, st := range s.Steps {
		if err := st.validate(); err != nil {
			return errors.New(errors.PhaseParse, errors.KindInvalidInput).
				Path(s.Name, fmt.Sprint(i+1)).
				Detail("%s", err.Error()).
				Build()
		}
	}
	return nil
}

func (st Step) validate() error {
	switch st.Op {
	case OpNew:
		if st.Handle == "" || st.Value == nil {
			return fmt.Errorf("%s needs handle and value", st.Op)
		}
	case OpClone, OpAssign:
		if st.Handle == "" || st.From == "" {
			return fmt.Errorf("%s needs handle and from", st.Op)
		}
	case OpNull, OpRelease, OpGet, OpValid, OpCount:
		if st.Handle == "" {
			return fmt.Errorf("%s needs handle", st.Op)
		}
	case OpReleaseAll:
	case "":
		return fmt.Errorf("missing op")
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}
