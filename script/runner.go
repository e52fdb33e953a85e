package script

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/sharedref/errors"
	"github.com/wippyai/sharedref/handle"
)

// Report is the outcome of a scenario run.
type Report struct {
	Name        string
	Lines       []string
	Retired     int64
	RetiredNull int64
	Created     int64
	Mode        handle.CountMode
}

// Runner executes scenarios.
type Runner struct {
	logger *zap.Logger
	opts   []handle.Option
}

// NewRunner creates a runner. A nil logger disables logging. opts apply to
// every handle a scenario creates; a scenario marked atomic always gets an
// atomic count.
func NewRunner(logger *zap.Logger, opts ...handle.Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, opts: opts}
}

// run is the state of one scenario execution.
type run struct {
	script  *Script
	tracker *handle.Tracker
	handles map[string]*handle.Shared[int64]
	order   []string
	report  *Report
	opts    []handle.Option
}

// Run executes s. Handles still owned when the steps end are released in
// reverse order of definition, then the scenario-level expectations and a
// leak check are applied.
func (r *Runner) Run(ctx context.Context, s *Script) (*Report, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	st := &run{
		script:  s,
		tracker: &handle.Tracker{},
		handles: make(map[string]*handle.Shared[int64]),
		report:  &Report{Name: s.Name},
	}
	st.opts = append(slices.Clone(r.opts), handle.WithObserver(st.tracker))
	if s.Atomic {
		st.opts = append(st.opts, handle.WithAtomicCount())
	}

	log := r.logger.With(zap.String("scenario", s.Name))
	log.Debug("scenario started", zap.Int("steps", len(s.Steps)), zap.Bool("atomic", s.Atomic))

	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			st.releaseAll()
			return st.finish(), err
		}
		path := []string{s.Name, fmt.Sprint(i + 1)}
		if err := st.exec(path, step); err != nil {
			log.Debug("scenario failed", zap.Int("step", i+1), zap.Error(err))
			st.releaseAll()
			return st.finish(), err
		}
	}

	st.releaseAll()
	report := st.finish()

	if s.Expect != nil && s.Expect.Retired != nil && *s.Expect.Retired != report.Retired {
		return report, errors.Assertion([]string{s.Name}, "retired = %d, want %d", report.Retired, *s.Expect.Retired)
	}
	if live := st.tracker.Live(); live != 0 {
		return report, errors.Assertion([]string{s.Name}, "%d pair(s) leaked", live)
	}

	log.Debug("scenario passed", zap.Int64("retired", report.Retired))
	return report, nil
}

func (st *run) exec(path []string, step Step) error {
	var (
		got    *int64
		opErr  error
		target *handle.Shared[int64]
		err    error
	)

	switch step.Op {
	case OpNew:
		v := *step.Value
		st.define(step.Handle, handle.New(&v, st.opts...))
		st.logf("new %s = %d", step.Handle, v)

	case OpNull:
		st.define(step.Handle, handle.Null[int64](st.opts...))
		st.logf("null %s", step.Handle)

	case OpClone:
		src, err := st.lookup(path, step.From)
		if err != nil {
			return err
		}
		st.define(step.Handle, src.Clone())
		st.logf("clone %s <- %s (count %d)", step.Handle, step.From, src.UseCount())

	case OpAssign:
		if target, err = st.lookup(path, step.Handle); err != nil {
			return err
		}
		src, err := st.lookup(path, step.From)
		if err != nil {
			return err
		}
		before := st.tracker.Retired()
		target.Assign(src)
		st.logf("assign %s = %s (count %d)%s", step.Handle, step.From, target.UseCount(), retiredNote(st.tracker.Retired()-before))

	case OpRelease:
		if target, err = st.lookup(path, step.Handle); err != nil {
			return err
		}
		retired := target.Release()
		note := ""
		if retired {
			note = " retired"
		}
		st.logf("release %s%s", step.Handle, note)

	case OpReleaseAll:
		st.releaseAll()

	case OpGet:
		if target, err = st.lookup(path, step.Handle); err != nil {
			return err
		}
		v, err := target.Get()
		if err != nil {
			opErr = err
			st.logf("get %s -> %s", step.Handle, errors.KindOf(err))
		} else {
			got = &v
			st.logf("get %s = %d", step.Handle, v)
		}

	case OpValid:
		if target, err = st.lookup(path, step.Handle); err != nil {
			return err
		}
		st.logf("valid %s = %t", step.Handle, target.Valid())

	case OpCount:
		if target, err = st.lookup(path, step.Handle); err != nil {
			return err
		}
		st.logf("count %s = %d", step.Handle, target.UseCount())
	}

	if target == nil && step.Handle != "" {
		target = st.handles[step.Handle]
	}
	return st.check(path, step, target, got, opErr)
}

func (st *run) check(path []string, step Step, target *handle.Shared[int64], got *int64, opErr error) error {
	exp := step.Expect
	if exp == nil || exp.Error == "" {
		if opErr != nil {
			return errors.New(errors.PhaseScript, errors.KindAssertion).
				Path(path...).
				Cause(opErr).
				Detail("unexpected error on %s %s", step.Op, step.Handle).
				Build()
		}
	} else {
		kind := errors.KindOf(opErr)
		if string(kind) != exp.Error {
			return errors.Assertion(path, "error = %q, want %q", kind, exp.Error)
		}
	}
	if exp == nil {
		return nil
	}

	if exp.Value != nil {
		if got == nil && target != nil {
			if v, err := target.Get(); err == nil {
				got = &v
			}
		}
		if got == nil {
			return errors.Assertion(path, "no value, want %d", *exp.Value)
		}
		if *got != *exp.Value {
			return errors.Assertion(path, "value = %d, want %d", *got, *exp.Value)
		}
	}
	if exp.Count != nil {
		if n := target.UseCount(); n != *exp.Count {
			return errors.Assertion(path, "count = %d, want %d", n, *exp.Count)
		}
	}
	if exp.Valid != nil {
		if v := target.Valid(); v != *exp.Valid {
			return errors.Assertion(path, "valid = %t, want %t", v, *exp.Valid)
		}
	}
	if exp.Retired != nil {
		if n := st.tracker.Retired(); n != *exp.Retired {
			return errors.Assertion(path, "retired = %d, want %d", n, *exp.Retired)
		}
	}
	return nil
}

// define binds name to h, releasing whatever the name held before.
func (st *run) define(name string, h *handle.Shared[int64]) {
	if prev, ok := st.handles[name]; ok {
		prev.Release()
		st.order = slices.DeleteFunc(st.order, func(n string) bool { return n == name })
	}
	if len(st.handles) == 0 {
		st.report.Mode = h.Mode()
	}
	st.handles[name] = h
	st.order = append(st.order, name)
}

func (st *run) lookup(path []string, name string) (*handle.Shared[int64], error) {
	h, ok := st.handles[name]
	if !ok {
		return nil, errors.New(errors.PhaseScript, errors.KindNotFound).
			Path(path...).
			Detail("handle %q is not defined", name).
			Build()
	}
	return h, nil
}

// releaseAll ends the scope: owners are released newest first.
func (st *run) releaseAll() {
	for i := len(st.order) - 1; i >= 0; i-- {
		name := st.order[i]
		if h := st.handles[name]; h.Attached() {
			if h.Release() {
				st.logf("release %s retired", name)
			} else {
				st.logf("release %s", name)
			}
		}
	}
}

func (st *run) finish() *Report {
	st.report.Retired = st.tracker.Retired()
	st.report.RetiredNull = st.tracker.RetiredNull()
	st.report.Created = st.tracker.Created()
	return st.report
}

func (st *run) logf(format string, args ...any) {
	st.report.Lines = append(st.report.Lines, fmt.Sprintf(format, args...))
}

func retiredNote(n int64) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf(", %d retired", n)
}
