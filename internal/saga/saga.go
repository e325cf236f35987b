// saga — упорядоченный список шагов с компенсациями.
//
// Run выполняет шаги по порядку. При первой ошибке обязательного шага
// уже выполненные шаги компенсируются в обратном порядке. Ошибки компенсаций
// логируются и не подменяют исходную ошибку.
package saga

import (
	"context"
	"time"

	"github.com/pribylovaa/shop-auth/internal/pkg/log"
)

// State — состояние шага в отчёте.
type State string

const (
	StatePending            State = "pending"
	StateDone               State = "done"
	StateFailed             State = "failed"
	StateSkipped            State = "skipped"
	StateCompensated        State = "compensated"
	StateCompensationFailed State = "compensation_failed"
)

// Step — шаг саги.
// Compensate может быть nil, если шаг ничего не фиксирует.
// Ошибка Optional-шага не прерывает сагу: шаг помечается skipped.
type Step struct {
	Name       string
	Do         func(ctx context.Context) error
	Compensate func(ctx context.Context) error
	Optional   bool
}

// StepReport — итог одного шага.
type StepReport struct {
	Name  string
	State State
	Err   error
}

// Report — итог выполнения саги, шаги в порядке объявления.
type Report struct {
	Steps []StepReport
}

// State возвращает состояние шага по имени ("" — шага нет).
func (r Report) State(name string) State {
	for _, s := range r.Steps {
		if s.Name == name {
			return s.State
		}
	}

	return ""
}

// Saga описывает сагу и параметры компенсаций.
type Saga struct {
	Name  string
	Steps []Step
	// CompensationTimeout ограничивает каждую компенсацию; 0 — без ограничения.
	CompensationTimeout time.Duration
	// OnCompensation вызывается после каждой компенсации (err == nil — успешна).
	OnCompensation func(step string, err error)
}

// Run выполняет шаги саги и возвращает отчёт и ошибку упавшего шага.
// Отмена ctx между шагами считается ошибкой следующего шага.
func (s *Saga) Run(ctx context.Context) (Report, error) {
	rep := Report{Steps: make([]StepReport, len(s.Steps))}
	for i, st := range s.Steps {
		rep.Steps[i] = StepReport{Name: st.Name, State: StatePending}
	}

	for i, st := range s.Steps {
		err := ctx.Err()
		if err == nil {
			err = st.Do(ctx)
		}

		if err == nil {
			rep.Steps[i].State = StateDone
			continue
		}

		rep.Steps[i].Err = err

		if st.Optional && ctx.Err() == nil {
			rep.Steps[i].State = StateSkipped
			log.From(ctx).Warn("saga_step_skipped",
				"saga", s.Name,
				"step", st.Name,
				"err", err,
			)
			continue
		}

		rep.Steps[i].State = StateFailed
		s.compensate(ctx, &rep, i)

		return rep, err
	}

	return rep, nil
}

// compensate откатывает выполненные до failed шаги в обратном порядке.
// Компенсации не зависят от отмены родительского контекста.
func (s *Saga) compensate(ctx context.Context, rep *Report, failed int) {
	lg := log.From(ctx)
	base := context.WithoutCancel(ctx)

	for j := failed - 1; j >= 0; j-- {
		st := s.Steps[j]
		if rep.Steps[j].State != StateDone || st.Compensate == nil {
			continue
		}

		cctx, cancel := base, context.CancelFunc(func() {})
		if s.CompensationTimeout > 0 {
			cctx, cancel = context.WithTimeout(base, s.CompensationTimeout)
		}

		err := st.Compensate(cctx)
		cancel()

		if err != nil {
			rep.Steps[j].State = StateCompensationFailed
			rep.Steps[j].Err = err
			lg.Error("saga_compensation_failed",
				"saga", s.Name,
				"step", st.Name,
				"err", err,
			)
		} else {
			rep.Steps[j].State = StateCompensated
			lg.Info("saga_step_compensated",
				"saga", s.Name,
				"step", st.Name,
			)
		}

		if s.OnCompensation != nil {
			s.OnCompensation(st.Name, err)
		}
	}
}
