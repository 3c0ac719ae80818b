// Package forms holds the state of the create/edit panels.
package forms

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/resource"
)

var ErrClosed = errors.New("le formulaire est fermé")

type Options[F any, R any] struct {
	Create     func(ctx context.Context, values F) (R, error)
	Update     func(ctx context.Context, id string, values F) (R, error) // nil for create-only panels
	Validate   *validator.Validate
	Translator ut.Translator
	OnChange   func(values F) // called after each Set
	OnSuccess  func(rec R, created bool)
}

// Panel is an open/closed form mirroring one record.
// It closes after a successful submit and stays open (keeping its values) after a failure.
// A Panel is meant to be driven by one view and is not safe for concurrent use.
type Panel[F any, R any] struct {
	opts   Options[F, R]
	open   bool
	editID string
	values F
	err    error
}

func NewPanel[F any, R any](opts Options[F, R]) *Panel[F, R] {
	return &Panel[F, R]{opts: opts}
}

// OpenNew opens the panel to create a record, starting from `initial`.
func (p *Panel[F, R]) OpenNew(initial F) {
	p.open = true
	p.editID = ""
	p.values = initial
	p.err = nil
}

// Open opens the panel to edit the record `id`.
func (p *Panel[F, R]) Open(id string, values F) {
	p.OpenNew(values)
	p.editID = id
}

func (p *Panel[F, R]) IsOpen() bool { return p.open }

// Editing returns the id of the edited record; ok is false in create mode.
func (p *Panel[F, R]) Editing() (id string, ok bool) {
	return p.editID, p.editID != ""
}

func (p *Panel[F, R]) Values() F { return p.values }

// Err returns the error of the last submit.
func (p *Panel[F, R]) Err() error { return p.err }

func (p *Panel[F, R]) Set(fn func(values *F)) {
	fn(&p.values)
	if p.opts.OnChange != nil {
		p.opts.OnChange(p.values)
	}
}

func (p *Panel[F, R]) Close() {
	var zero F
	p.open = false
	p.editID = ""
	p.values = zero
	p.err = nil
}

// Submit validates the values then creates or updates the record.
// The panel also closes when the record was saved but the list refresh failed; that error is still returned.
func (p *Panel[F, R]) Submit(ctx context.Context) (R, error) {
	var rec R
	if !p.open {
		return rec, ErrClosed
	}

	if p.opts.Validate != nil {
		if err := core.ValidateStruct(p.opts.Validate, p.opts.Translator, p.values); err != nil {
			p.err = err
			return rec, err
		}
	}

	var err error
	id, editing := p.Editing()
	created := !editing || p.opts.Update == nil
	if created {
		rec, err = p.opts.Create(ctx, p.values)
	} else {
		rec, err = p.opts.Update(ctx, id, p.values)
	}
	// a refresh error means the record was saved: submitting again would duplicate it
	if err != nil && !resource.IsRefreshError(err) {
		p.err = err
		return rec, err
	}

	p.Close()
	if p.opts.OnSuccess != nil {
		p.opts.OnSuccess(rec, created)
	}
	return rec, err
}
