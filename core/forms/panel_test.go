package forms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/resource"
)

type gradeForm struct {
	Grade   float64 `json:"grade" validate:"grade"`
	Comment string  `json:"comment" validate:"max=20"`
}

func TestPanel_Submit(t *testing.T) {
	validate, translator := core.NewValidator()
	errAPI := errors.New("Erreur HTTP: 500")

	var created, updated []gradeForm
	var updatedIDs []string
	var failNext bool
	var successes []bool

	p := NewPanel(Options[gradeForm, gradeForm]{
		Create: func(_ context.Context, v gradeForm) (gradeForm, error) {
			if failNext {
				return gradeForm{}, errAPI
			}
			created = append(created, v)
			return v, nil
		},
		Update: func(_ context.Context, id string, v gradeForm) (gradeForm, error) {
			updatedIDs = append(updatedIDs, id)
			updated = append(updated, v)
			return v, nil
		},
		Validate:   validate,
		Translator: translator,
		OnSuccess:  func(_ gradeForm, created bool) { successes = append(successes, created) },
	})
	ctx := context.Background()

	_, err := p.Submit(ctx)
	assert.Equal(t, ErrClosed, err)

	// invalid values keep the panel open
	p.OpenNew(gradeForm{Grade: 21})
	_, err = p.Submit(ctx)
	require.Error(t, err)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.FieldMap(), "grade")
	assert.True(t, p.IsOpen())
	assert.Empty(t, created)

	// API failure keeps the panel open with its values
	p.Set(func(v *gradeForm) { v.Grade = 15.5 })
	failNext = true
	_, err = p.Submit(ctx)
	assert.Equal(t, errAPI, err)
	assert.True(t, p.IsOpen())
	assert.Equal(t, 15.5, p.Values().Grade)
	assert.Equal(t, errAPI, p.Err())

	// success closes
	failNext = false
	rec, err := p.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15.5, rec.Grade)
	assert.False(t, p.IsOpen())
	assert.Equal(t, gradeForm{}, p.Values())
	assert.Len(t, created, 1)
	assert.Equal(t, []bool{true}, successes)

	// edit mode calls Update
	p.Open("12", gradeForm{Grade: 10, Comment: "Bien"})
	id, editing := p.Editing()
	assert.True(t, editing)
	assert.Equal(t, "12", id)
	_, err = p.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"12"}, updatedIDs)
	assert.Equal(t, []gradeForm{{Grade: 10, Comment: "Bien"}}, updated)
	assert.Equal(t, []bool{true, false}, successes)
}

func TestPanel_Submit_refreshFails(t *testing.T) {
	errRefresh := &resource.RefreshError{Err: errors.New("Erreur HTTP: 500")}
	var calls int
	p := NewPanel(Options[gradeForm, gradeForm]{
		Create: func(_ context.Context, v gradeForm) (gradeForm, error) {
			calls++
			return v, errRefresh
		},
	})
	p.OpenNew(gradeForm{Grade: 12})

	rec, err := p.Submit(context.Background())
	assert.Equal(t, errRefresh, err)
	assert.Equal(t, 12.0, rec.Grade)
	assert.False(t, p.IsOpen(), "the record was saved")

	_, err = p.Submit(context.Background())
	assert.Equal(t, ErrClosed, err)
	assert.Equal(t, 1, calls)
}

func TestPanel_OnChange(t *testing.T) {
	var changes []gradeForm
	p := NewPanel(Options[gradeForm, gradeForm]{
		Create:   func(_ context.Context, v gradeForm) (gradeForm, error) { return v, nil },
		OnChange: func(v gradeForm) { changes = append(changes, v) },
	})
	p.OpenNew(gradeForm{})
	p.Set(func(v *gradeForm) { v.Comment = "Très bien" })
	p.Set(func(v *gradeForm) { v.Grade = 18 })
	assert.Equal(t, []gradeForm{{Comment: "Très bien"}, {Grade: 18, Comment: "Très bien"}}, changes)

	p.Close()
	assert.False(t, p.IsOpen())
}
