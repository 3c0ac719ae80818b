package evaluation

import (
	"context"
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/sendgrid/rest"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/forms"
	"github.com/trezcool/masomo-portal/core/resource"
)

// Evaluation is the grade given by a teacher to a student for a course. There is one per (course, student).
type Evaluation struct {
	CourseID    int       `json:"course_id"`
	StudentID   int       `json:"student_id"`
	Grade       float64   `json:"grade"`
	Comment     string    `json:"comment"`
	EvaluatedAt core.Time `json:"evaluated_at"`
}

type Form struct {
	Grade   float64 `json:"grade" validate:"grade"`
	Comment string  `json:"comment" validate:"max=1000"`
}

func FormFrom(e Evaluation) Form {
	return Form{Grade: e.Grade, Comment: e.Comment}
}

type Client struct {
	tr       *resource.Transport
	notifier resource.Notifier
}

func NewClient(tr *resource.Transport, notifier resource.Notifier) *Client {
	return &Client{tr: tr, notifier: notifier}
}

func path(courseID, studentID int) string {
	return fmt.Sprintf("/api/evaluations/%d/%d", courseID, studentID)
}

// Get returns the evaluation of a student for a course. found is false if the student was not evaluated yet.
func (c *Client) Get(ctx context.Context, courseID, studentID int) (eval Evaluation, found bool, err error) {
	if err = c.tr.Do(ctx, rest.Get, path(courseID, studentID), nil, &eval); err != nil {
		if core.IsNotFound(err) {
			return Evaluation{CourseID: courseID, StudentID: studentID}, false, nil
		}
		c.notify(err)
		return eval, false, err
	}
	return eval, true, nil
}

// Save creates or replaces the evaluation of a student for a course.
func (c *Client) Save(ctx context.Context, courseID, studentID int, form Form) (Evaluation, error) {
	form.Comment = core.CleanString(form.Comment)
	var eval Evaluation
	if err := c.tr.Do(ctx, rest.Put, path(courseID, studentID), form, &eval); err != nil {
		c.notify(err)
		return eval, err
	}
	if c.notifier != nil {
		c.notifier.Success("Évaluation enregistrée")
	}
	return eval, nil
}

func (c *Client) notify(err error) {
	if c.notifier != nil {
		c.notifier.Error(resource.UserMessage(err))
	}
}

// FormPanel grades one student for one course. Creating and editing both save with PUT.
type FormPanel struct {
	*forms.Panel[Form, Evaluation]
	c         *Client
	courseID  int
	studentID int
}

func NewFormPanel(c *Client, courseID, studentID int, validate *validator.Validate, translator ut.Translator) *FormPanel {
	save := func(ctx context.Context, values Form) (Evaluation, error) {
		return c.Save(ctx, courseID, studentID, values)
	}
	return &FormPanel{
		Panel: forms.NewPanel(forms.Options[Form, Evaluation]{
			Create:     save,
			Update:     func(ctx context.Context, _ string, values Form) (Evaluation, error) { return save(ctx, values) },
			Validate:   validate,
			Translator: translator,
		}),
		c:         c,
		courseID:  courseID,
		studentID: studentID,
	}
}

// Load opens the panel on the current evaluation, in edit mode when the student was already graded.
func (fp *FormPanel) Load(ctx context.Context) error {
	eval, found, err := fp.c.Get(ctx, fp.courseID, fp.studentID)
	if err != nil {
		return err
	}
	if found {
		fp.Open(fmt.Sprintf("%d/%d", fp.courseID, fp.studentID), FormFrom(eval))
	} else {
		fp.OpenNew(Form{})
	}
	return nil
}
