package course

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/forms"
	"github.com/trezcool/masomo-portal/core/resource"
)

// Client manages /api/courses and the teacher's own list (/api/my-courses).
type Client struct {
	*resource.Client[Course]
	mine *resource.Client[Course]
}

func NewClient(tr *resource.Transport, notifier resource.Notifier) (*Client, error) {
	labels := resource.Labels{
		Created: "Cours créé avec succès",
		Updated: "Cours mis à jour avec succès",
		Deleted: "Cours supprimé avec succès",
	}
	all, err := resource.New(resource.Options[Course]{
		Transport: tr,
		Endpoint:  "/api/courses",
		ID:        ID,
		Notifier:  notifier,
		Labels:    labels,
	})
	if err != nil {
		return nil, err
	}
	mine, err := resource.New(resource.Options[Course]{
		Transport:    tr,
		Endpoint:     "/api/courses",
		ListEndpoint: "/api/my-courses",
		ID:           ID,
		Notifier:     notifier,
		Labels:       labels,
	})
	if err != nil {
		return nil, err
	}
	return &Client{Client: all, mine: mine}, nil
}

// Mine is the list of the courses of the logged in teacher.
// Mutations made through it refresh /api/my-courses.
func (c *Client) Mine() *resource.Client[Course] { return c.mine }

// Save creates (id == "") or updates a course. The image, if any, is uploaded with a multipart request.
func (c *Client) Save(ctx context.Context, id string, form Form, image *resource.File) (Course, error) {
	if id != "" {
		return c.Update(ctx, id, form)
	}
	return c.CreateMultipart(ctx, form.Fields(), image)
}

// FormPanel is the course form. The values being typed are kept as a draft in the session
// (courseFormDraft) until the course is created.
type FormPanel struct {
	*forms.Panel[Form, Course]
	session *auth.Session
}

func NewFormPanel(c *Client, session *auth.Session, validate *validator.Validate, translator ut.Translator) *FormPanel {
	fp := &FormPanel{session: session}
	fp.Panel = forms.NewPanel(forms.Options[Form, Course]{
		Create: func(ctx context.Context, values Form) (Course, error) {
			return c.Save(ctx, "", values, nil)
		},
		Update: func(ctx context.Context, id string, values Form) (Course, error) {
			return c.Save(ctx, id, values, nil)
		},
		Validate:   validate,
		Translator: translator,
		OnChange: func(values Form) {
			if _, editing := fp.Editing(); !editing {
				_ = session.SaveDraft(context.Background(), auth.KeyCourseFormDraft, values)
			}
		},
		OnSuccess: func(_ Course, created bool) {
			if created {
				_ = session.ClearDraft(context.Background(), auth.KeyCourseFormDraft)
			}
		},
	})
	return fp
}

// OpenNew opens the panel in create mode, restoring the draft if there is one.
func (fp *FormPanel) OpenNew(ctx context.Context) (restored bool) {
	var draft Form
	found, _ := fp.session.Draft(ctx, auth.KeyCourseFormDraft, &draft)
	fp.Panel.OpenNew(draft)
	return found
}
