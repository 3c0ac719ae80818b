package chapter

import (
	"context"
	"sort"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/sendgrid/rest"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-portal/core/forms"
	"github.com/trezcool/masomo-portal/core/resource"
)

type Chapter struct {
	ID              int         `json:"id"`
	CourseID        int         `json:"course_id"`
	Titre           string      `json:"titre"`
	Description     null.String `json:"description"`
	OrderIndex      int         `json:"order_index"`
	DurationMinutes int         `json:"duration_minutes"`
	IsRead          bool        `json:"is_read"`
	ContentPath     null.String `json:"content_path"`
}

func ID(c Chapter) string { return strconv.Itoa(c.ID) }

type Form struct {
	Titre           string `json:"titre" validate:"required,max=255"`
	Description     string `json:"description,omitempty"`
	OrderIndex      int    `json:"order_index" validate:"gte=0"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0,lte=1440"`
}

func FormFrom(c Chapter) Form {
	return Form{
		Titre:           c.Titre,
		Description:     c.Description.String,
		OrderIndex:      c.OrderIndex,
		DurationMinutes: c.DurationMinutes,
	}
}

// Client manages the chapters of one course.
type Client struct {
	*resource.Client[Chapter]
	courseID int
}

func NewClient(tr *resource.Transport, notifier resource.Notifier, courseID int) (*Client, error) {
	c, err := resource.New(resource.Options[Chapter]{
		Transport: tr,
		Endpoint:  "/api/courses/" + strconv.Itoa(courseID) + "/chapters",
		ItemPath:  func(id string) string { return "/api/chapters/" + id },
		ID:        ID,
		Notifier:  notifier,
		Labels: resource.Labels{
			Created: "Chapitre ajouté avec succès",
			Updated: "Chapitre mis à jour avec succès",
			Deleted: "Chapitre supprimé avec succès",
		},
	})
	if err != nil {
		return nil, err
	}
	return &Client{Client: c, courseID: courseID}, nil
}

func (c *Client) CourseID() int { return c.courseID }

// Ordered returns the listed chapters by order_index.
func (c *Client) Ordered() []Chapter {
	chapters := c.Items()
	sort.SliceStable(chapters, func(i, j int) bool { return chapters[i].OrderIndex < chapters[j].OrderIndex })
	return chapters
}

// MarkRead marks a chapter as read for the logged in student.
func (c *Client) MarkRead(ctx context.Context, id int) error {
	sid := strconv.Itoa(id)
	if err := c.Transport().Do(ctx, rest.Post, "/api/chapters/"+sid+"/mark-read", nil, nil); err != nil {
		c.Notifier().Error(resource.UserMessage(err))
		return err
	}
	c.UpdateLocal(sid, func(ch *Chapter) { ch.IsRead = true })
	return nil
}

// Progress returns the number of read chapters and the read percentage (0 without chapters).
func (c *Client) Progress() (read int, percent float64) {
	chapters := c.Items()
	for _, ch := range chapters {
		if ch.IsRead {
			read++
		}
	}
	if len(chapters) == 0 {
		return 0, 0
	}
	return read, float64(read) * 100 / float64(len(chapters))
}

// NewFormPanel returns the chapter form of the course managed by `c`.
// A zero order_index puts a new chapter last.
func NewFormPanel(c *Client, validate *validator.Validate, translator ut.Translator) *forms.Panel[Form, Chapter] {
	return forms.NewPanel(forms.Options[Form, Chapter]{
		Create:     func(ctx context.Context, values Form) (Chapter, error) { return c.Create(ctx, values) },
		Update:     func(ctx context.Context, id string, values Form) (Chapter, error) { return c.Update(ctx, id, values) },
		Validate:   validate,
		Translator: translator,
	})
}
