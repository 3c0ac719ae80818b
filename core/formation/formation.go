package formation

import (
	"context"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/sendgrid/rest"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/forms"
	"github.com/trezcool/masomo-portal/core/resource"
)

// Difficulty levels
const (
	LevelBeginner     = "debutant"
	LevelIntermediate = "intermediaire"
	LevelAdvanced     = "avance"
)

type Formation struct {
	ID              int         `json:"id"`
	Title           string      `json:"title"`
	Description     null.String `json:"description"`
	CategoryID      null.Int    `json:"category_id"`
	Price           float64     `json:"price"`
	DurationHours   int         `json:"duration_hours"`
	DifficultyLevel string      `json:"difficulty_level"`
	CoursesCount    int         `json:"courses_count,omitempty"`
	CreatedAt       core.Time   `json:"created_at"`
}

func ID(f Formation) string { return strconv.Itoa(f.ID) }

type Form struct {
	Title           string  `json:"title" validate:"required,max=255"`
	Description     string  `json:"description,omitempty"`
	CategoryID      int     `json:"category_id,omitempty" validate:"gte=0"`
	Price           float64 `json:"price" validate:"gte=0"`
	DurationHours   int     `json:"duration_hours" validate:"gte=0"`
	DifficultyLevel string  `json:"difficulty_level" validate:"required,difficulty"`
}

func FormFrom(f Formation) Form {
	return Form{
		Title:           f.Title,
		Description:     f.Description.String,
		CategoryID:      f.CategoryID.Int,
		Price:           f.Price,
		DurationHours:   f.DurationHours,
		DifficultyLevel: f.DifficultyLevel,
	}
}

type Client struct {
	*resource.Client[Formation]
}

func NewClient(tr *resource.Transport, notifier resource.Notifier) (*Client, error) {
	c, err := resource.New(resource.Options[Formation]{
		Transport: tr,
		Endpoint:  "/api/formations",
		ID:        ID,
		Notifier:  notifier,
		Labels: resource.Labels{
			Created: "Formation créée avec succès",
			Updated: "Formation mise à jour avec succès",
			Deleted: "Formation supprimée avec succès",
		},
	})
	if err != nil {
		return nil, err
	}
	return &Client{Client: c}, nil
}

// ByCategory lists the formations of a category (/api/categories/{id}/formations).
// The main list is left untouched.
func (c *Client) ByCategory(ctx context.Context, categoryID int) ([]Formation, error) {
	res, err := c.Transport().Send(ctx, resource.Request{
		Method: rest.Get,
		Path:   "/api/categories/" + strconv.Itoa(categoryID) + "/formations",
	})
	if err != nil {
		c.Notifier().Error(resource.UserMessage(err))
		return nil, err
	}
	formations, _ := resource.DecodeList[Formation]([]byte(res.Body))
	return formations, nil
}

func NewFormPanel(c *Client, validate *validator.Validate, translator ut.Translator) *forms.Panel[Form, Formation] {
	return forms.NewPanel(forms.Options[Form, Formation]{
		Create:     func(ctx context.Context, values Form) (Formation, error) { return c.Create(ctx, values) },
		Update:     func(ctx context.Context, id string, values Form) (Formation, error) { return c.Update(ctx, id, values) },
		Validate:   validate,
		Translator: translator,
	})
}
