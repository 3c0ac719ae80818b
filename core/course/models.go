package course

import (
	"strconv"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-portal/core"
)

type Course struct {
	ID          int         `json:"id"`
	Title       string      `json:"title"`
	Description null.String `json:"description"`
	FormationID null.Int    `json:"formation_id"`
	CategoryID  null.Int    `json:"category_id"`
	TeacherID   null.Int    `json:"teacher_id"`
	Image       null.String `json:"image"`
	CreatedAt   core.Time   `json:"created_at"`
	UpdatedAt   core.Time   `json:"updated_at"`
}

func ID(c Course) string { return strconv.Itoa(c.ID) }

// Form is the create/edit course form.
type Form struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description,omitempty" validate:"max=5000"`
	FormationID int    `json:"formation_id" validate:"required,gt=0"`
	CategoryID  int    `json:"category_id,omitempty" validate:"gte=0"`
}

func FormFrom(c Course) Form {
	return Form{
		Title:       c.Title,
		Description: c.Description.String,
		FormationID: c.FormationID.Int,
		CategoryID:  c.CategoryID.Int,
	}
}

// Fields returns the form as multipart fields.
func (f Form) Fields() map[string]string {
	flds := map[string]string{
		"title":        core.CleanString(f.Title),
		"formation_id": strconv.Itoa(f.FormationID),
	}
	if f.Description != "" {
		flds["description"] = f.Description
	}
	if f.CategoryID > 0 {
		flds["category_id"] = strconv.Itoa(f.CategoryID)
	}
	return flds
}
