package profile

import (
	"context"
	"encoding/json"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/forms"
	"github.com/trezcool/masomo-portal/core/resource"
)

type Kind string

const (
	KindStudent Kind = "student"
	KindTeacher Kind = "teacher"
)

// Profile is a student or teacher profile (/api/student-profiles, /api/teacher-profiles).
type Profile struct {
	ID          int         `json:"id"`
	UserID      null.Int    `json:"user_id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Role        string      `json:"role"`
	Phone       null.String `json:"phone"`
	Level       null.String `json:"level"`      // students
	Speciality  null.String `json:"speciality"` // teachers
	LastLoginAt core.Time   `json:"last_login_at"`
	CreatedAt   core.Time   `json:"created_at"`
}

// UnmarshalJSON accepts both "name" and "nom", and the user fields nested under "user".
func (p *Profile) UnmarshalJSON(b []byte) error {
	type alias Profile
	aux := struct {
		*alias
		Nom  string `json:"nom"`
		User *struct {
			Name        string    `json:"name"`
			Nom         string    `json:"nom"`
			Email       string    `json:"email"`
			Role        string    `json:"role"`
			LastLoginAt core.Time `json:"last_login_at"`
		} `json:"user"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if p.Name == "" {
		p.Name = aux.Nom
	}
	if u := aux.User; u != nil {
		if p.Name == "" {
			p.Name = u.Name
		}
		if p.Name == "" {
			p.Name = u.Nom
		}
		if p.Email == "" {
			p.Email = u.Email
		}
		if p.Role == "" {
			p.Role = u.Role
		}
		if p.LastLoginAt.IsZero() {
			p.LastLoginAt = u.LastLoginAt
		}
	}
	return nil
}

func ID(p Profile) string { return strconv.Itoa(p.ID) }

type Form struct {
	Name       string `json:"name" validate:"required,max=255"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password,omitempty" validate:"omitempty,min=8"`
	Phone      string `json:"phone,omitempty" validate:"max=30"`
	Level      string `json:"level,omitempty"`
	Speciality string `json:"speciality,omitempty"`
}

func FormFrom(p Profile) Form {
	return Form{
		Name:       p.Name,
		Email:      p.Email,
		Phone:      p.Phone.String,
		Level:      p.Level.String,
		Speciality: p.Speciality.String,
	}
}

type Client struct {
	*resource.Client[Profile]
	kind Kind
}

func NewClient(tr *resource.Transport, notifier resource.Notifier, kind Kind) (*Client, error) {
	endpoint := "/api/student-profiles"
	labels := resource.Labels{
		Created: "Élève ajouté avec succès",
		Updated: "Profil de l'élève mis à jour",
		Deleted: "Élève supprimé",
	}
	if kind == KindTeacher {
		endpoint = "/api/teacher-profiles"
		labels = resource.Labels{
			Created: "Enseignant ajouté avec succès",
			Updated: "Profil de l'enseignant mis à jour",
			Deleted: "Enseignant supprimé",
		}
	}
	c, err := resource.New(resource.Options[Profile]{
		Transport: tr,
		Endpoint:  endpoint,
		ID:        ID,
		Notifier:  notifier,
		Labels:    labels,
	})
	if err != nil {
		return nil, err
	}
	return &Client{Client: c, kind: kind}, nil
}

func (c *Client) Kind() Kind { return c.kind }

// NewFormPanel returns the create/edit form of the profiles managed by `c`.
func NewFormPanel(c *Client, validate *validator.Validate, translator ut.Translator) *forms.Panel[Form, Profile] {
	return forms.NewPanel(forms.Options[Form, Profile]{
		Create: func(ctx context.Context, values Form) (Profile, error) {
			values.Email = core.CleanString(values.Email, true /* lower */)
			return c.Create(ctx, values)
		},
		Update: func(ctx context.Context, id string, values Form) (Profile, error) {
			values.Email = core.CleanString(values.Email, true /* lower */)
			return c.Update(ctx, id, values)
		},
		Validate:   validate,
		Translator: translator,
	})
}
