package enrollment

import (
	"context"
	"strconv"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/formation"
	"github.com/trezcool/masomo-portal/core/resource"
)

// Statuses
const (
	StatusActive    = "active"
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

type Enrollment struct {
	ID          int                  `json:"id"`
	FormationID int                  `json:"formation_id"`
	UserID      null.Int             `json:"user_id"`
	Status      string               `json:"status"`
	EnrolledAt  core.Time            `json:"enrolled_at"`
	Formation   *formation.Formation `json:"formation,omitempty"`
}

func ID(e Enrollment) string { return strconv.Itoa(e.ID) }

func (e Enrollment) IsActive() bool { return e.Status == StatusActive }

type Form struct {
	FormationID int `json:"formation_id" validate:"required,gt=0"`
	UserID      int `json:"user_id,omitempty" validate:"gte=0"`
}

// Client manages /api/formation-enrollments (all enrollments, admins)
// and /api/user/enrollments (the logged in user's).
type Client struct {
	*resource.Client[Enrollment]
	mine *resource.Client[Enrollment]
}

func NewClient(tr *resource.Transport, notifier resource.Notifier) (*Client, error) {
	labels := resource.Labels{
		Created: "Inscription réussie",
		Updated: "Inscription mise à jour",
		Deleted: "Inscription annulée",
	}
	all, err := resource.New(resource.Options[Enrollment]{
		Transport: tr,
		Endpoint:  "/api/formation-enrollments",
		ID:        ID,
		Notifier:  notifier,
		Labels:    labels,
	})
	if err != nil {
		return nil, err
	}
	mine, err := resource.New(resource.Options[Enrollment]{
		Transport:    tr,
		Endpoint:     "/api/formation-enrollments",
		ListEndpoint: "/api/user/enrollments",
		ID:           ID,
		Notifier:     notifier,
		Labels:       labels,
	})
	if err != nil {
		return nil, err
	}
	return &Client{Client: all, mine: mine}, nil
}

func (c *Client) Mine() *resource.Client[Enrollment] { return c.mine }

// Enroll enrolls the logged in user in a formation and refreshes their enrollments.
func (c *Client) Enroll(ctx context.Context, formationID int) (Enrollment, error) {
	return c.mine.Create(ctx, Form{FormationID: formationID})
}

// IsEnrolled reports whether the user's listed enrollments include an active one for the formation.
func (c *Client) IsEnrolled(formationID int) bool {
	for _, e := range c.mine.Items() {
		if e.FormationID == formationID && e.IsActive() {
			return true
		}
	}
	return false
}
