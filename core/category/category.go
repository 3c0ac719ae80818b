package category

import (
	"strconv"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-portal/core/resource"
)

type Category struct {
	ID              int         `json:"id"`
	Nom             string      `json:"nom"`
	Description     null.String `json:"description"`
	FormationsCount int         `json:"formations_count,omitempty"`
}

func ID(c Category) string { return strconv.Itoa(c.ID) }

type Form struct {
	Nom         string `json:"nom" validate:"required,max=100"`
	Description string `json:"description,omitempty"`
}

type Client struct {
	*resource.Client[Category]
}

// NewClient returns the /api/categories client.
// Deleting a category that still has formations requires resource.DeleteOptions{Force: true}.
func NewClient(tr *resource.Transport, notifier resource.Notifier) (*Client, error) {
	c, err := resource.New(resource.Options[Category]{
		Transport: tr,
		Endpoint:  "/api/categories",
		ID:        ID,
		Notifier:  notifier,
		Labels: resource.Labels{
			Created: "Catégorie créée avec succès",
			Updated: "Catégorie mise à jour avec succès",
			Deleted: "Catégorie supprimée avec succès",
		},
	})
	if err != nil {
		return nil, err
	}
	return &Client{Client: c}, nil
}
