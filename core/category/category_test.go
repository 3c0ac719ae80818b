package category_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/category"
	"github.com/trezcool/masomo-portal/core/resource"
	"github.com/trezcool/masomo-portal/tests"
)

func TestClient_Delete(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewLoggedInEnv(t, testutil.AdminEmail)
	c, err := category.NewClient(env.Transport, env.Toaster)
	require.NoError(t, err)

	cats, err := c.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, "Sciences", cats[0].Nom)
	assert.Equal(t, 2, cats[0].FormationsCount)

	tests := []struct {
		name      string
		id        string
		opts      []resource.DeleteOptions
		wantCode  int
		wantCount int
	}{
		{name: "has formations", id: "1", wantCode: http.StatusConflict, wantCount: 3},
		{name: "force", id: "1", opts: []resource.DeleteOptions{{Force: true}}, wantCount: 2},
		{name: "empty", id: "3", wantCount: 1},
		{name: "unknown", id: "42", wantCode: http.StatusNotFound, wantCount: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := c.Delete(ctx, tc.id, tc.opts...)
			if tc.wantCode != 0 {
				require.Error(t, err)
				assert.True(t, core.IsHTTPStatus(err, tc.wantCode))
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, c.Items(), tc.wantCount)
		})
	}
}

func TestClient_CreateUpdate(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewLoggedInEnv(t, testutil.AdminEmail)
	c, err := category.NewClient(env.Transport, nil)
	require.NoError(t, err)

	cat, err := c.Create(ctx, category.Form{Nom: "Arts", Description: "Dessin et musique"})
	require.NoError(t, err)
	assert.Equal(t, "Dessin et musique", cat.Description.String)

	cat, err = c.Update(ctx, category.ID(cat), category.Form{Nom: "Arts plastiques"})
	require.NoError(t, err)
	assert.Equal(t, "Arts plastiques", cat.Nom)
	assert.False(t, cat.Description.Valid)

	found, ok := c.Find(category.ID(cat))
	require.True(t, ok)
	assert.Equal(t, "Arts plastiques", found.Nom)
}
