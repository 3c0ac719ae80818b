package sandboxapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/category"
	"github.com/trezcool/masomo-portal/core/course"
	"github.com/trezcool/masomo-portal/core/formation"
)

var errCategoryNotEmpty = echo.NewHTTPError(http.StatusConflict, "Cette catégorie contient des formations")

type deleteRequest struct {
	Force bool `json:"force"`
}

// bindDelete reads the optional {"force": true} body (or ?force=true).
func bindDelete(ctx echo.Context) deleteRequest {
	var data deleteRequest
	_ = (&echo.DefaultBinder{}).BindBody(ctx, &data)
	if f, err := strconv.ParseBool(ctx.QueryParam("force")); err == nil && f {
		data.Force = true
	}
	return data
}

func nullID(id int) null.Int {
	return null.NewInt(id, id > 0)
}

func registerCatalogAPI(g *echo.Group, api *api) {
	cg := g.Group("/categories")
	cg.GET("", api.queryCategories)
	cg.POST("", api.createCategory, adminMiddleware())
	cg.GET("/:id", api.retrieveCategory)
	cg.PUT("/:id", api.updateCategory, adminMiddleware())
	cg.DELETE("/:id", api.destroyCategory, adminMiddleware())
	cg.GET("/:id/formations", api.categoryFormations)

	fg := g.Group("/formations")
	fg.GET("", api.queryFormations)
	fg.POST("", api.createFormation, adminMiddleware())
	fg.GET("/:id", api.retrieveFormation)
	fg.PUT("/:id", api.updateFormation, adminMiddleware())
	fg.DELETE("/:id", api.destroyFormation, adminMiddleware())
}

// Categories

func (api *api) withCategoryCounts(c category.Category) category.Category {
	c.FormationsCount = api.db.Formations.Count(func(f formation.Formation) bool { return f.CategoryID.Int == c.ID })
	return c
}

func (api *api) queryCategories(ctx echo.Context) error {
	cats := api.db.Categories.All()
	for i := range cats {
		cats[i] = api.withCategoryCounts(cats[i])
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *api) createCategory(ctx echo.Context) error {
	var data category.Form
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to category.Form")
	}
	if err := api.validate(data); err != nil {
		return err
	}
	cat := api.db.Categories.Insert(category.Category{
		Nom:         core.CleanString(data.Nom),
		Description: null.NewString(data.Description, data.Description != ""),
	})
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *api) retrieveCategory(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	cat, err := api.db.Categories.Get(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.withCategoryCounts(cat))
}

func (api *api) updateCategory(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data category.Form
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to category.Form")
	}
	if err = api.validate(data); err != nil {
		return err
	}
	cat, err := api.db.Categories.Update(id, func(c *category.Category) {
		c.Nom = core.CleanString(data.Nom)
		c.Description = null.NewString(data.Description, data.Description != "")
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.withCategoryCounts(cat))
}

func (api *api) destroyCategory(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.db.Categories.Get(id); err != nil {
		return err
	}
	inCategory := func(f formation.Formation) bool { return f.CategoryID.Int == id }
	if api.db.Formations.Count(inCategory) > 0 {
		if !bindDelete(ctx).Force {
			return errCategoryNotEmpty
		}
		for _, f := range api.db.Formations.Filter(inCategory) {
			_, _ = api.db.Formations.Update(f.ID, func(f *formation.Formation) { f.CategoryID = null.Int{} })
		}
	}
	api.db.Categories.Delete(id)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *api) categoryFormations(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.db.Categories.Get(id); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.formations(func(f formation.Formation) bool { return f.CategoryID.Int == id }))
}

// Formations

func (api *api) withFormationCounts(f formation.Formation) formation.Formation {
	f.CoursesCount = api.db.Courses.Count(func(c course.Course) bool { return c.FormationID.Int == f.ID })
	return f
}

func (api *api) formations(fn func(formation.Formation) bool) []formation.Formation {
	fs := api.db.Formations.Filter(fn)
	for i := range fs {
		fs[i] = api.withFormationCounts(fs[i])
	}
	return fs
}

func (api *api) queryFormations(ctx echo.Context) error {
	catID, _ := strconv.Atoi(ctx.QueryParam("category"))
	return ctx.JSON(http.StatusOK, api.formations(func(f formation.Formation) bool {
		return catID <= 0 || f.CategoryID.Int == catID
	}))
}

func (api *api) bindFormation(ctx echo.Context) (formation.Form, error) {
	var data formation.Form
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to formation.Form")
	}
	if err := api.validate(data); err != nil {
		return data, err
	}
	if data.CategoryID > 0 {
		if _, err := api.db.Categories.Get(data.CategoryID); err != nil {
			return data, core.NewValidationError(errors.New("formulaire invalide"), core.FieldError{Field: "category_id", Error: "catégorie inconnue"})
		}
	}
	return data, nil
}

func applyFormation(f *formation.Formation, data formation.Form) {
	f.Title = core.CleanString(data.Title)
	f.Description = null.NewString(data.Description, data.Description != "")
	f.CategoryID = nullID(data.CategoryID)
	f.Price = data.Price
	f.DurationHours = data.DurationHours
	f.DifficultyLevel = data.DifficultyLevel
}

func (api *api) createFormation(ctx echo.Context) error {
	data, err := api.bindFormation(ctx)
	if err != nil {
		return err
	}
	f := formation.Formation{CreatedAt: core.NewTime(time.Now())}
	applyFormation(&f, data)
	return ctx.JSON(http.StatusCreated, api.db.Formations.Insert(f))
}

func (api *api) retrieveFormation(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	f, err := api.db.Formations.Get(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.withFormationCounts(f))
}

func (api *api) updateFormation(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	data, err := api.bindFormation(ctx)
	if err != nil {
		return err
	}
	f, err := api.db.Formations.Update(id, func(f *formation.Formation) { applyFormation(f, data) })
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.withFormationCounts(f))
}

func (api *api) destroyFormation(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if api.db.Formations.Delete(id) == 0 {
		return errHttpNotFound
	}
	for _, c := range api.db.Courses.Filter(func(c course.Course) bool { return c.FormationID.Int == id }) {
		_, _ = api.db.Courses.Update(c.ID, func(c *course.Course) { c.FormationID = null.Int{} })
	}
	return ctx.NoContent(http.StatusNoContent)
}
