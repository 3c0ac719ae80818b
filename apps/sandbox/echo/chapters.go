package sandboxapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/chapter"
	"github.com/trezcool/masomo-portal/core/course"
)

func registerChapterAPI(g *echo.Group, api *api) {
	staff := roleMiddleware(auth.RoleTeacher, auth.RoleAdmin)

	g.GET("/courses/:id/chapters", api.queryChapters)
	g.POST("/courses/:id/chapters", api.createChapter, staff)

	cg := g.Group("/chapters")
	cg.GET("/:id", api.retrieveChapter)
	cg.PUT("/:id", api.updateChapter, staff)
	cg.DELETE("/:id", api.destroyChapter, staff)
	cg.POST("/:id/mark-read", api.markChapterRead)
}

// withReadState sets is_read for `usr`.
func (api *api) withReadState(ch chapter.Chapter, usr User) chapter.Chapter {
	ch.IsRead = api.db.isRead(ch.ID, usr.ID)
	return ch
}

func (api *api) queryChapters(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.db.Courses.Get(id); err != nil {
		return err
	}
	chapters := api.db.Chapters.Filter(func(ch chapter.Chapter) bool { return ch.CourseID == id })
	for i := range chapters {
		chapters[i] = api.withReadState(chapters[i], usr)
	}
	return ctx.JSON(http.StatusOK, chapters)
}

func (api *api) bindChapter(ctx echo.Context) (chapter.Form, error) {
	var data chapter.Form
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to chapter.Form")
	}
	return data, api.validate(data)
}

func applyChapter(ch *chapter.Chapter, data chapter.Form) {
	ch.Titre = core.CleanString(data.Titre)
	ch.Description = null.NewString(data.Description, data.Description != "")
	ch.OrderIndex = data.OrderIndex
	ch.DurationMinutes = data.DurationMinutes
}

// canEditCourse reports whether `usr` teaches the course or is an admin.
func canEditCourse(c course.Course, usr User) bool {
	return usr.IsAdmin() || c.TeacherID.Int == usr.ID
}

func (api *api) createChapter(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	c, err := api.getOwnedCourse(ctx, usr)
	if err != nil {
		return err
	}
	data, err := api.bindChapter(ctx)
	if err != nil {
		return err
	}
	ch := chapter.Chapter{CourseID: c.ID}
	applyChapter(&ch, data)
	if ch.OrderIndex == 0 {
		ch.OrderIndex = api.db.Chapters.Count(func(o chapter.Chapter) bool { return o.CourseID == c.ID }) + 1
	}
	return ctx.JSON(http.StatusCreated, api.db.Chapters.Insert(ch))
}

func (api *api) getChapter(ctx echo.Context) (chapter.Chapter, error) {
	id, err := paramID(ctx, "id")
	if err != nil {
		return chapter.Chapter{}, err
	}
	return api.db.Chapters.Get(id)
}

func (api *api) retrieveChapter(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	ch, err := api.getChapter(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.withReadState(ch, usr))
}

func (api *api) getOwnedChapter(ctx echo.Context, usr User) (chapter.Chapter, error) {
	ch, err := api.getChapter(ctx)
	if err != nil {
		return ch, err
	}
	c, err := api.db.Courses.Get(ch.CourseID)
	if err != nil {
		return ch, err
	}
	if !canEditCourse(c, usr) {
		return ch, errHttpForbidden
	}
	return ch, nil
}

func (api *api) updateChapter(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	ch, err := api.getOwnedChapter(ctx, usr)
	if err != nil {
		return err
	}
	data, err := api.bindChapter(ctx)
	if err != nil {
		return err
	}
	ch, err = api.db.Chapters.Update(ch.ID, func(ch *chapter.Chapter) { applyChapter(ch, data) })
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.withReadState(ch, usr))
}

func (api *api) destroyChapter(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	ch, err := api.getOwnedChapter(ctx, usr)
	if err != nil {
		return err
	}
	api.db.Chapters.Delete(ch.ID)
	api.db.reads.DeleteWhere(func(r chapterRead) bool { return r.ChapterID == ch.ID })
	return ctx.NoContent(http.StatusNoContent)
}

func (api *api) markChapterRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	ch, err := api.getChapter(ctx)
	if err != nil {
		return err
	}
	api.db.markRead(ch.ID, usr.ID)
	return ctx.JSON(http.StatusOK, api.withReadState(ch, usr))
}
