package sandboxapi

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/chapter"
	"github.com/trezcool/masomo-portal/core/course"
	"github.com/trezcool/masomo-portal/core/enrollment"
)

var errCourseNotEmpty = echo.NewHTTPError(http.StatusConflict, "Ce cours contient des chapitres")

func registerCourseAPI(g *echo.Group, api *api) {
	staff := roleMiddleware(auth.RoleTeacher, auth.RoleAdmin)

	g.GET("/my-courses", api.myCourses)

	cg := g.Group("/courses")
	cg.GET("", api.queryCourses)
	cg.POST("", api.createCourse, staff)
	cg.GET("/:id", api.retrieveCourse)
	cg.PUT("/:id", api.updateCourse, staff)
	cg.DELETE("/:id", api.destroyCourse, staff)
}

func (api *api) queryCourses(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.db.Courses.All())
}

// myCourses returns the courses taught by a teacher, or the courses of the formations a student is enrolled in.
func (api *api) myCourses(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if usr.Role == auth.RoleStudent {
		formations := make(map[int]bool)
		for _, e := range api.db.Enrollments.Filter(func(e enrollment.Enrollment) bool {
			return e.UserID.Int == usr.ID && e.Status != enrollment.StatusCancelled
		}) {
			formations[e.FormationID] = true
		}
		return ctx.JSON(http.StatusOK, api.db.Courses.Filter(func(c course.Course) bool { return formations[c.FormationID.Int] }))
	}
	return ctx.JSON(http.StatusOK, api.db.Courses.Filter(func(c course.Course) bool { return c.TeacherID.Int == usr.ID }))
}

// bindCourse reads a course.Form from a JSON or a multipart body. The uploaded image (if any) is "stored"
// and its path returned.
func (api *api) bindCourse(ctx echo.Context) (data course.Form, image string, err error) {
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		data.Title = ctx.FormValue("title")
		data.Description = ctx.FormValue("description")
		data.FormationID, _ = strconv.Atoi(ctx.FormValue("formation_id"))
		data.CategoryID, _ = strconv.Atoi(ctx.FormValue("category_id"))
		if fh, fErr := ctx.FormFile("image"); fErr == nil {
			image = "/storage/courses/" + uuid.NewString() + filepath.Ext(fh.Filename)
		} else if fErr != http.ErrMissingFile {
			return data, "", errors.Wrap(fErr, "reading image")
		}
	} else if err = ctx.Bind(&data); err != nil {
		return data, "", errors.Wrap(err, "binding to course.Form")
	}

	if err = api.validate(data); err != nil {
		return data, "", err
	}
	if _, fErr := api.db.Formations.Get(data.FormationID); fErr != nil {
		return data, "", core.NewValidationError(errors.New("formulaire invalide"), core.FieldError{Field: "formation_id", Error: "formation inconnue"})
	}
	return data, image, nil
}

func applyCourse(c *course.Course, data course.Form, image string) {
	c.Title = core.CleanString(data.Title)
	c.Description = null.NewString(data.Description, data.Description != "")
	c.FormationID = nullID(data.FormationID)
	c.CategoryID = nullID(data.CategoryID)
	if image != "" {
		c.Image = null.StringFrom(image)
	}
	c.UpdatedAt = core.NewTime(time.Now())
}

func (api *api) createCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	data, image, err := api.bindCourse(ctx)
	if err != nil {
		return err
	}
	c := course.Course{CreatedAt: core.NewTime(time.Now())}
	if usr.Role == auth.RoleTeacher {
		c.TeacherID = null.IntFrom(usr.ID)
	}
	applyCourse(&c, data, image)
	return ctx.JSON(http.StatusCreated, api.db.Courses.Insert(c))
}

// getOwnedCourse returns the course if `usr` may edit it (its teacher or an admin).
func (api *api) getOwnedCourse(ctx echo.Context, usr User) (course.Course, error) {
	id, err := paramID(ctx, "id")
	if err != nil {
		return course.Course{}, err
	}
	c, err := api.db.Courses.Get(id)
	if err != nil {
		return c, err
	}
	if !canEditCourse(c, usr) {
		return c, errHttpForbidden
	}
	return c, nil
}

func (api *api) retrieveCourse(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	c, err := api.db.Courses.Get(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *api) updateCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	c, err := api.getOwnedCourse(ctx, usr)
	if err != nil {
		return err
	}
	data, image, err := api.bindCourse(ctx)
	if err != nil {
		return err
	}
	c, err = api.db.Courses.Update(c.ID, func(c *course.Course) { applyCourse(c, data, image) })
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *api) destroyCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	c, err := api.getOwnedCourse(ctx, usr)
	if err != nil {
		return err
	}
	inCourse := func(ch chapter.Chapter) bool { return ch.CourseID == c.ID }
	if api.db.Chapters.Count(inCourse) > 0 && !bindDelete(ctx).Force {
		return errCourseNotEmpty
	}
	api.db.Chapters.DeleteWhere(inCourse)
	api.db.Evaluations.DeleteWhere(func(e evaluationRow) bool { return e.CourseID == c.ID })
	api.db.Courses.Delete(c.ID)
	return ctx.NoContent(http.StatusNoContent)
}
