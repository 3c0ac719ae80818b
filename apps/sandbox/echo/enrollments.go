package sandboxapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/enrollment"
)

func registerEnrollmentAPI(g *echo.Group, api *api) {
	g.GET("/user/enrollments", api.myEnrollments)

	eg := g.Group("/formation-enrollments")
	eg.GET("", api.queryEnrollments, adminMiddleware())
	eg.POST("", api.createEnrollment)
	eg.GET("/:id", api.retrieveEnrollment)
	eg.DELETE("/:id", api.destroyEnrollment)
}

// withFormation nests the enrolled formation.
func (api *api) withFormation(e enrollment.Enrollment) enrollment.Enrollment {
	if f, err := api.db.Formations.Get(e.FormationID); err == nil {
		f = api.withFormationCounts(f)
		e.Formation = &f
	}
	return e
}

func (api *api) enrollments(fn func(enrollment.Enrollment) bool) []enrollment.Enrollment {
	es := api.db.Enrollments.Filter(fn)
	for i := range es {
		es[i] = api.withFormation(es[i])
	}
	return es
}

func (api *api) queryEnrollments(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.enrollments(func(enrollment.Enrollment) bool { return true }))
}

func (api *api) myEnrollments(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.enrollments(func(e enrollment.Enrollment) bool { return e.UserID.Int == usr.ID }))
}

// createEnrollment enrolls the current user, or `user_id` when the current user is an admin.
func (api *api) createEnrollment(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data enrollment.Form
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to enrollment.Form")
	}
	if err = api.validate(data); err != nil {
		return err
	}

	uid := usr.ID
	if data.UserID > 0 && data.UserID != usr.ID {
		if !usr.IsAdmin() {
			return errHttpForbidden
		}
		if _, err = api.db.Users.Get(data.UserID); err != nil {
			return core.NewValidationError(errors.New("formulaire invalide"), core.FieldError{Field: "user_id", Error: "utilisateur inconnu"})
		}
		uid = data.UserID
	}
	if _, err = api.db.Formations.Get(data.FormationID); err != nil {
		return core.NewValidationError(errors.New("formulaire invalide"), core.FieldError{Field: "formation_id", Error: "formation inconnue"})
	}
	enrolled := api.db.Enrollments.Count(func(e enrollment.Enrollment) bool {
		return e.UserID.Int == uid && e.FormationID == data.FormationID && e.Status != enrollment.StatusCancelled
	})
	if enrolled > 0 {
		return core.NewValidationError(errors.New("déjà inscrit à cette formation"),
			core.FieldError{Field: "formation_id", Error: "déjà inscrit à cette formation"})
	}

	e := api.db.Enrollments.Insert(enrollment.Enrollment{
		FormationID: data.FormationID,
		UserID:      null.IntFrom(uid),
		Status:      enrollment.StatusActive,
		EnrolledAt:  core.NewTime(time.Now()),
	})
	return ctx.JSON(http.StatusCreated, api.withFormation(e))
}

// getOwnEnrollment returns the enrollment if it belongs to `usr` or `usr` is an admin.
func (api *api) getOwnEnrollment(ctx echo.Context, usr User) (enrollment.Enrollment, error) {
	id, err := paramID(ctx, "id")
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	e, err := api.db.Enrollments.Get(id)
	if err != nil {
		return e, err
	}
	if !usr.IsAdmin() && e.UserID.Int != usr.ID {
		return e, errHttpNotFound
	}
	return e, nil
}

func (api *api) retrieveEnrollment(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	e, err := api.getOwnEnrollment(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.withFormation(e))
}

func (api *api) destroyEnrollment(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	e, err := api.getOwnEnrollment(ctx, usr)
	if err != nil {
		return err
	}
	api.db.Enrollments.Delete(e.ID)
	return ctx.NoContent(http.StatusNoContent)
}
