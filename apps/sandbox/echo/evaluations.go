package sandboxapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/evaluation"
)

var errNotEvaluated = echo.NewHTTPError(http.StatusNotFound, "Aucune évaluation")

func registerEvaluationAPI(g *echo.Group, api *api) {
	eg := g.Group("/evaluations/:courseId/:studentId")
	eg.GET("", api.retrieveEvaluation)
	eg.PUT("", api.saveEvaluation, roleMiddleware(auth.RoleTeacher, auth.RoleAdmin))
}

type evaluationTarget struct {
	courseID  int
	studentID int
	canEdit   bool
}

func (api *api) evaluationTarget(ctx echo.Context) (evaluationTarget, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return evaluationTarget{}, err
	}
	courseID, err := paramID(ctx, "courseId")
	if err != nil {
		return evaluationTarget{}, err
	}
	studentID, err := paramID(ctx, "studentId")
	if err != nil {
		return evaluationTarget{}, err
	}
	c, err := api.db.Courses.Get(courseID)
	if err != nil {
		return evaluationTarget{}, err
	}
	student, err := api.db.Users.Get(studentID)
	if err != nil || student.Role != auth.RoleStudent {
		return evaluationTarget{}, errHttpNotFound
	}

	t := evaluationTarget{courseID: courseID, studentID: studentID, canEdit: canEditCourse(c, usr)}
	if !t.canEdit && usr.ID != studentID {
		return t, errHttpForbidden
	}
	return t, nil
}

func (api *api) retrieveEvaluation(ctx echo.Context) error {
	t, err := api.evaluationTarget(ctx)
	if err != nil {
		return err
	}
	row, err := api.db.findEvaluation(t.courseID, t.studentID)
	if err != nil {
		return errNotEvaluated
	}
	return ctx.JSON(http.StatusOK, row.Evaluation)
}

// saveEvaluation creates or replaces the evaluation.
func (api *api) saveEvaluation(ctx echo.Context) error {
	t, err := api.evaluationTarget(ctx)
	if err != nil {
		return err
	}
	if !t.canEdit {
		return errHttpForbidden
	}
	var data evaluation.Form
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to evaluation.Form")
	}
	if err = api.validate(data); err != nil {
		return err
	}

	eval := evaluation.Evaluation{
		CourseID:    t.courseID,
		StudentID:   t.studentID,
		Grade:       data.Grade,
		Comment:     core.CleanString(data.Comment),
		EvaluatedAt: core.NewTime(time.Now()),
	}
	if row, fErr := api.db.findEvaluation(t.courseID, t.studentID); fErr == nil {
		if _, err = api.db.Evaluations.Update(row.ID, func(r *evaluationRow) { r.Evaluation = eval }); err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, eval)
	}
	api.db.Evaluations.Insert(evaluationRow{Evaluation: eval})
	return ctx.JSON(http.StatusCreated, eval)
}
