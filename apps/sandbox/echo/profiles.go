package sandboxapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/enrollment"
	"github.com/trezcool/masomo-portal/core/profile"
)

const errEmailExists = "cet email est déjà utilisé"

type profileApi struct {
	*api
	role string
}

func registerProfileAPI(g *echo.Group, a *api) {
	for path, role := range map[string]string{
		"/student-profiles": auth.RoleStudent,
		"/teacher-profiles": auth.RoleTeacher,
	} {
		papi := profileApi{api: a, role: role}
		pg := g.Group(path)
		pg.GET("", papi.query, roleMiddleware(auth.RoleAdmin, auth.RoleTeacher))
		pg.POST("", papi.create, adminMiddleware())
		pg.GET("/:id", papi.retrieve, roleMiddleware(auth.RoleAdmin, auth.RoleTeacher))
		pg.PUT("/:id", papi.update, adminMiddleware())
		pg.DELETE("/:id", papi.destroy, adminMiddleware())
	}
}

func (api *profileApi) query(ctx echo.Context) error {
	users := api.db.Users.Filter(func(u User) bool { return u.Role == api.role })
	profiles := make([]profile.Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (api *profileApi) get(ctx echo.Context) (User, error) {
	id, err := paramID(ctx, "id")
	if err != nil {
		return User{}, err
	}
	usr, err := api.db.Users.Get(id)
	if err != nil || usr.Role != api.role {
		return User{}, errHttpNotFound
	}
	return usr, nil
}

func (api *profileApi) checkEmail(email string, excludedID int) error {
	if usr, err := api.db.UserByEmail(email); err == nil && usr.ID != excludedID {
		return core.NewValidationError(errors.New("formulaire invalide"), core.FieldError{Field: "email", Error: errEmailExists})
	}
	return nil
}

func (api *profileApi) create(ctx echo.Context) error {
	var data profile.Form
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to profile.Form")
	}
	if err := api.validate(data); err != nil {
		return err
	}
	if err := api.checkEmail(data.Email, 0); err != nil {
		return err
	}

	pwd := data.Password
	if pwd == "" {
		pwd = uuid.NewString() // the user resets it on first login
	}
	usr, err := api.db.CreateUser(core.CleanString(data.Name), data.Email, api.role, pwd, api.bcryptCost, time.Now())
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	usr, err = api.db.Users.Update(usr.ID, func(u *User) {
		u.Phone = data.Phone
		u.Level = data.Level
		u.Speciality = data.Speciality
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, usr.Profile())
}

func (api *profileApi) retrieve(ctx echo.Context) error {
	usr, err := api.get(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr.Profile())
}

func (api *profileApi) update(ctx echo.Context) error {
	usr, err := api.get(ctx)
	if err != nil {
		return err
	}
	var data profile.Form
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to profile.Form")
	}
	if err = api.validate(data); err != nil {
		return err
	}
	if err = api.checkEmail(data.Email, usr.ID); err != nil {
		return err
	}

	var hash []byte
	if data.Password != "" {
		if hash, err = bcrypt.GenerateFromPassword([]byte(data.Password), api.bcryptCost); err != nil {
			return errors.Wrap(err, "hashing password")
		}
	}
	usr, err = api.db.Users.Update(usr.ID, func(u *User) {
		u.Name = core.CleanString(data.Name)
		u.Email = core.CleanString(data.Email, true /* lower */)
		u.Phone = data.Phone
		u.Level = data.Level
		u.Speciality = data.Speciality
		if hash != nil {
			u.PasswordHash = hash
		}
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr.Profile())
}

func (api *profileApi) destroy(ctx echo.Context) error {
	usr, err := api.get(ctx)
	if err != nil {
		return err
	}
	api.db.Users.Delete(usr.ID)
	api.db.Enrollments.DeleteWhere(func(e enrollment.Enrollment) bool { return e.UserID.Int == usr.ID })
	return ctx.NoContent(http.StatusNoContent)
}
