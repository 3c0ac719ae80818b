package sandboxapi

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-portal/core/auth"
)

const contextUserKey = "user"

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated.")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusUnauthorized, "Identifiants invalides")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "Accès refusé")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "Ressource introuvable")
	errTokenSigningFailed   = errors.New("failed to sign token")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Role string `json:"role,omitempty"`
}

type tokenIssuer struct {
	appName    string
	secretKey  []byte
	expiration time.Duration

	mu      sync.RWMutex
	revoked map[string]struct{} // token ids
}

func newTokenIssuer(appName string, secretKey []byte, expiration time.Duration) *tokenIssuer {
	return &tokenIssuer{
		appName:    appName,
		secretKey:  secretKey,
		expiration: expiration,
		revoked:    make(map[string]struct{}),
	}
}

func (ti *tokenIssuer) claims(usr User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Issuer:    ti.appName,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: now.Add(ti.expiration).Unix(),
			IssuedAt:  now.Unix(),
		},
		Role: usr.Role,
	}
}

// GenerateToken generates a signed JWT token string for `usr`.
func (ti *tokenIssuer) GenerateToken(usr User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ti.claims(usr))
	ss, err := token.SignedString(ti.secretKey)
	if err != nil {
		return "", errTokenSigningFailed
	}
	return ss, nil
}

func (ti *tokenIssuer) parse(raw string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.secretKey, nil
	})
	if err != nil {
		return nil, err
	}
	if ti.isRevoked(claims.Id) {
		return nil, errors.New("token revoked")
	}
	return claims, nil
}

func (ti *tokenIssuer) revoke(id string) {
	ti.mu.Lock()
	ti.revoked[id] = struct{}{}
	ti.mu.Unlock()
}

func (ti *tokenIssuer) isRevoked(id string) bool {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	_, ok := ti.revoked[id]
	return ok
}

// jwtMiddleware authenticates requests bearing "Authorization: Bearer <jwt>" and loads the user.
func jwtMiddleware(ti *tokenIssuer, db *DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if raw == "" || raw == header {
				return errUnauthorized
			}
			claims, err := ti.parse(raw)
			if err != nil {
				return errUnauthorized
			}
			uid, err := strconv.Atoi(claims.Subject)
			if err != nil {
				return errUnauthorized
			}
			usr, err := db.Users.Get(uid)
			if err != nil {
				return errUnauthorized
			}
			ctx.Set("claims", claims)
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

func getContextUser(ctx echo.Context) (User, error) {
	if usr, ok := ctx.Get(contextUserKey).(User); ok {
		return usr, nil
	}
	return User{}, errUnauthorized
}

func getContextClaims(ctx echo.Context) (*Claims, error) {
	if claims, ok := ctx.Get("claims").(*Claims); ok {
		return claims, nil
	}
	return nil, errUnauthorized
}

// roleMiddleware only lets through users having one of `roles`. Super admins always pass.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if usr.Role == auth.RoleSuperAdmin {
				return next(ctx)
			}
			for _, role := range roles {
				if usr.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(auth.RoleAdmin)
}

// Handlers

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  auth.User `json:"user"`
}

func (api *api) login(ctx echo.Context) error {
	var data loginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to loginRequest")
	}
	if err := api.validate(data); err != nil {
		return err
	}

	usr, err := api.db.UserByEmail(data.Email)
	if err != nil {
		return errAuthenticationFailed
	}
	if err := bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte(data.Password)); err != nil {
		return errAuthenticationFailed
	}

	usr, err = api.db.Users.Update(usr.ID, func(u *User) { u.LastLoginAt = api.now() })
	if err != nil {
		return errors.Wrap(err, "updating last login")
	}
	token, err := api.tokens.GenerateToken(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, loginResponse{Token: token, User: usr.AuthUser()})
}

func (api *api) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	api.tokens.revoke(claims.Id)
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Déconnecté"})
}

func (api *api) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr.AuthUser())
}
