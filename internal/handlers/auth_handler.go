package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emedical/clinic-api/internal/middleware"
	"github.com/emedical/clinic-api/internal/models"
	"github.com/emedical/clinic-api/internal/store"
	"github.com/emedical/clinic-api/internal/utils"
)

// AuthHandler serves the authentication routes of one principal collection.
type AuthHandler[T models.Principal] struct {
	h        *Handler
	store    store.Principals[T]
	resource string
	dataKey  string
	role     string
}

func NewUserAuth(h *Handler) *AuthHandler[*models.User] {
	return &AuthHandler[*models.User]{h: h, store: h.Users, resource: "users", dataKey: "user", role: models.RoleUser}
}

func NewDoctorAuth(h *Handler) *AuthHandler[*models.Doctor] {
	return &AuthHandler[*models.Doctor]{h: h, store: h.Doctors, resource: "doctors", dataKey: "doctor", role: models.RoleDoctor}
}

type PasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Decoder reads a signup body into a new principal and its password pair.
type Decoder[T models.Principal] func(c *gin.Context) (T, PasswordRequest, error)

// Signup creates a principal with the role of this collection, whatever the
// body says, and logs it in.
func (a *AuthHandler[T]) Signup(decode Decoder[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, pw, err := decode(c)
		if err != nil {
			fail(c, err)
			return
		}

		acc := doc.GetAccount()
		acc.Role = a.role
		acc.Email = models.NormalizeEmail(acc.Email)
		if err := acc.SetPassword(pw.Password, pw.PasswordConfirm, a.h.now(), true); err != nil {
			fail(c, err)
			return
		}
		if err := doc.Validate(); err != nil {
			fail(c, err)
			return
		}

		if err := a.store.Create(c.Request.Context(), doc); err != nil {
			fail(c, err)
			return
		}
		a.createSendToken(c, doc, http.StatusCreated)
	}
}

func (a *AuthHandler[T]) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		fail(c, utils.BadRequest("Please provide email and password"))
		return
	}

	doc, err := a.store.FindByEmail(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		fail(c, err)
		return
	}
	if err != nil {
		utils.CheckNoAccount(req.Password)
	}
	if err != nil || !doc.GetAccount().CorrectPassword(req.Password) {
		fail(c, utils.Unauthorized("Incorrect email or password"))
		return
	}
	a.createSendToken(c, doc, http.StatusOK)
}

func (a *AuthHandler[T]) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	doc, err := a.store.FindByEmail(ctx, req.Email)
	if err != nil {
		fail(c, orNotFound(err, "There is no user with this email address"))
		return
	}

	acc := doc.GetAccount()
	resetToken, err := acc.CreatePasswordResetToken(a.h.now())
	if err != nil {
		fail(c, err)
		return
	}
	if err := a.store.Save(ctx, doc); err != nil {
		fail(c, err)
		return
	}

	resetURL := fmt.Sprintf("%s://%s/api/v1/%s/resetPassword/%s", scheme(c), c.Request.Host, a.resource, resetToken)
	if err := a.h.NotificationSvc.SendPasswordReset(ctx, acc.Email, resetURL); err != nil {
		a.h.Logger.Error().Err(err).Str("request_id", middleware.RequestIDFrom(c)).Msg("failed to send password reset email")

		acc.ClearPasswordReset()
		if err := a.store.Save(ctx, doc); err != nil {
			a.h.Logger.Error().Err(err).Str("account", acc.ID.Hex()).Msg("failed to clear password reset token")
		}
		fail(c, utils.NewAppError("There was an error sending the email. Try again later!", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Token sent to email!",
	})
}

func (a *AuthHandler[T]) ResetPassword(c *gin.Context) {
	var req PasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	now := a.h.now()
	doc, err := a.store.FindByResetToken(ctx, utils.HashResetToken(c.Param("token")), now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = utils.BadRequest("Token is invalid or has expired")
		}
		fail(c, err)
		return
	}

	acc := doc.GetAccount()
	if err := acc.SetPassword(req.Password, req.PasswordConfirm, now, false); err != nil {
		fail(c, err)
		return
	}
	acc.ClearPasswordReset()
	if err := a.store.Save(ctx, doc); err != nil {
		fail(c, err)
		return
	}
	a.createSendToken(c, doc, http.StatusOK)
}

func (a *AuthHandler[T]) UpdateMyPassword(c *gin.Context) {
	var req struct {
		PasswordCurrent string `json:"passwordCurrent"`
		PasswordRequest
	}
	if !bindJSON(c, &req) {
		return
	}

	doc, ok := middleware.Current[T](c)
	if !ok {
		fail(c, utils.Unauthorized("You are not logged in! Please log in to get access."))
		return
	}

	acc := doc.GetAccount()
	if !acc.CorrectPassword(req.PasswordCurrent) {
		fail(c, utils.Unauthorized("Your current password is not correct"))
		return
	}
	if err := acc.SetPassword(req.Password, req.PasswordConfirm, a.h.now(), false); err != nil {
		fail(c, err)
		return
	}
	if err := a.store.Save(c.Request.Context(), doc); err != nil {
		fail(c, err)
		return
	}
	a.createSendToken(c, doc, http.StatusOK)
}

// createSendToken signs a session token and returns it both in the body and
// as an httpOnly cookie.
func (a *AuthHandler[T]) createSendToken(c *gin.Context, doc T, code int) {
	token, err := a.h.Tokens.Sign(doc.GetAccount().ID.Hex())
	if err != nil {
		fail(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token, int(a.h.opts.CookieTTL.Seconds()), "/", "", a.h.opts.Production, true)

	c.JSON(code, gin.H{
		"status": "success",
		"token":  token,
		"data":   gin.H{a.dataKey: doc},
	})
}

func scheme(c *gin.Context) string {
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		return "https"
	}
	return "http"
}
