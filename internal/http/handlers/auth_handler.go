// Identity HTTP handlers.
//
// This file exposes the registration, guest-creation, login, passphrase, and
// guardian endpoints:
//   - POST /auth/register
//   - POST /auth/create-guest
//   - POST /auth/login
//   - POST /auth/reset-passphrase
//   - POST /auth/update-deity
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-fortune-backend/internal/domain"
	"github.com/tbourn/go-fortune-backend/internal/services"
)

//
// DTOs
//

// RegisterRequest is the JSON payload for explicit registration.
//
// SessionID and Character are optional: when a guest registers mid-session
// they carry the guest buffer forward so the persona can greet the user with
// continuity from the last buffered message.
type RegisterRequest struct {
	Nickname   string `json:"nickname" binding:"required" example:"Aoi"`
	BirthYear  int    `json:"birthYear" binding:"required" example:"2000"`
	BirthMonth int    `json:"birthMonth" binding:"required" example:"5"`
	BirthDay   int    `json:"birthDay" binding:"required" example:"10"`
	Gender     string `json:"gender" example:"female"`
	SessionID  string `json:"sessionId" example:"7f1a3c44-9d2e-4f0b-a2c8-1f66a81d5b1e"`
	Character  string `json:"character" example:"kaede"`
}

// RegisterResponse reports the resolved user. Warning marks the
// nickname-conflict outcome; WelcomeMessage is present when a guest session
// was migrated during registration.
type RegisterResponse struct {
	UserID         uint   `json:"userId,omitempty"`
	Nickname       string `json:"nickname"`
	Message        string `json:"message"`
	Warning        bool   `json:"warning,omitempty"`
	WelcomeMessage string `json:"welcomeMessage,omitempty"`
}

// CreateGuestRequest is the JSON payload for anonymous user creation.
type CreateGuestRequest struct {
	Nickname   string `json:"nickname" binding:"required" example:"Aoi"`
	BirthYear  int    `json:"birthYear" binding:"required" example:"2000"`
	BirthMonth int    `json:"birthMonth" binding:"required" example:"5"`
	BirthDay   int    `json:"birthDay" binding:"required" example:"10"`
	Gender     string `json:"gender" example:"female"`
	SessionID  string `json:"sessionId" example:"7f1a3c44-9d2e-4f0b-a2c8-1f66a81d5b1e"`
}

// CreateGuestResponse returns the session id the client must present on
// subsequent conversation calls.
type CreateGuestResponse struct {
	SessionID string `json:"sessionId"`
	Nickname  string `json:"nickname"`
}

// LoginRequest is the JSON payload for the lookup/login endpoint. Passphrase
// is the legacy secondary credential and is only checked when supplied.
type LoginRequest struct {
	Nickname   string `json:"nickname" binding:"required" example:"Aoi"`
	BirthYear  int    `json:"birthYear" binding:"required" example:"2000"`
	BirthMonth int    `json:"birthMonth" binding:"required" example:"5"`
	BirthDay   int    `json:"birthDay" binding:"required" example:"10"`
	Passphrase string `json:"passphrase,omitempty"`
}

// LoginResponse returns the resolved identity.
type LoginResponse struct {
	UserID   uint   `json:"userId"`
	Nickname string `json:"nickname"`
	Guardian string `json:"guardian,omitempty"`
}

// ResetPassphraseRequest identifies the user whose passphrase to rotate.
type ResetPassphraseRequest struct {
	Nickname   string `json:"nickname" binding:"required"`
	BirthYear  int    `json:"birthYear" binding:"required"`
	BirthMonth int    `json:"birthMonth" binding:"required"`
	BirthDay   int    `json:"birthDay" binding:"required"`
}

// UpdateDeityRequest assigns a guardian either by user id or by the identity
// tuple. An empty guardian requests a random draw from the catalog.
type UpdateDeityRequest struct {
	Guardian   string `json:"guardian" example:"Seiryu"`
	UserID     uint   `json:"userId,omitempty"`
	Nickname   string `json:"nickname,omitempty"`
	BirthYear  int    `json:"birthYear,omitempty"`
	BirthMonth int    `json:"birthMonth,omitempty"`
	BirthDay   int    `json:"birthDay,omitempty"`
}

// authCookieName carries the signed user token set on successful login.
const authCookieName = "fortune_token"

//
// Handlers
//

// Register godoc
// @ID          register
// @Summary     Register a user
// @Description Creates a user from nickname and birth date. Re-registering the identical tuple is idempotent; a nickname collision with a different birth date is rejected with warning=true.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RegisterRequest  true  "Registration payload"
//
// @Success     201  {object}  handlers.RegisterResponse
// @Success     200  {object}  handlers.RegisterResponse  "Existing user (idempotent)"
// @Failure     400  {object}  handlers.ErrorResponse     "Validation error"
// @Failure     409  {object}  handlers.RegisterResponse  "Nickname conflict"
// @Failure     500  {object}  handlers.ErrorResponse     "Internal error"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	res, err := h.userSvc.Register(c.Request.Context(), req.Nickname, req.BirthYear, req.BirthMonth, req.BirthDay, req.Gender)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNicknameConflict):
			c.JSON(http.StatusConflict, RegisterResponse{
				Nickname: req.Nickname,
				Message:  "nickname already taken, please choose another",
				Warning:  true,
			})
		case errors.Is(err, services.ErrInvalidNickname), errors.Is(err, services.ErrInvalidBirthDate):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "registration failed")
		}
		return
	}

	resp := RegisterResponse{
		UserID:   res.User.ID,
		Nickname: res.User.Nickname,
		Message:  "welcome back",
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
		resp.Message = "registration complete"
	}

	// Migrate any buffered guest session. Failure here degrades to the
	// persona's generic greeting and never fails the registration.
	if req.SessionID != "" && req.Character != "" && h.guests != nil {
		resp.WelcomeMessage = h.guests.CompleteMigration(c.Request.Context(), req.SessionID, req.Character, res.User.Nickname)
		if resp.WelcomeMessage != "" {
			_, _ = h.histSvc.Append(c.Request.Context(), res.User.SessionID, req.Character,
				domain.RoleAssistant, resp.WelcomeMessage, domain.MessageTypeSystem, false)
		}
	}

	ok(c, status, resp)
}

// CreateGuest godoc
// @ID          createGuest
// @Summary     Create a guest user
// @Description Creates a user row for an anonymous visitor. A repeated call with the same sessionId returns the existing user unchanged. Nickname collisions are resolved with a numeric suffix rather than rejected.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateGuestRequest  true  "Guest payload"
//
// @Success     201  {object}  handlers.CreateGuestResponse
// @Success     200  {object}  handlers.CreateGuestResponse  "Existing session matched"
// @Failure     400  {object}  handlers.ErrorResponse        "Validation error"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /auth/create-guest [post]
func (h *Handlers) CreateGuest(c *gin.Context) {
	var req CreateGuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	res, err := h.userSvc.CreateGuest(c.Request.Context(), req.Nickname, req.BirthYear, req.BirthMonth, req.BirthDay, req.Gender, req.SessionID, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidNickname), errors.Is(err, services.ErrInvalidBirthDate):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "guest creation failed")
		}
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	ok(c, status, CreateGuestResponse{SessionID: res.User.SessionID, Nickname: res.User.Nickname})
}

// Login godoc
// @ID          login
// @Summary     Look up a user by identity tuple
// @Description Resolves a user from nickname and birth date, optionally checking the legacy passphrase. Success sets a signed, time-limited cookie carrying the user id.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.LoginRequest  true  "Login payload"
//
// @Success     200  {object}  handlers.LoginResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "No matching user"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	u, err := h.userSvc.Login(c.Request.Context(), req.Nickname, req.BirthYear, req.BirthMonth, req.BirthDay, req.Passphrase)
	if err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "no matching user")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "login failed")
		return
	}

	if h.tokens != nil {
		if tok, err := h.tokens.Issue(u.ID); err == nil {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(authCookieName, tok, int(h.cookieTTL.Seconds()), "/", "", false, true)
		}
	}

	ok(c, http.StatusOK, LoginResponse{UserID: u.ID, Nickname: u.Nickname, Guardian: u.Guardian})
}

// ResetPassphrase godoc
// @ID          resetPassphrase
// @Summary     Rotate a user's passphrase
// @Description Generates a fresh passphrase for the user matching the identity tuple and returns it in plaintext exactly once.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ResetPassphraseRequest  true  "Identity tuple"
//
// @Success     200  {object}  map[string]string
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     404  {object}  handlers.ErrorResponse  "No matching user"
// @Router      /auth/reset-passphrase [post]
func (h *Handlers) ResetPassphrase(c *gin.Context) {
	var req ResetPassphraseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	pass, err := h.userSvc.ResetPassphrase(c.Request.Context(), req.Nickname, req.BirthYear, req.BirthMonth, req.BirthDay)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no matching user")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "passphrase reset failed")
		return
	}

	ok(c, http.StatusOK, gin.H{"nickname": strings.TrimSpace(req.Nickname), "passphrase": pass})
}

// UpdateDeity godoc
// @ID          updateDeity
// @Summary     Assign a guardian deity
// @Description Sets the user's guardian, addressed by userId or by the identity tuple. An empty guardian draws one at random from the fixed catalog.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.UpdateDeityRequest  true  "Guardian payload"
//
// @Success     200  {object}  map[string]any
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     404  {object}  handlers.ErrorResponse  "No matching user"
// @Router      /auth/update-deity [post]
func (h *Handlers) UpdateDeity(c *gin.Context) {
	var req UpdateDeityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == 0 && req.Nickname == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "userId or nickname with birth date is required")
		return
	}

	guardian, err := h.userSvc.UpdateGuardian(c.Request.Context(), req.UserID, req.Nickname, req.BirthYear, req.BirthMonth, req.BirthDay, req.Guardian)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownGuardian):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown guardian")
		case errors.Is(err, services.ErrUserNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no matching user")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "guardian update failed")
		}
		return
	}

	ok(c, http.StatusOK, gin.H{"success": true, "guardian": guardian})
}
