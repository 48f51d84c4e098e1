package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookkeeper/internal/auth"
	"github.com/mrlokans/bookkeeper/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type themeRequest struct {
	Dark *bool `json:"dark"` // nil toggles
}

// AccountController exposes login state, the profile and the theme.
type AccountController struct {
	session  *session.Session
	throttle *auth.LoginThrottle
}

// NewAccountController creates the controller. throttle may be nil.
func NewAccountController(s *session.Session, throttle *auth.LoginThrottle) *AccountController {
	return &AccountController{session: s, throttle: throttle}
}

// GetSession returns the current snapshot.
// GET /api/session
func (ac *AccountController) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, ac.session.Snapshot())
}

// Login signs a user in.
// POST /api/session/login
func (ac *AccountController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	client := c.ClientIP()
	if ac.throttle != nil {
		if allowed, wait := ac.throttle.Allow(client, req.Email); !allowed {
			tooManyAttempts(c, wait)
			return
		}
	}

	res := ac.session.Login(c.Request.Context(), req.Email, req.Password)
	if ac.throttle != nil {
		switch res.Outcome {
		case session.InvalidCredentials:
			ac.throttle.RecordFailure(client, req.Email)
		case session.Success:
			ac.throttle.RecordSuccess(client, req.Email)
		}
	}
	respondResult(c, res, http.StatusOK, res.User)
}

func tooManyAttempts(c *gin.Context, wait time.Duration) {
	seconds := int(wait.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.JSON(http.StatusTooManyRequests, ErrorResponse{
		Error: "Too many failed login attempts, try again later",
		Code:  "rate_limited",
	})
}

// Register creates an account and signs it in.
// POST /api/session/register
func (ac *AccountController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	res := ac.session.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	respondResult(c, res, http.StatusCreated, res.User)
}

// Logout signs out and forgets the saved session.
// POST /api/session/logout
func (ac *AccountController) Logout(c *gin.Context) {
	res := ac.session.Logout(c.Request.Context())
	respondResult(c, res, http.StatusOK, nil)
}

// UpdateProfile changes name, email, bio or picture.
// PUT /api/profile
func (ac *AccountController) UpdateProfile(c *gin.Context) {
	var req session.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	res := ac.session.UpdateUserProfile(c.Request.Context(), req)
	respondResult(c, res, http.StatusOK, res.User)
}

// DeleteAccount removes the current user and their shelf.
// DELETE /api/profile
func (ac *AccountController) DeleteAccount(c *gin.Context) {
	res := ac.session.DeleteAccount(c.Request.Context())
	respondResult(c, res, http.StatusOK, nil)
}

// SetTheme sets the dark theme flag, or toggles it when "dark" is omitted.
// PUT /api/theme
func (ac *AccountController) SetTheme(c *gin.Context) {
	var req themeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	var res session.Result
	if req.Dark == nil {
		res = ac.session.ToggleTheme()
	} else {
		res = ac.session.SetDarkTheme(*req.Dark)
	}
	respondResult(c, res, http.StatusOK, gin.H{"dark_theme": ac.session.IsDarkTheme()})
}
