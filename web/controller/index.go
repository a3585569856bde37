package controller

import (
	"net/http"

	"octvision/database/model"
	"octvision/logger"
	"octvision/web/service"
	"octvision/web/session"

	"github.com/gin-gonic/gin"
)

// LoginForm represents the login request.
type LoginForm struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// RegisterForm represents the registration request.
type RegisterForm struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
}

// IndexController handles the index, login, registration and logout routes.
type IndexController struct {
	BaseController

	userService service.UserService
}

// NewIndexController creates an IndexController and registers its routes.
func NewIndexController(g *gin.RouterGroup) *IndexController {
	a := &IndexController{}
	a.initRouter(g)
	return a
}

func (a *IndexController) initRouter(g *gin.RouterGroup) {
	g.GET("/", a.index)
	g.GET("/login", a.loginPage)
	g.POST("/login", a.login)
	g.GET("/register", a.registerPage)
	g.POST("/register", a.register)
	g.GET("/logout", a.logout)
}

func (a *IndexController) index(c *gin.Context) {
	if session.IsLogin(c) {
		c.Redirect(http.StatusTemporaryRedirect, "/dashboard")
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, "/login")
}

func (a *IndexController) loginPage(c *gin.Context) {
	if session.IsLogin(c) {
		c.Redirect(http.StatusTemporaryRedirect, "/dashboard")
		return
	}
	html(c, "login.html", "Login", nil)
}

func (a *IndexController) login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		session.SetFlash(c, "Invalid form data")
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	user := a.userService.CheckUser(form.Username, form.Password)
	if user == nil {
		logger.Warningf("failed login for %q, IP: %q", form.Username, getRemoteIp(c))
		session.SetFlash(c, "Invalid username or password")
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	if err := session.SetLoginUser(c, user); err != nil {
		logger.Warning("unable to save session:", err)
		session.SetFlash(c, "Login failed")
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	logger.Infof("%s logged in successfully, IP: %s", user.Username, getRemoteIp(c))
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (a *IndexController) registerPage(c *gin.Context) {
	html(c, "register.html", "Register", nil)
}

func (a *IndexController) register(c *gin.Context) {
	var form RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		session.SetFlash(c, "Invalid form data")
		c.Redirect(http.StatusSeeOther, "/register")
		return
	}

	_, err := a.userService.Register(form.Username, form.Password, model.Role(form.Role))
	if err != nil {
		session.SetFlash(c, err.Error())
		c.Redirect(http.StatusSeeOther, "/register")
		return
	}

	session.SetFlash(c, "Registration successful! Please log in.")
	c.Redirect(http.StatusSeeOther, "/login")
}

func (a *IndexController) logout(c *gin.Context) {
	user := session.GetLoginUser(c)
	if user != nil {
		logger.Infof("%s logged out successfully", user.Username)
	}
	if err := session.ClearSession(c); err != nil {
		logger.Warning("unable to clear session:", err)
	}
	c.Redirect(http.StatusTemporaryRedirect, "/login")
}
