// Package controller provides the HTTP request handlers of the octvision
// web application: authentication, the scan dashboard, uploads, artifacts
// and the progress websocket.
package controller

import (
	"net/http"

	"octvision/web/session"

	"github.com/gin-gonic/gin"
)

// BaseController provides the authentication check shared by all
// controllers. Unauthenticated browsers are redirected to the login page.
type BaseController struct{}

func (a *BaseController) checkLogin(c *gin.Context) {
	if !session.IsLogin(c) {
		if isAjax(c) {
			pureJsonMsg(c, http.StatusUnauthorized, false, "please log in again")
		} else {
			c.Redirect(http.StatusTemporaryRedirect, "/login")
		}
		c.Abort()
	} else {
		c.Next()
	}
}
