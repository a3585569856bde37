package session

import (
	"encoding/gob"

	"octvision/database/model"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	loginUser = "LOGIN_USER"
	flashMsg  = "FLASH"
)

func init() {
	gob.Register(model.User{})
}

func SetLoginUser(c *gin.Context, user *model.User) error {
	s := sessions.Default(c)
	s.Set(loginUser, user)
	return s.Save()
}

func GetLoginUser(c *gin.Context) *model.User {
	s := sessions.Default(c)
	if obj := s.Get(loginUser); obj != nil {
		if user, ok := obj.(model.User); ok {
			return &user
		}
	}
	return nil
}

func IsLogin(c *gin.Context) bool {
	return GetLoginUser(c) != nil
}

// SetFlash stores a one-shot message shown on the next rendered page.
func SetFlash(c *gin.Context, msg string) {
	s := sessions.Default(c)
	s.Set(flashMsg, msg)
	_ = s.Save()
}

// PopFlash returns and clears the pending flash message, if any.
func PopFlash(c *gin.Context) string {
	s := sessions.Default(c)
	obj := s.Get(flashMsg)
	if obj == nil {
		return ""
	}
	s.Delete(flashMsg)
	_ = s.Save()
	msg, _ := obj.(string)
	return msg
}

func ClearSession(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{
		Path:   "/",
		MaxAge: -1,
	})
	return s.Save()
}
