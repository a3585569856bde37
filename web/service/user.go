// Package service implements the application services behind the web
// controllers: account management, the scan-processing pipeline and the
// explanation generator.
package service

import (
	"octvision/database"
	"octvision/database/model"
	"octvision/logger"
	"octvision/util/common"
	"octvision/util/crypto"

	"gorm.io/gorm"
)

type UserService struct{}

// CheckUser verifies credentials and returns the user, or nil when the
// username is unknown or the password does not match.
func (s *UserService) CheckUser(username string, password string) *model.User {
	db := database.GetDB()

	user := &model.User{}
	err := db.Model(model.User{}).
		Where("username = ?", username).
		First(user).
		Error
	if err == gorm.ErrRecordNotFound {
		return nil
	} else if err != nil {
		logger.Warning("check user err:", err)
		return nil
	}

	if !crypto.CheckPasswordHash(user.Password, password) {
		return nil
	}
	return user
}

// Register creates an account. Usernames are unique, the role must be one
// of the registrable roles and the password is stored as a bcrypt hash.
func (s *UserService) Register(username, password string, role model.Role) (*model.User, error) {
	if username == "" || password == "" {
		return nil, common.WrapErrorf(common.ErrValidation, "username and password are required")
	}
	if !model.ValidRole(role) {
		return nil, common.WrapErrorf(common.ErrValidation, "invalid role %q", role)
	}

	db := database.GetDB()

	var count int64
	if err := db.Model(model.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, common.WrapError(common.ErrPersistence, err)
	}
	if count > 0 {
		return nil, common.WrapErrorf(common.ErrValidation, "username already exists")
	}

	hashedPassword, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{Username: username, Password: hashedPassword, Role: role}
	if err := db.Create(user).Error; err != nil {
		return nil, common.WrapError(common.ErrPersistence, err)
	}
	return user, nil
}

// ResetPassword sets a new password for an existing account. Used by the
// CLI for account recovery; there is no self-service password change.
func (s *UserService) ResetPassword(username, newPassword string) error {
	if newPassword == "" {
		return common.WrapErrorf(common.ErrValidation, "password is required")
	}

	db := database.GetDB()
	user := &model.User{}
	err := db.Model(model.User{}).Where("username = ?", username).First(user).Error
	if err == gorm.ErrRecordNotFound {
		return common.WrapErrorf(common.ErrValidation, "user %q not found", username)
	} else if err != nil {
		return common.WrapError(common.ErrPersistence, err)
	}

	hashedPassword, err := crypto.HashPasswordAsBcrypt(newPassword)
	if err != nil {
		return err
	}
	if err := db.Model(user).Update("password", hashedPassword).Error; err != nil {
		return common.WrapError(common.ErrPersistence, err)
	}
	return nil
}

// GetUser loads a user by id.
func (s *UserService) GetUser(id int) (*model.User, error) {
	db := database.GetDB()
	user := &model.User{}
	if err := db.First(user, id).Error; err != nil {
		return nil, err
	}
	return user, nil
}
