package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"octvision/database/model"
	"octvision/util/common"
)

func TestRegisterAndCheckUser(t *testing.T) {
	setupTestDB(t)
	userService := UserService{}

	user, err := userService.Register("alice", "s3cret", model.RolePatient)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, model.RolePatient, user.Role)
	assert.NotEqual(t, "s3cret", user.Password, "password stored in plain text")

	assert.NotNil(t, userService.CheckUser("alice", "s3cret"))
	assert.Nil(t, userService.CheckUser("alice", "wrong"))
	assert.Nil(t, userService.CheckUser("nobody", "s3cret"))
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	setupTestDB(t)
	userService := UserService{}

	_, err := userService.Register("bob", "pw", model.RoleDoctor)
	require.NoError(t, err)

	_, err = userService.Register("bob", "other", model.RolePatient)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	setupTestDB(t)
	userService := UserService{}

	_, err := userService.Register("", "pw", model.RolePatient)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = userService.Register("carol", "", model.RolePatient)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = userService.Register("carol", "pw", model.Role("admin"))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestResetPassword(t *testing.T) {
	setupTestDB(t)
	userService := UserService{}

	_, err := userService.Register("dave", "oldpw", model.RoleResearcher)
	require.NoError(t, err)

	require.NoError(t, userService.ResetPassword("dave", "newpw"))
	assert.Nil(t, userService.CheckUser("dave", "oldpw"))
	assert.NotNil(t, userService.CheckUser("dave", "newpw"))

	assert.ErrorIs(t, userService.ResetPassword("dave", ""), common.ErrValidation)
	assert.ErrorIs(t, userService.ResetPassword("nobody", "pw"), common.ErrValidation)
}
