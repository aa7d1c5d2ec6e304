package services_test

import (
	"context"
	"testing"

	"authsvc/internal/apperr"
	"authsvc/internal/models"
	"authsvc/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func twoUsers(t *testing.T, f *fixture) (alice, bob *models.User) {
	t.Helper()
	alice = register(t, f, aliceInput())
	in := aliceInput()
	in.Username, in.Email, in.PhoneNumber = "bob", "b@x.com", "555-0200"
	bob = register(t, f, in)
	return alice, bob
}

func actorFor(u *models.User) services.Actor {
	return services.Actor{UserID: u.ID, Role: u.Role}
}

func TestUserService_ProfileGetList(t *testing.T) {
	f := newFixture()
	alice, bob := twoUsers(t, f)
	ctx := context.Background()

	me, err := f.accounts.Profile(ctx, actorFor(alice))
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)

	other, err := f.accounts.Get(ctx, actorFor(alice), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", other.Username)

	_, err = f.accounts.Get(ctx, actorFor(alice), "missing")
	assertCode(t, err, apperr.CodeUserNotFound)

	all, err := f.accounts.List(ctx, actorFor(bob))
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUserService_UpdateSelf(t *testing.T) {
	f := newFixture()
	alice, _ := twoUsers(t, f)

	updated, err := f.accounts.Update(context.Background(), actorFor(alice), alice.ID, services.UpdateInput{
		Username: strPtr("alice2"),
		Email:    strPtr("alice@x.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
	assert.Equal(t, "alice@x.com", updated.Email)
	assert.Equal(t, "555-0100", updated.PhoneNumber)

	// resubmitting one's own values is not a conflict
	_, err = f.accounts.Update(context.Background(), actorFor(alice), alice.ID, services.UpdateInput{Email: strPtr("alice@x.com")})
	assert.NoError(t, err)
}

func TestUserService_UpdateRules(t *testing.T) {
	admin := models.RoleAdmin
	user := models.RoleUser
	bogus := models.Role("root")

	tests := []struct {
		name  string
		admin bool
		self  bool
		in    services.UpdateInput
		code  string
	}{
		{name: "empty", self: true, in: services.UpdateInput{}, code: apperr.CodeValidation},
		{name: "invalid email", self: true, in: services.UpdateInput{Email: strPtr("nope")}, code: apperr.CodeValidation},
		{name: "invalid role", admin: true, in: services.UpdateInput{Role: &bogus}, code: apperr.CodeValidation},
		{name: "other user", in: services.UpdateInput{Username: strPtr("mallory")}, code: apperr.CodeForbidden},
		{name: "self promotion", self: true, in: services.UpdateInput{Role: &admin}, code: apperr.CodeForbidden},
		{name: "email taken", self: true, in: services.UpdateInput{Email: strPtr("b@x.com")}, code: apperr.CodeEmailTaken},
		{name: "phone taken", self: true, in: services.UpdateInput{PhoneNumber: strPtr("555-0200")}, code: apperr.CodePhoneTaken},
		{name: "username taken", self: true, in: services.UpdateInput{Username: strPtr("bob")}, code: apperr.CodeUsernameTaken},
		{name: "admin edits other", admin: true, in: services.UpdateInput{Role: &user, Username: strPtr("alice3")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			alice, bob := twoUsers(t, f)

			actor := actorFor(bob)
			switch {
			case tt.self:
				actor = actorFor(alice)
			case tt.admin:
				actor.Role = models.RoleAdmin
			}

			_, err := f.accounts.Update(context.Background(), actor, alice.ID, tt.in)
			if tt.code == "" {
				require.NoError(t, err)
				return
			}
			assertCode(t, err, tt.code)

			stored, err := f.users.GetByID(context.Background(), alice.ID)
			require.NoError(t, err)
			assert.Equal(t, "alice", stored.Username)
			assert.Equal(t, "a@x.com", stored.Email)
			assert.Equal(t, models.RoleUser, stored.Role)
		})
	}
}

func TestUserService_AdminCanChangeRole(t *testing.T) {
	f := newFixture()
	alice, bob := twoUsers(t, f)
	root := services.Actor{UserID: bob.ID, Role: models.RoleAdmin}
	admin := models.RoleAdmin

	updated, err := f.accounts.Update(context.Background(), root, alice.ID, services.UpdateInput{Role: &admin})
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin())
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	alice, bob := twoUsers(t, f)

	assertCode(t, f.accounts.Delete(ctx, actorFor(bob), alice.ID), apperr.CodeForbidden)

	require.NoError(t, f.accounts.Delete(ctx, actorFor(alice), alice.ID))
	_, err := f.accounts.Get(ctx, actorFor(bob), alice.ID)
	assertCode(t, err, apperr.CodeUserNotFound)

	root := services.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	require.NoError(t, f.accounts.Delete(ctx, root, bob.ID))
	assertCode(t, f.accounts.Delete(ctx, root, bob.ID), apperr.CodeUserNotFound)
}

func TestUserService_DemotedAdminLosesRightsBeforeTokenExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	alice, bob := twoUsers(t, f)
	require.NoError(t, f.accounts.PromoteAdmin(ctx, alice.Email))
	require.NoError(t, f.accounts.PromoteAdmin(ctx, bob.Email))

	bob, err := f.users.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	bobToken, _, err := f.sessions.Issue(bob)
	require.NoError(t, err)

	user := models.RoleUser
	_, err = f.accounts.Update(ctx, services.Actor{UserID: alice.ID, Role: models.RoleAdmin}, bob.ID, services.UpdateInput{Role: &user})
	require.NoError(t, err)

	claims, err := f.sessions.Validate(bobToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	actor, err := f.accounts.ResolveActor(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, actor.Role)
	assertCode(t, f.accounts.Delete(ctx, actor, alice.ID), apperr.CodeForbidden)

	_, err = f.users.GetByID(ctx, alice.ID)
	assert.NoError(t, err)
}

func TestUserService_ResolveActorDeletedUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	alice, _ := twoUsers(t, f)

	token, _, err := f.sessions.Issue(alice)
	require.NoError(t, err)
	require.NoError(t, f.accounts.Delete(ctx, actorFor(alice), alice.ID))

	claims, err := f.sessions.Validate(token)
	require.NoError(t, err)
	_, err = f.accounts.ResolveActor(ctx, claims)
	assertCode(t, err, apperr.CodeTokenInvalid)
}

func TestUserService_PromoteAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	alice, _ := twoUsers(t, f)

	assertCode(t, f.accounts.PromoteAdmin(ctx, "nobody@x.com"), apperr.CodeUserNotFound)

	require.NoError(t, f.accounts.PromoteAdmin(ctx, alice.Email))
	require.NoError(t, f.accounts.PromoteAdmin(ctx, alice.Email))

	stored, err := f.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAdmin())
}
