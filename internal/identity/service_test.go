package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	byEmail map[string]*User
}

func newMemStore() *memStore { return &memStore{byEmail: map[string]*User{}} }

func (m *memStore) Create(_ context.Context, u *User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrDuplicateIdentity
	}
	cp := *u
	m.byEmail[u.Email] = &cp
	return nil
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) FindByID(_ context.Context, id uuid.UUID) (*User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func TestRegisterAndVerify(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{
		Name: "Ana", Email: "Ana@Example.com", Phone: "+100", Password: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, RoleCustomer, u.Role)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.NotEqual(t, "hunter22", u.PasswordHash)

	got, err := svc.Verify(ctx, "ana@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Verify(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Verify(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "a@x.io", Password: "p1234567"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Name: "B", Email: "a@x.io", Password: "p7654321"})
	assert.ErrorIs(t, err, ErrDuplicateIdentity)
}

func TestRegisterRejectsAdminSelfAssignment(t *testing.T) {
	svc := NewService(newMemStore())

	_, err := svc.Register(context.Background(), RegisterInput{
		Name: "Eve", Email: "eve-admin@x.io", Password: "p1234567", Role: RoleAdmin,
	})
	assert.ErrorIs(t, err, ErrRoleNotAllowed)

	_, err = svc.Register(context.Background(), RegisterInput{
		Name: "F", Email: "f@x.io", Password: "p1234567", Role: Role("superuser"),
	})
	assert.ErrorIs(t, err, ErrRoleNotAllowed)
}

func TestRegisterAllowsFarmer(t *testing.T) {
	svc := NewService(newMemStore())

	u, err := svc.Register(context.Background(), RegisterInput{
		Name: "Joe", Email: "joe@farm.io", Password: "p1234567", Role: RoleFarmer,
	})
	require.NoError(t, err)
	assert.Equal(t, RoleFarmer, u.Role)
}
