package rbac

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockUser struct {
	email       string
	isActive    bool
	isSuperuser bool
	roleIDs     []int64
}

type mockState struct {
	users     map[uuid.UUID]*mockUser
	roles     map[int64]Role
	rolePerms map[int64][]int64
	perms     map[int64]Permission
	nextRole  int64
	nextPerm  int64
}

func (s *mockState) clone() *mockState {
	c := &mockState{
		users:     make(map[uuid.UUID]*mockUser, len(s.users)),
		roles:     make(map[int64]Role, len(s.roles)),
		rolePerms: make(map[int64][]int64, len(s.rolePerms)),
		perms:     make(map[int64]Permission, len(s.perms)),
		nextRole:  s.nextRole,
		nextPerm:  s.nextPerm,
	}
	for id, u := range s.users {
		cp := *u
		cp.roleIDs = append([]int64(nil), u.roleIDs...)
		c.users[id] = &cp
	}
	for id, r := range s.roles {
		c.roles[id] = r
	}
	for id, ps := range s.rolePerms {
		c.rolePerms[id] = append([]int64(nil), ps...)
	}
	for id, p := range s.perms {
		c.perms[id] = p
	}
	return c
}

type mockRepository struct {
	state *mockState

	// Error injection
	txError          error
	replaceError     error
	insertRoleError  error
	loadIdentityHits int
}

func newMockRepository() *mockRepository {
	return &mockRepository{state: &mockState{
		users:     make(map[uuid.UUID]*mockUser),
		roles:     make(map[int64]Role),
		rolePerms: make(map[int64][]int64),
		perms:     make(map[int64]Permission),
		nextRole:  1,
		nextPerm:  1,
	}}
}

func (m *mockRepository) addUser(superuser bool) uuid.UUID {
	id := uuid.New()
	m.state.users[id] = &mockUser{email: id.String()[:8] + "@example.com", isActive: true, isSuperuser: superuser}
	return id
}

func (m *mockRepository) addRole(name string, permIDs ...int64) int64 {
	id := m.state.nextRole
	m.state.nextRole++
	now := time.Now()
	m.state.roles[id] = Role{ID: id, Name: name, DisplayName: name, IsActive: true, CreatedAt: now, UpdatedAt: now}
	m.state.rolePerms[id] = permIDs
	return id
}

func (m *mockRepository) addPermission(name string) int64 {
	id := m.state.nextPerm
	m.state.nextPerm++
	m.state.perms[id] = Permission{ID: id, Name: name}
	return id
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if m.txError != nil {
		return m.txError
	}
	tx := &mockRepository{
		state:           m.state.clone(),
		replaceError:    m.replaceError,
		insertRoleError: m.insertRoleError,
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	m.loadIdentityHits += tx.loadIdentityHits
	return nil
}

func (m *mockRepository) LoadIdentity(ctx context.Context, userID uuid.UUID) (*Identity, error) {
	m.loadIdentityHits++
	u, ok := m.state.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	id := &Identity{
		UserID:      userID,
		Email:       u.email,
		IsActive:    u.isActive,
		IsSuperuser: u.isSuperuser,
		Roles:       []RoleWithPermissions{},
	}
	for _, roleID := range u.roleIDs {
		rwp, err := m.GetRoleWithPermissions(ctx, roleID)
		if err != nil {
			continue
		}
		id.Roles = append(id.Roles, rwp)
	}
	return id, nil
}

func (m *mockRepository) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	_, ok := m.state.users[userID]
	return ok, nil
}

func (m *mockRepository) ListRoles(ctx context.Context) ([]Role, error) {
	roles := make([]Role, 0, len(m.state.roles))
	for _, r := range m.state.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

func (m *mockRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	r, ok := m.state.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (m *mockRepository) FindRoleByName(ctx context.Context, name string) (Role, error) {
	for _, r := range m.state.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return Role{}, ErrNotFound
}

func (m *mockRepository) GetRoleWithPermissions(ctx context.Context, id int64) (RoleWithPermissions, error) {
	r, err := m.GetRole(ctx, id)
	if err != nil {
		return RoleWithPermissions{}, err
	}
	out := RoleWithPermissions{Role: r, Permissions: []Permission{}}
	for _, pid := range m.state.rolePerms[id] {
		if p, ok := m.state.perms[pid]; ok {
			out.Permissions = append(out.Permissions, p)
		}
	}
	return out, nil
}

func (m *mockRepository) InsertRole(ctx context.Context, in RoleInput) (Role, error) {
	if m.insertRoleError != nil {
		return Role{}, m.insertRoleError
	}
	if _, err := m.FindRoleByName(ctx, in.Name); err == nil {
		return Role{}, shared.ErrDuplicate
	}
	id := m.state.nextRole
	m.state.nextRole++
	r := Role{ID: id, Name: in.Name, DisplayName: in.DisplayName, Description: in.Description, IsActive: true}
	m.state.roles[id] = r
	return r, nil
}

func (m *mockRepository) UpdateRole(ctx context.Context, id int64, upd RoleUpdate) (Role, error) {
	r, ok := m.state.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.DisplayName != nil {
		r.DisplayName = *upd.DisplayName
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	if upd.IsActive != nil {
		r.IsActive = *upd.IsActive
	}
	m.state.roles[id] = r
	return r, nil
}

func (m *mockRepository) DeleteRole(ctx context.Context, id int64) error {
	if _, ok := m.state.roles[id]; !ok {
		return ErrNotFound
	}
	delete(m.state.roles, id)
	delete(m.state.rolePerms, id)
	for _, u := range m.state.users {
		kept := u.roleIDs[:0]
		for _, rid := range u.roleIDs {
			if rid != id {
				kept = append(kept, rid)
			}
		}
		u.roleIDs = kept
	}
	return nil
}

func (m *mockRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	perms := make([]Permission, 0, len(m.state.perms))
	for _, p := range m.state.perms {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	return perms, nil
}

func (m *mockRepository) FindPermissionByName(ctx context.Context, name string) (Permission, error) {
	for _, p := range m.state.perms {
		if p.Name == name {
			return p, nil
		}
	}
	return Permission{}, ErrNotFound
}

func (m *mockRepository) InsertPermission(ctx context.Context, in PermissionInput) (Permission, error) {
	id := m.state.nextPerm
	m.state.nextPerm++
	p := Permission{ID: id, Name: in.Name, Description: in.Description, ModuleGroup: in.ModuleGroup}
	m.state.perms[id] = p
	return p, nil
}

func (m *mockRepository) ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []int64) error {
	u := m.state.users[userID]
	u.roleIDs = nil
	if m.replaceError != nil {
		return m.replaceError
	}
	for _, id := range roleIDs {
		if _, ok := m.state.roles[id]; ok {
			u.roleIDs = append(u.roleIDs, id)
		}
	}
	return nil
}

func (m *mockRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	m.state.rolePerms[roleID] = nil
	if m.replaceError != nil {
		return m.replaceError
	}
	for _, id := range permissionIDs {
		if _, ok := m.state.perms[id]; ok {
			m.state.rolePerms[roleID] = append(m.state.rolePerms[roleID], id)
		}
	}
	return nil
}

var _ Repository = (*mockRepository)(nil)

type mockAudit struct {
	entries []shared.AuditLog
	err     error
}

func (a *mockAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return a.err
}
