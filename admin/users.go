package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"civiclens/portal/api"
	"civiclens/portal/models"
	"civiclens/portal/notify"
)

// ErrProtectedAccount gates edits and deletes on super_admin rows. The
// restriction here is presentation-level convenience; the server enforces
// it authoritatively.
var ErrProtectedAccount = errors.New("account cannot be modified")

// PersonnelService is the backend surface the personnel manager needs. The
// API client implements this.
type PersonnelService interface {
	Users(ctx context.Context) ([]models.StaffAccount, error)
	CreateUser(ctx context.Context, account api.NewStaffAccount) error
	UpdateUser(ctx context.Context, username string, update api.StaffUpdate) error
	DeleteUser(ctx context.Context, username string) error
}

// EditForm is the inline-edit state for the row being edited. The password
// starts blank and is never pre-filled from a read value.
type EditForm struct {
	Password   string
	Department string
}

// UserManager owns the staff roster, the create form, and the single
// inline-edit row.
type UserManager struct {
	service PersonnelService
	toasts  *notify.Hub

	mu      sync.Mutex
	users   []models.StaffAccount
	draft   api.NewStaffAccount
	editing string
	form    EditForm
}

// NewUserManager creates a manager with the create form at its defaults.
func NewUserManager(service PersonnelService, toasts *notify.Hub) *UserManager {
	return &UserManager{
		service: service,
		toasts:  toasts,
		draft:   defaultDraft(),
	}
}

func defaultDraft() api.NewStaffAccount {
	return api.NewStaffAccount{
		Role:       models.RoleDeptAdmin,
		Department: models.DeptRoads,
	}
}

// Load replaces the roster with a fresh fetch.
func (m *UserManager) Load(ctx context.Context) error {
	users, err := m.service.Users(ctx)
	if err != nil {
		m.toasts.Error("Failed to load users.")
		return fmt.Errorf("error loading users: %w", err)
	}

	m.mu.Lock()
	m.users = users
	m.mu.Unlock()
	return nil
}

// Users returns the current roster.
func (m *UserManager) Users() []models.StaffAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]models.StaffAccount, len(m.users))
	copy(users, m.users)
	return users
}

// Draft returns the create-form state.
func (m *UserManager) Draft() api.NewStaffAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft
}

// SetDraft updates the create-form state.
func (m *UserManager) SetDraft(draft api.NewStaffAccount) {
	m.mu.Lock()
	m.draft = draft
	m.mu.Unlock()
}

// Create submits the create form. On success the form resets to its
// defaults and the roster is refetched; on failure (including a username
// conflict) the form keeps the user's input so it can be corrected.
func (m *UserManager) Create(ctx context.Context) error {
	m.mu.Lock()
	draft := m.draft
	m.mu.Unlock()

	if err := m.service.CreateUser(ctx, draft); err != nil {
		m.toasts.Error("Failed to create user. ID may exist.")
		if errors.Is(err, api.ErrConflict) {
			return err
		}
		return fmt.Errorf("error creating user: %w", err)
	}

	m.toasts.Success("New personnel added successfully.")

	m.mu.Lock()
	m.draft = defaultDraft()
	m.mu.Unlock()

	if err := m.Load(ctx); err != nil {
		log.Printf("Roster refresh after create failed: %v", err)
	}
	return nil
}

// CanModify reports whether the edit and delete controls apply to an
// account. super_admin rows expose neither.
func (m *UserManager) CanModify(account models.StaffAccount) bool {
	return account.Role != models.RoleSuperAdmin
}

// StartEdit puts one row into inline-edit mode, replacing any edit already
// in progress. The form preloads the roster's department and a blank
// password.
func (m *UserManager) StartEdit(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username != username {
			continue
		}
		if u.Role == models.RoleSuperAdmin {
			return fmt.Errorf("%w: %s", ErrProtectedAccount, username)
		}
		m.editing = username
		m.form = EditForm{Department: u.Department}
		return nil
	}
	return fmt.Errorf("unknown user %s", username)
}

// Editing returns the username in edit mode, or "" when no row is being
// edited.
func (m *UserManager) Editing() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.editing
}

// SetEditForm updates the in-progress edit.
func (m *UserManager) SetEditForm(form EditForm) {
	m.mu.Lock()
	m.form = form
	m.mu.Unlock()
}

// CancelEdit discards the in-progress edit without any network call.
func (m *UserManager) CancelEdit() {
	m.mu.Lock()
	m.editing = ""
	m.form = EditForm{}
	m.mu.Unlock()
}

// CommitEdit sends the minimal diff for the row in edit mode: the password
// only when one was typed, the department only when it differs from the
// roster value. A diff with neither is suppressed entirely; the edit just
// closes.
func (m *UserManager) CommitEdit(ctx context.Context) error {
	m.mu.Lock()
	if m.editing == "" {
		m.mu.Unlock()
		return errors.New("no edit in progress")
	}
	username := m.editing
	update := api.StaffUpdate{Password: m.form.Password}
	for _, u := range m.users {
		if u.Username == username && u.Department != m.form.Department {
			update.Department = m.form.Department
			break
		}
	}
	m.mu.Unlock()

	if update.IsZero() {
		m.CancelEdit()
		return nil
	}

	if err := m.service.UpdateUser(ctx, username, update); err != nil {
		// Stay in edit mode so the user can retry or cancel.
		m.toasts.Error("Failed to update user.")
		return fmt.Errorf("error updating user %s: %w", username, err)
	}

	m.CancelEdit()
	m.toasts.Success("User updated successfully.")

	if err := m.Load(ctx); err != nil {
		log.Printf("Roster refresh after update failed: %v", err)
	}
	return nil
}

// Delete removes a staff account after interactive confirmation. A nil or
// declining confirm aborts with no network call. On success the row leaves
// the local roster immediately.
func (m *UserManager) Delete(ctx context.Context, username string, confirm func() bool) error {
	m.mu.Lock()
	for _, u := range m.users {
		if u.Username == username && u.Role == models.RoleSuperAdmin {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrProtectedAccount, username)
		}
	}
	m.mu.Unlock()

	if confirm == nil || !confirm() {
		return nil
	}

	if err := m.service.DeleteUser(ctx, username); err != nil {
		m.toasts.Error("Failed to delete user.")
		return fmt.Errorf("error deleting user %s: %w", username, err)
	}

	m.mu.Lock()
	kept := m.users[:0]
	for _, u := range m.users {
		if u.Username != username {
			kept = append(kept, u)
		}
	}
	m.users = kept
	if m.editing == username {
		m.editing = ""
		m.form = EditForm{}
	}
	m.mu.Unlock()

	m.toasts.Info("User deleted.")
	return nil
}
