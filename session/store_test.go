package session

import (
	"path/filepath"
	"testing"

	"civiclens/portal/models"
	"civiclens/portal/security"
)

func testSession() models.Session {
	return models.Session{
		Token:      "token-abc",
		Role:       models.RoleDeptAdmin,
		Department: models.DeptRoads,
	}
}

func TestSaveAndReadBack(t *testing.T) {
	store, err := Open(":memory:", security.NewTokenCipher("test-key"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if store.Session().Valid() {
		t.Error("fresh store should have no session")
	}

	if err := store.Save(testSession()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got := store.Session()
	if got != testSession() {
		t.Errorf("got session %+v", got)
	}
	if store.Token() != "token-abc" {
		t.Errorf("got token %q", store.Token())
	}
}

func TestSessionSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	cipher := security.NewTokenCipher("test-key")

	store, err := Open(path, cipher)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(testSession()); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := Open(path, cipher)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if got := reopened.Session(); got != testSession() {
		t.Errorf("session did not survive reopen: %+v", got)
	}
}

func TestTokenIsSealedAtRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := Open(path, security.NewTokenCipher("test-key"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(testSession()); err != nil {
		t.Fatal(err)
	}

	var stored string
	err = store.db.QueryRow("SELECT value FROM session WHERE key = 'token'").Scan(&stored)
	if err != nil {
		t.Fatal(err)
	}
	if stored == "token-abc" {
		t.Error("token persisted in plaintext")
	}
	store.Close()
}

func TestRotatedKeyDiscardsSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := Open(path, security.NewTokenCipher("old-key"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(testSession()); err != nil {
		t.Fatal(err)
	}
	store.Close()

	// A different key must not error out the open, just drop the session.
	reopened, err := Open(path, security.NewTokenCipher("new-key"))
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if reopened.Session().Valid() {
		t.Error("expected unsealable session to be discarded")
	}
}

func TestClearWipesEverythingTogether(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	cipher := security.NewTokenCipher("test-key")

	store, err := Open(path, cipher)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(testSession()); err != nil {
		t.Fatal(err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	got := store.Session()
	if got.Token != "" || got.Role != "" || got.Department != "" {
		t.Errorf("partial clear: %+v", got)
	}

	var count int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM session").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected empty session table, found %d rows", count)
	}
	store.Close()

	reopened, err := Open(path, cipher)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if reopened.Session().Valid() {
		t.Error("cleared session came back after reopen")
	}
}
