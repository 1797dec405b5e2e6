package db_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/forum/internal/auth"
	authdb "github.com/willemschots/forum/internal/auth/db"
	"github.com/willemschots/forum/internal/db"
	"github.com/willemschots/forum/internal/db/testdb"
	"github.com/willemschots/forum/internal/email"
	"github.com/willemschots/forum/internal/errorz"
	"github.com/willemschots/forum/internal/krypto"
)

func Test_Tx_Accounts(t *testing.T) {
	t.Run("ok, create and find account", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		account := testAccount(t)
		err := tx.CreateAccount(&account)
		if err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		if account.ID == uuid.Nil {
			t.Fatalf("expected account ID to be set")
		}

		got, err := tx.FindAccount(account.ID)
		if err != nil {
			t.Fatalf("failed to find account: %v", err)
		}

		assertAccount(t, got, account)
		commit(t, tx)
	})

	t.Run("ok, accounts get unique IDs", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		a1 := testAccount(t)
		a2 := testAccount(t)
		a2.Username = "bob"

		for _, a := range []*auth.Account{&a1, &a2} {
			err := tx.CreateAccount(a)
			if err != nil {
				t.Fatalf("failed to create account: %v", err)
			}
		}

		if a1.ID == a2.ID {
			t.Fatalf("expected different IDs")
		}
	})

	t.Run("ok, email is encrypted at rest", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		account := testAccount(t)
		err := tx.CreateAccount(&account)
		if err != nil {
			t.Fatalf("failed to create account: %v", err)
		}
		commit(t, tx)

		var stored []byte
		err = st.db.QueryRow(`SELECT email_encrypted FROM accounts`).Scan(&stored)
		if err != nil {
			t.Fatalf("failed to select email: %v", err)
		}

		if bytes.Contains(bytes.ToLower(stored), []byte("alice@example.com")) {
			t.Fatalf("email is stored in plaintext")
		}
	})

	t.Run("fail, account not found", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		_, err := tx.FindAccount(uuid.New())
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrNotFound, err)
		}
	})

	t.Run("ok, rollback discards account", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		account := testAccount(t)
		err := tx.CreateAccount(&account)
		if err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		err = tx.Rollback()
		if err != nil {
			t.Fatalf("failed to rollback: %v", err)
		}

		tx = beginTx(t, st.store)
		_, err = tx.FindAccount(account.ID)
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrNotFound, err)
		}
	})
}

func Test_Tx_Identities(t *testing.T) {
	t.Run("ok, create identity", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)
		account := createAccount(t, tx)

		identity := auth.Identity{
			Kind:      auth.IdentityUsername,
			Value:     "alice",
			AccountID: account.ID,
			CreatedAt: now(t),
		}

		err := tx.CreateIdentity(&identity)
		if err != nil {
			t.Fatalf("failed to create identity: %v", err)
		}

		assertIdentityExists(t, tx, auth.IdentityUsername, "alice", true)

		// Lookups are exact.
		assertIdentityExists(t, tx, auth.IdentityUsername, "Alice", false)
		// Kinds don't share values.
		assertIdentityExists(t, tx, auth.IdentityNormalizedEmail, "alice", false)

		commit(t, tx)

		exists, err := st.store.IdentityExists(context.Background(), auth.IdentityUsername, "alice")
		if err != nil {
			t.Fatalf("failed to check identity: %v", err)
		}

		if !exists {
			t.Fatalf("expected identity to exist outside of transaction")
		}
	})

	t.Run("ok, same value with different kind", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)
		account := createAccount(t, tx)

		for _, kind := range []auth.IdentityKind{auth.IdentityUsername, auth.IdentityNormalizedEmail} {
			err := tx.CreateIdentity(&auth.Identity{
				Kind:      kind,
				Value:     "alice",
				AccountID: account.ID,
				CreatedAt: now(t),
			})
			if err != nil {
				t.Fatalf("failed to create identity: %v", err)
			}
		}
	})

	t.Run("ok, value is not stored in plaintext", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)
		account := createAccount(t, tx)

		err := tx.CreateIdentity(&auth.Identity{
			Kind:      auth.IdentityNormalizedEmail,
			Value:     "alice@example.com",
			AccountID: account.ID,
			CreatedAt: now(t),
		})
		if err != nil {
			t.Fatalf("failed to create identity: %v", err)
		}
		commit(t, tx)

		var stored []byte
		err = st.db.QueryRow(`SELECT value_index FROM identities`).Scan(&stored)
		if err != nil {
			t.Fatalf("failed to select identity: %v", err)
		}

		if bytes.Contains(stored, []byte("alice@example.com")) {
			t.Fatalf("identity value is stored in plaintext")
		}
	})

	t.Run("fail, identity already claimed", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)
		a1 := createAccount(t, tx)

		a2 := testAccount(t)
		a2.Username = "bob"
		err := tx.CreateAccount(&a2)
		if err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		err = tx.CreateIdentity(&auth.Identity{
			Kind:      auth.IdentityUsername,
			Value:     "alice",
			AccountID: a1.ID,
			CreatedAt: now(t),
		})
		if err != nil {
			t.Fatalf("failed to create identity: %v", err)
		}

		err = tx.CreateIdentity(&auth.Identity{
			Kind:      auth.IdentityUsername,
			Value:     "alice",
			AccountID: a2.ID,
			CreatedAt: now(t),
		})
		if !errors.Is(err, errorz.ErrConstraintViolated) {
			t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrConstraintViolated, err)
		}
	})

	t.Run("fail, account does not exist", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		err := tx.CreateIdentity(&auth.Identity{
			Kind:      auth.IdentityUsername,
			Value:     "alice",
			AccountID: uuid.New(),
			CreatedAt: now(t),
		})
		if !errors.Is(err, errorz.ErrConstraintViolated) {
			t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrConstraintViolated, err)
		}
	})

	t.Run("fail, zero account id", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		err := tx.CreateIdentity(&auth.Identity{
			Kind:      auth.IdentityUsername,
			Value:     "alice",
			CreatedAt: now(t),
		})
		if !errors.Is(err, errorz.ErrConstraintViolated) {
			t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrConstraintViolated, err)
		}
	})
}

func Test_Tx_Tokens(t *testing.T) {
	t.Run("ok, create and find token", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		token := pendingSignupToken(t, now(t).Add(time.Hour))
		err := tx.CreateToken(&token)
		if err != nil {
			t.Fatalf("failed to create token: %v", err)
		}

		if token.ID.IsZero() {
			t.Fatalf("expected token ID to be set")
		}

		got, err := tx.FindToken(token.ID, now(t))
		if err != nil {
			t.Fatalf("failed to find token: %v", err)
		}

		if got.ID != token.ID || !got.CreatedAt.Equal(token.CreatedAt) {
			t.Errorf("got %#v, want %#v", got, token)
		}

		if got.Expiration == nil || !got.Expiration.Equal(*token.Expiration) {
			t.Errorf("got expiration %v, want %v", got.Expiration, token.Expiration)
		}

		if got.Payload != token.Payload {
			t.Errorf("got payload %#v, want %#v", got.Payload, token.Payload)
		}
	})

	t.Run("ok, token without expiration", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		token := auth.AuthToken{
			CreatedAt: now(t),
			Payload:   auth.Session{AccountID: uuid.New()},
		}

		err := tx.CreateToken(&token)
		if err != nil {
			t.Fatalf("failed to create token: %v", err)
		}

		got, err := tx.FindToken(token.ID, now(t).Add(100*365*24*time.Hour))
		if err != nil {
			t.Fatalf("failed to find token: %v", err)
		}

		if got.Expiration != nil {
			t.Errorf("expected no expiration, got %v", got.Expiration)
		}

		if got.Payload != token.Payload {
			t.Errorf("got payload %#v, want %#v", got.Payload, token.Payload)
		}
	})

	t.Run("ok, unknown scope", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		token := pendingSignupToken(t, now(t).Add(time.Hour))
		err := tx.CreateToken(&token)
		if err != nil {
			t.Fatalf("failed to create token: %v", err)
		}
		commit(t, tx)

		_, err = st.db.Exec(`UPDATE auth_tokens SET scope = 'passwordReset'`)
		if err != nil {
			t.Fatalf("failed to update scope: %v", err)
		}

		tx = beginTx(t, st.store)
		got, err := tx.FindToken(token.ID, now(t))
		if err != nil {
			t.Fatalf("failed to find token: %v", err)
		}

		if got.Payload != nil {
			t.Errorf("expected nil payload, got %#v", got.Payload)
		}
	})

	t.Run("ok, payload is encrypted at rest", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		token := pendingSignupToken(t, now(t).Add(time.Hour))
		err := tx.CreateToken(&token)
		if err != nil {
			t.Fatalf("failed to create token: %v", err)
		}
		commit(t, tx)

		var idIndex, payload []byte
		err = st.db.QueryRow(`SELECT id_index, payload_encrypted FROM auth_tokens`).Scan(&idIndex, &payload)
		if err != nil {
			t.Fatalf("failed to select token: %v", err)
		}

		if bytes.Contains(idIndex, token.ID[:]) {
			t.Errorf("token id is stored in plaintext")
		}

		if bytes.Contains(bytes.ToLower(payload), []byte("alice")) {
			t.Errorf("payload is stored in plaintext")
		}
	})

	expiryTests := map[string]time.Duration{
		"fail, expired token":       -time.Second,
		"fail, token at expiration": 0,
	}

	for name, offset := range expiryTests {
		t.Run(name, func(t *testing.T) {
			st := storeForTest(t)
			tx := beginTx(t, st.store)

			token := pendingSignupToken(t, now(t).Add(offset))
			err := tx.CreateToken(&token)
			if err != nil {
				t.Fatalf("failed to create token: %v", err)
			}

			_, err = tx.FindToken(token.ID, now(t))
			if !errors.Is(err, errorz.ErrNotFound) {
				t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrNotFound, err)
			}
		})
	}

	t.Run("fail, unknown token", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		_, err := tx.FindToken(must(krypto.GenerateToken()), now(t))
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrNotFound, err)
		}
	})

	t.Run("ok, delete token once", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		token := pendingSignupToken(t, now(t).Add(time.Hour))
		err := tx.CreateToken(&token)
		if err != nil {
			t.Fatalf("failed to create token: %v", err)
		}

		removed, err := tx.DeleteToken(token.ID)
		if err != nil {
			t.Fatalf("failed to delete token: %v", err)
		}

		if !removed {
			t.Fatalf("expected token to be removed")
		}

		removed, err = tx.DeleteToken(token.ID)
		if err != nil {
			t.Fatalf("failed to delete token: %v", err)
		}

		if removed {
			t.Fatalf("expected token to be removed only once")
		}

		_, err = tx.FindToken(token.ID, now(t))
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrNotFound, err)
		}
	})

	t.Run("ok, delete expired tokens", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		tokens := []auth.AuthToken{
			pendingSignupToken(t, now(t).Add(-time.Hour)),
			pendingSignupToken(t, now(t)),
			pendingSignupToken(t, now(t).Add(time.Hour)),
			{CreatedAt: now(t), Payload: auth.Session{AccountID: uuid.New()}},
		}

		for i := range tokens {
			err := tx.CreateToken(&tokens[i])
			if err != nil {
				t.Fatalf("failed to create token: %v", err)
			}
		}

		n, err := tx.DeleteExpiredTokens(now(t))
		if err != nil {
			t.Fatalf("failed to delete expired tokens: %v", err)
		}

		if n != 2 {
			t.Fatalf("expected 2 deleted tokens, got %d", n)
		}

		for _, tok := range tokens[2:] {
			_, err := tx.FindToken(tok.ID, now(t))
			if err != nil {
				t.Fatalf("failed to find remaining token: %v", err)
			}
		}
	})

	t.Run("fail, token without payload", func(t *testing.T) {
		st := storeForTest(t)
		tx := beginTx(t, st.store)

		err := tx.CreateToken(&auth.AuthToken{CreatedAt: now(t)})
		if !errors.Is(err, errorz.ErrConstraintViolated) {
			t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrConstraintViolated, err)
		}
	})
}

type storeTest struct {
	store *authdb.Store
	db    *sql.DB
}

func storeForTest(t *testing.T) storeTest {
	t.Helper()

	conn := testdb.RunWhile(t)
	return storeTest{
		store: newStore(conn, db.DriverSQLite),
		db:    conn,
	}
}

func testAccount(t *testing.T) auth.Account {
	t.Helper()

	return auth.Account{
		Email:     must(email.NewEmail("Alice@example.com")),
		Username:  "alice",
		CreatedAt: now(t),
	}
}

func createAccount(t *testing.T, tx auth.Tx) auth.Account {
	t.Helper()

	account := testAccount(t)
	err := tx.CreateAccount(&account)
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	return account
}

func pendingSignupToken(t *testing.T, expiration time.Time) auth.AuthToken {
	t.Helper()

	return auth.AuthToken{
		CreatedAt:  now(t),
		Expiration: &expiration,
		Payload: auth.PendingSignup{
			Email:    must(email.NewEmail("Alice@example.com")),
			Username: "alice",
		},
	}
}

func assertAccount(t *testing.T, got, want auth.Account) {
	t.Helper()

	if got.ID != want.ID || got.Email != want.Email || got.Username != want.Username {
		t.Errorf("got\n%#v\nwant\n%#v\n", got, want)
	}

	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("got created at %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func assertIdentityExists(t *testing.T, tx auth.Tx, kind auth.IdentityKind, value string, want bool) {
	t.Helper()

	got, err := tx.IdentityExists(kind, value)
	if err != nil {
		t.Fatalf("failed to check identity: %v", err)
	}

	if got != want {
		t.Errorf("identity %s %q: got exists %v, want %v", kind, value, got, want)
	}
}

func beginTx(t *testing.T, store auth.Store) auth.Tx {
	t.Helper()

	tx, err := store.BeginTx(context.Background())
	if err != nil {
		t.Fatalf("failed to begin tx: %v", err)
	}

	t.Cleanup(func() {
		// Rolling back a finished transaction is a no-op.
		_ = tx.Rollback()
	})

	return tx
}

func commit(t *testing.T, tx auth.Tx) {
	t.Helper()

	err := tx.Commit()
	if err != nil {
		t.Fatalf("failed to commit tx: %v", err)
	}
}

func now(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func newStore(conn *sql.DB, driver db.Driver) *authdb.Store {
	encryptor := must(krypto.NewEncryptor([]krypto.Key{
		must(krypto.ParseKey("2b671594b775f371eab4050b4d58326682df6b1a6cc2e886717b1a26b4d6c45d")),
	}))

	blindIndex := must(krypto.NewBlindIndex(
		must(krypto.ParseKey("90303dfed7994260ea4817a5ca8a392915cd401115b2f97495dadfcbcd14adbf")),
	))

	return authdb.New(conn, driver, encryptor, blindIndex)
}

func must[T any](t T, err error) T {
	if err != nil {
		panic(err)
	}
	return t
}
