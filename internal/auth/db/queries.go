package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/forum/internal/auth"
	"github.com/willemschots/forum/internal/db"
	"github.com/willemschots/forum/internal/email"
	"github.com/willemschots/forum/internal/errorz"
	"github.com/willemschots/forum/internal/krypto"
)

type execFunc func(query string, params ...any) (sql.Result, error)
type queryRowFunc func(query string, params ...any) *sql.Row

func insertAccount(q *db.Query, ef execFunc, a auth.Account) error {
	if a.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	emailJSON, err := json.Marshal(a.Email)
	if err != nil {
		return err
	}

	q.Unsafe(`INSERT INTO accounts (id, email_encrypted, username, created_at) VALUES (`)
	q.Param(a.ID)
	q.Unsafe(`, `)
	q.ParamEncrypted(emailJSON)
	q.Unsafe(`, `)
	q.Params(string(a.Username), a.CreatedAt.UTC())
	q.Unsafe(`)`)

	return exec(q, ef)
}

func selectAccount(q *db.Query, qf queryRowFunc, id uuid.UUID) (auth.Account, error) {
	q.Unsafe(`SELECT id, email_encrypted, username, created_at FROM accounts WHERE id = `)
	q.Param(id)

	s, params, err := q.Get()
	if err != nil {
		return auth.Account{}, err
	}

	var (
		a          auth.Account
		emailBytes = q.DecryptionTarget()
	)

	err = qf(s, params...).Scan(&a.ID, emailBytes, &a.Username, &a.CreatedAt)
	if err != nil {
		return auth.Account{}, errorz.MapDBErr(err)
	}

	var e email.Email
	err = json.Unmarshal(emailBytes.Data, &e)
	if err != nil {
		return auth.Account{}, fmt.Errorf("failed to decode email of account: %w", err)
	}

	a.Email = e
	return a, nil
}

func identityExists(q *db.Query, qf queryRowFunc, kind auth.IdentityKind, value string) (bool, error) {
	q.Unsafe(`SELECT COUNT(*) FROM identities WHERE kind = `)
	q.Param(string(kind))
	q.Unsafe(` AND value_index = `)
	q.ParamBlindIndex(identityIndexData(kind, value))

	s, params, err := q.Get()
	if err != nil {
		return false, err
	}

	var n int
	err = qf(s, params...).Scan(&n)
	if err != nil {
		return false, errorz.MapDBErr(err)
	}

	return n > 0, nil
}

func insertIdentity(q *db.Query, ef execFunc, i auth.Identity) error {
	if i.AccountID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	q.Unsafe(`INSERT INTO identities (kind, value_index, account_id, created_at) VALUES (`)
	q.Param(string(i.Kind))
	q.Unsafe(`, `)
	q.ParamBlindIndex(identityIndexData(i.Kind, i.Value))
	q.Unsafe(`, `)
	q.Params(i.AccountID, i.CreatedAt.UTC())
	q.Unsafe(`)`)

	return exec(q, ef)
}

func insertToken(q *db.Query, ef execFunc, t auth.AuthToken) error {
	if t.ID.IsZero() {
		return fmt.Errorf("zero token provided: %w", errorz.ErrConstraintViolated)
	}

	if t.Payload == nil {
		return fmt.Errorf("token without payload: %w", errorz.ErrConstraintViolated)
	}

	scope, payload, err := auth.MarshalPayload(t.Payload)
	if err != nil {
		return err
	}

	var expiresAt sql.NullTime
	if t.Expiration != nil {
		expiresAt = sql.NullTime{Time: t.Expiration.UTC(), Valid: true}
	}

	q.Unsafe(`INSERT INTO auth_tokens (id_index, scope, payload_encrypted, created_at, expires_at) VALUES (`)
	q.ParamBlindIndex(tokenIndexData(t.ID))
	q.Unsafe(`, `)
	q.Param(string(scope))
	q.Unsafe(`, `)
	q.ParamEncrypted(payload)
	q.Unsafe(`, `)
	q.Params(t.CreatedAt.UTC(), expiresAt)
	q.Unsafe(`)`)

	return exec(q, ef)
}

func selectToken(q *db.Query, qf queryRowFunc, id krypto.Token, now time.Time) (auth.AuthToken, error) {
	q.Unsafe(`SELECT scope, payload_encrypted, created_at, expires_at FROM auth_tokens WHERE id_index = `)
	q.ParamBlindIndex(tokenIndexData(id))
	q.Unsafe(` AND (expires_at IS NULL OR expires_at > `)
	q.Param(now.UTC())
	q.Unsafe(`)`)

	s, params, err := q.Get()
	if err != nil {
		return auth.AuthToken{}, err
	}

	var (
		scope        string
		payloadBytes = q.DecryptionTarget()
		expiresAt    sql.NullTime
		token        = auth.AuthToken{ID: id}
	)

	err = qf(s, params...).Scan(&scope, payloadBytes, &token.CreatedAt, &expiresAt)
	if err != nil {
		return auth.AuthToken{}, errorz.MapDBErr(err)
	}

	if expiresAt.Valid {
		token.Expiration = &expiresAt.Time
	}

	token.Payload, err = auth.UnmarshalPayload(auth.Scope(scope), payloadBytes.Data)
	if err != nil {
		return auth.AuthToken{}, err
	}

	return token, nil
}

func deleteToken(q *db.Query, ef execFunc, id krypto.Token) (int64, error) {
	q.Unsafe(`DELETE FROM auth_tokens WHERE id_index = `)
	q.ParamBlindIndex(tokenIndexData(id))

	return execAffected(q, ef)
}

func deleteExpiredTokens(q *db.Query, ef execFunc, now time.Time) (int64, error) {
	q.Unsafe(`DELETE FROM auth_tokens WHERE expires_at IS NOT NULL AND expires_at <= `)
	q.Param(now.UTC())

	return execAffected(q, ef)
}

func exec(q *db.Query, ef execFunc) error {
	_, err := execAffected(q, ef)
	return err
}

func execAffected(q *db.Query, ef execFunc) (int64, error) {
	s, params, err := q.Get()
	if err != nil {
		return 0, err
	}

	result, err := ef(s, params...)
	if err != nil {
		return 0, errorz.MapDBErr(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, errorz.MapDBErr(err)
	}

	return n, nil
}

// identityIndexData includes the kind, so that equal values of different
// kinds have unrelated indexes.
func identityIndexData(kind auth.IdentityKind, value string) []byte {
	return []byte("identity:" + string(kind) + ":" + value)
}

func tokenIndexData(id krypto.Token) []byte {
	return append([]byte("token:"), id[:]...)
}
