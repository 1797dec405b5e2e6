package db

import (
	"errors"
	"strconv"
	"strings"

	"github.com/willemschots/forum/internal/krypto"
)

// Query helps build SQL queries using bind parameters.
// Use Unsafe to write the static parts of a query and Param to add bind
// parameters. The final query and parameters can be retrieved using Get.
//
// Placeholders are written in the style of the Driver: "?" for SQLite
// and "$1", "$2", ... for Postgres.
//
// The zero value is ready to use and builds SQLite queries.
type Query struct {
	Driver     Driver
	Encryptor  *krypto.Encryptor
	BlindIndex *krypto.BlindIndex
	b          strings.Builder
	params     []any
	err        error
}

// Unsafe writes a non-parameterized part of a query.
func (q *Query) Unsafe(s string) {
	q.b.WriteString(s)
}

// Param writes a parameterized part of a query.
func (q *Query) Param(v any) {
	q.params = append(q.params, v)
	if q.Driver == DriverPostgres {
		q.b.WriteString("$")
		q.b.WriteString(strconv.Itoa(len(q.params)))
		return
	}
	q.b.WriteString("?")
}

// Params writes multiple parameterized parts of a query seperated by commas.
func (q *Query) Params(v ...any) {
	for i, p := range v {
		if i > 0 {
			q.b.WriteString(", ")
		}
		q.Param(p)
	}
}

// ParamEncrypted writes a parameterized part of a query and encrypts the value before adding it to the query.
func (q *Query) ParamEncrypted(d []byte) {
	if q.Encryptor == nil {
		q.err = errors.Join(q.err, errors.New("no encryptor set"))
		return
	}

	enc, err := q.Encryptor.Encrypt(d)
	if err != nil {
		q.err = errors.Join(q.err, err)
		return
	}

	q.Param(enc)
}

// ParamBlindIndex writes a parameterized part of a query with the blind index of d as the value.
// Blind indexes need to be rebuilt if the key changes.
func (q *Query) ParamBlindIndex(d []byte) {
	if q.BlindIndex == nil {
		q.err = errors.Join(q.err, errors.New("no blind index set"))
		return
	}

	q.Param(q.BlindIndex.Sum(d))
}

// Get returns the constructed query and parameter values.
func (q *Query) Get() (string, []any, error) {
	return q.b.String(), q.params, q.err
}

// DecryptionTarget returns a decryptable value that can be used to scan encrypted values.
func (q *Query) DecryptionTarget() *Decryptable {
	return &Decryptable{
		encryptor: q.Encryptor,
	}
}

// Decryptable implements sql.Scanner, it decrypts the scanned value into Data.
type Decryptable struct {
	encryptor *krypto.Encryptor
	Data      []byte
}

func (d *Decryptable) Scan(src any) error {
	if d.encryptor == nil {
		return errors.New("no encryptor set")
	}

	b, ok := src.([]byte)
	if !ok {
		return errors.New("invalid type")
	}

	data, err := d.encryptor.Decrypt(b)
	if err != nil {
		return err
	}

	d.Data = data

	return nil
}
