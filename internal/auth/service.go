package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/willemschots/forum/internal/email"
	"github.com/willemschots/forum/internal/errorz"
	"github.com/willemschots/forum/internal/krypto"
)

// SignupConfirmationTemplate is the email template used to deliver
// pending signup tokens.
const SignupConfirmationTemplate = "signup-confirmation"

// Emailer is used to send templated emails.
type Emailer interface {
	Send(ctx context.Context, template string, to email.Address, data any) error
}

// ErrFunc is a function that handles errors.
type ErrFunc func(error)

// ServiceConfig is the configuration for the Service.
type ServiceConfig struct {
	// WorkerTimeout is the max duration worker goroutines are allowed
	// to take before they are cancelled.
	WorkerTimeout time.Duration
	// SignupTokenExpiry is the duration a pending signup token is valid.
	SignupTokenExpiry time.Duration
	// TxMaxRetries is the number of times a transaction is retried after
	// a transient failure.
	TxMaxRetries int
	// TxBackoff is the initial wait between retries, it doubles every retry.
	TxBackoff time.Duration
}

const (
	defaultWorkerTimeout     = 10 * time.Second
	defaultSignupTokenExpiry = 24 * time.Hour
	defaultTxBackoff         = 10 * time.Millisecond
)

// Service implements passwordless authentication: signups are confirmed
// by redeeming a token that was emailed to the user, redeeming a token
// issues a session token.
type Service struct {
	store      Store
	emailer    Emailer
	wg         *sync.WaitGroup
	errHandler ErrFunc
	cfg        ServiceConfig

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

// NewService creates a new service. Zero durations in cfg are replaced
// by defaults.
func NewService(s Store, emailer Emailer, errHandler ErrFunc, cfg ServiceConfig) *Service {
	if cfg.WorkerTimeout <= 0 {
		cfg.WorkerTimeout = defaultWorkerTimeout
	}

	if cfg.SignupTokenExpiry <= 0 {
		cfg.SignupTokenExpiry = defaultSignupTokenExpiry
	}

	if cfg.TxBackoff <= 0 {
		cfg.TxBackoff = defaultTxBackoff
	}

	if cfg.TxMaxRetries < 0 {
		cfg.TxMaxRetries = 0
	}

	return &Service{
		store:      s,
		emailer:    emailer,
		wg:         &sync.WaitGroup{},
		errHandler: errHandler,
		cfg:        cfg,
		NowFunc:    time.Now,
	}
}

// Wait waits for all open workers to finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// SignupRequest is a request to create an account.
type SignupRequest struct {
	Email    string
	Username string
}

// SignupConfirmation is the data the signup confirmation email is rendered with.
type SignupConfirmation struct {
	Username Username
	Token    krypto.Token
}

// BeginSignup starts a signup: it issues a pending signup token and emails
// it to the address in the request. No account is created until the token
// is redeemed.
//
// The token is never returned, only the owner of the email address gets to see it.
func (s *Service) BeginSignup(ctx context.Context, req SignupRequest) error {
	addr, username, err := validateSignup(req)
	if err != nil {
		return err
	}

	// Fast path for the common case, the authoritative check happens
	// when the token is redeemed.
	err = s.checkAvailable(ctx, addr, username)
	if err != nil {
		return err
	}

	now := s.NowFunc()
	expiration := now.Add(s.cfg.SignupTokenExpiry)

	token := AuthToken{
		CreatedAt:  now,
		Expiration: &expiration,
		Payload: PendingSignup{
			Email:    addr,
			Username: username,
		},
	}

	err = s.inTx(ctx, func(tx Tx) error {
		token.ID = krypto.Token{}
		return tx.CreateToken(&token)
	})
	if err != nil {
		return err
	}

	// Sending the email could fail independently of the transaction. If it
	// does, the user can start the signup again.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		wCtx, cancel := context.WithTimeout(context.Background(), s.cfg.WorkerTimeout)
		defer cancel()

		err := s.emailer.Send(wCtx, SignupConfirmationTemplate, addr.Raw, SignupConfirmation{
			Username: username,
			Token:    token.ID,
		})
		if err != nil {
			s.errHandler(fmt.Errorf("failed to send signup confirmation: %w", err))
		}
	}()

	return nil
}

func validateSignup(req SignupRequest) (email.Email, Username, error) {
	var errs errorz.InvalidInput

	username, err := ParseUsername(req.Username)
	if err != nil {
		errs = append(errs, errorz.Keyed{Key: "username", Err: err})
	}

	addr, err := email.NewEmail(req.Email)
	if err != nil {
		errs = append(errs, errorz.Keyed{Key: "email", Err: ErrInvalidEmail})
	}

	if len(errs) > 0 {
		return email.Email{}, "", errs
	}

	return addr, username, nil
}

func (s *Service) checkAvailable(ctx context.Context, addr email.Email, username Username) error {
	exists, err := s.store.IdentityExists(ctx, IdentityNormalizedEmail, addr.Normalized)
	if err != nil {
		return err
	}

	if exists {
		return emailExistsErr(addr)
	}

	exists, err = s.store.IdentityExists(ctx, IdentityUsername, string(username))
	if err != nil {
		return err
	}

	if exists {
		return usernameExistsErr(username)
	}

	return nil
}

// RedeemRequest is a request to redeem a token.
type RedeemRequest struct {
	Token string
}

// RedeemResponse contains the session token issued by a redemption.
type RedeemResponse struct {
	Token krypto.Token
}

// Redeem consumes a token and issues a new session token.
//
// Redeeming a pending signup token creates the account. Redeeming a session
// token re-issues a session for the same account. A token can be redeemed
// only once, afterwards it's reported as ErrInvalidToken, the same as an
// expired or unknown token.
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (RedeemResponse, error) {
	id, err := krypto.ParseToken(req.Token)
	if err != nil {
		return RedeemResponse{}, ErrInvalidToken
	}

	var session AuthToken

	err = s.inTx(ctx, func(tx Tx) error {
		now := s.NowFunc()

		token, txErr := findValidToken(tx, id, now)
		if txErr != nil {
			return txErr
		}

		var sessionPayload Session
		switch p := token.Payload.(type) {
		case PendingSignup:
			account, txErr := createAccount(tx, p, now)
			if txErr != nil {
				return txErr
			}
			sessionPayload.AccountID = account.ID
		case Session:
			_, txErr := tx.FindAccount(p.AccountID)
			if txErr != nil {
				return mapNotFound(txErr, ErrAccountNotFound)
			}
			sessionPayload = p
		default:
			return ErrInvalidAuthScope
		}

		// Only one transaction can delete the token, any other redemption
		// of the same token must fail here.
		removed, txErr := tx.DeleteToken(id)
		if txErr != nil {
			return txErr
		}

		if !removed {
			return ErrInvalidToken
		}

		session = AuthToken{
			CreatedAt: now,
			Payload:   sessionPayload,
		}

		return tx.CreateToken(&session)
	})
	if err != nil {
		return RedeemResponse{}, err
	}

	return RedeemResponse{
		Token: session.ID,
	}, nil
}

func findValidToken(tx Tx, id krypto.Token, now time.Time) (AuthToken, error) {
	token, err := tx.FindToken(id, now)
	if err != nil {
		return AuthToken{}, mapNotFound(err, ErrInvalidToken)
	}

	// The store should not return expired tokens, but we don't rely on it.
	if token.ExpiredAt(now) {
		return AuthToken{}, ErrInvalidToken
	}

	return token, nil
}

func createAccount(tx Tx, p PendingSignup, now time.Time) (Account, error) {
	exists, err := tx.IdentityExists(IdentityNormalizedEmail, p.Email.Normalized)
	if err != nil {
		return Account{}, err
	}

	if exists {
		return Account{}, emailExistsErr(p.Email)
	}

	exists, err = tx.IdentityExists(IdentityUsername, string(p.Username))
	if err != nil {
		return Account{}, err
	}

	if exists {
		return Account{}, usernameExistsErr(p.Username)
	}

	account := Account{
		Email:     p.Email,
		Username:  p.Username,
		CreatedAt: now,
	}

	err = tx.CreateAccount(&account)
	if err != nil {
		return Account{}, err
	}

	// The identities are the authoritative uniqueness guard, the checks
	// above only provide nicer errors.
	for _, identity := range identitiesOf(account) {
		err = tx.CreateIdentity(&identity)
		if errors.Is(err, errorz.ErrConstraintViolated) {
			if identity.Kind == IdentityNormalizedEmail {
				return Account{}, emailExistsErr(p.Email)
			}
			return Account{}, usernameExistsErr(p.Username)
		}

		if err != nil {
			return Account{}, err
		}
	}

	return account, nil
}

// Authenticate returns the account a session token belongs to. Unlike
// Redeem it does not consume the token.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (Account, error) {
	id, err := krypto.ParseToken(rawToken)
	if err != nil {
		return Account{}, ErrInvalidToken
	}

	var account Account
	err = s.inTx(ctx, func(tx Tx) error {
		token, txErr := findValidToken(tx, id, s.NowFunc())
		if txErr != nil {
			return txErr
		}

		session, ok := token.Payload.(Session)
		if !ok {
			return ErrInvalidToken
		}

		account, txErr = tx.FindAccount(session.AccountID)
		if txErr != nil {
			return mapNotFound(txErr, ErrAccountNotFound)
		}

		return nil
	})
	if err != nil {
		return Account{}, err
	}

	return account, nil
}

// SweepExpiredTokens deletes all expired tokens and returns how many were deleted.
func (s *Service) SweepExpiredTokens(ctx context.Context) (int, error) {
	var n int
	err := s.inTx(ctx, func(tx Tx) error {
		var txErr error
		n, txErr = tx.DeleteExpiredTokens(s.NowFunc())
		return txErr
	})
	if err != nil {
		return 0, err
	}

	return n, nil
}

// inTx runs f in a transaction. Transactions that fail with a transient
// error are retried with exponential backoff, so f may be called more
// than once and must not leak state between calls.
func (s *Service) inTx(ctx context.Context, f func(tx Tx) error) error {
	b := retry.WithMaxRetries(uint64(s.cfg.TxMaxRetries), retry.NewExponential(s.cfg.TxBackoff))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := s.runTx(ctx, f)
		if errors.Is(err, errorz.ErrTransient) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *Service) runTx(ctx context.Context, f func(tx Tx) error) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}

	err = f(tx)
	if err != nil {
		rBackErr := tx.Rollback()
		if rBackErr != nil {
			err = errors.Join(err, rBackErr)
		}
		return err
	}

	return tx.Commit()
}

func mapNotFound(err, target error) error {
	if errors.Is(err, errorz.ErrNotFound) {
		return target
	}
	return err
}

func emailExistsErr(addr email.Email) error {
	return ErrEmailAlreadyExists.WithMessage("Account already exists for email " + string(addr.Raw))
}

func usernameExistsErr(username Username) error {
	return ErrUsernameAlreadyExists.WithMessage("Account already exists for username " + string(username))
}
