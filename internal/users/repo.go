package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
	"github.com/ariefcatur/go-retail-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
)

type Repo struct{ DB postgres.DB }

const userColumns = `id, email, password_hash, first_name, last_name, company, position, type, is_active`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Company, &u.Position, &u.Type, &u.IsActive); err != nil {
		return nil, err
	}
	return &u, nil
}

func notFoundUser(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("user not found")
	}
	return err
}

// CreateUser inserts an inactive user together with its email confirmation key.
func (r *Repo) CreateUser(ctx context.Context, u *User, confirmKey string) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO users(email, password_hash, first_name, last_name, company, position, type)
		VALUES (lower($1), $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Company, u.Position, string(u.Type)).Scan(&id)
	if postgres.IsUniqueViolation(err, "users_email_key") {
		return 0, apperr.Conflict("user with email %s already exists", u.Email)
	}
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO confirm_email_tokens(key, user_id) VALUES ($1, $2)`, confirmKey, id); err != nil {
		return 0, err
	}
	return id, tx.Commit(ctx)
}

// ConfirmEmail consumes the key and activates its user. It reports false
// when the key does not belong to the email.
func (r *Repo) ConfirmEmail(ctx context.Context, email, key string) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID int64
	err = tx.QueryRow(ctx, `
		DELETE FROM confirm_email_tokens t USING users u
		WHERE u.id = t.user_id AND u.email = lower($1) AND t.key = $2
		RETURNING t.user_id`, email, key).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET is_active = TRUE WHERE id=$1`, userID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *Repo) UserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = lower($1)`, strings.TrimSpace(email)))
	return u, notFoundUser(err)
}

func (r *Repo) UserByID(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	return u, notFoundUser(err)
}

// UserByToken resolves an API token to an active user.
func (r *Repo) UserByToken(ctx context.Context, key string) (*User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `
		SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name, u.company, u.position, u.type, u.is_active
		FROM auth_tokens t JOIN users u ON u.id = t.user_id
		WHERE t.key=$1 AND u.is_active`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Unauthorized("invalid token")
	}
	return u, err
}

// IssueToken returns the user's API token, storing key when none exists yet.
func (r *Repo) IssueToken(ctx context.Context, userID int64, key string) (string, error) {
	var got string
	err := r.DB.QueryRow(ctx, `
		INSERT INTO auth_tokens(key, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET key = auth_tokens.key
		RETURNING key`, key, userID).Scan(&got)
	return got, err
}

func (r *Repo) DeleteTokens(ctx context.Context, userID int64) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM auth_tokens WHERE user_id=$1`, userID)
	return err
}

// UpdateUser applies the non-nil fields of p. passwordHash replaces the
// stored hash when non-empty.
func (r *Repo) UpdateUser(ctx context.Context, id int64, p DetailsPatch, passwordHash string) error {
	var typ *string
	if p.Type != nil {
		s := string(*p.Type)
		typ = &s
	}
	tag, err := r.DB.Exec(ctx, `
		UPDATE users SET
			first_name    = COALESCE($2, first_name),
			last_name     = COALESCE($3, last_name),
			company       = COALESCE($4, company),
			position      = COALESCE($5, position),
			type          = COALESCE($6, type),
			password_hash = COALESCE(NULLIF($7, ''), password_hash)
		WHERE id=$1`, id, p.FirstName, p.LastName, p.Company, p.Position, typ, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// IssueResetToken stores key as the user's only password reset token,
// replacing an older one.
func (r *Repo) IssueResetToken(ctx context.Context, userID int64, key string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO password_reset_tokens(key, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET key = EXCLUDED.key, created_at = now()`, key, userID)
	return err
}

// UserByResetToken returns the user owning a reset token younger than maxAge.
func (r *Repo) UserByResetToken(ctx context.Context, key string, maxAge time.Duration) (*User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `
		SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name, u.company, u.position, u.type, u.is_active
		FROM password_reset_tokens t JOIN users u ON u.id = t.user_id
		WHERE t.key=$1 AND t.created_at > now() - make_interval(secs => $2)`, key, maxAge.Seconds()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("password reset token not found")
	}
	return u, err
}

// ResetPassword consumes the token and sets the new hash in one transaction.
// API tokens of the user are revoked. It reports false when the token was
// already used.
func (r *Repo) ResetPassword(ctx context.Context, userID int64, key, passwordHash string) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM password_reset_tokens WHERE key=$1 AND user_id=$2`, key, userID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET password_hash=$2 WHERE id=$1`, userID, passwordHash); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM auth_tokens WHERE user_id=$1`, userID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

const contactSelect = `SELECT id, country, region, city, street, house, structure, building, apartment, phone, postal_code FROM contacts`

func (r *Repo) Contacts(ctx context.Context, userID int64) ([]Contact, error) {
	rows, err := r.DB.Query(ctx, contactSelect+` WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Contact{}
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Country, &c.Region, &c.City, &c.Street, &c.House,
			&c.Structure, &c.Building, &c.Apartment, &c.Phone, &c.PostalCode); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) CreateContact(ctx context.Context, userID int64, in ContactInput) (int64, error) {
	var id int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO contacts(user_id, country, region, city, street, house, structure, building, apartment, phone, postal_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`, userID, in.Country, in.Region, in.City, in.Street, in.House,
		in.Structure, in.Building, in.Apartment, in.Phone, in.PostalCode).Scan(&id)
	return id, err
}

// UpdateContact applies the non-nil fields of p to a contact owned by userID.
func (r *Repo) UpdateContact(ctx context.Context, userID int64, p ContactPatch) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE contacts SET
			country     = COALESCE($3, country),
			region      = COALESCE($4, region),
			city        = COALESCE($5, city),
			street      = COALESCE($6, street),
			house       = COALESCE($7, house),
			structure   = COALESCE($8, structure),
			building    = COALESCE($9, building),
			apartment   = COALESCE($10, apartment),
			phone       = COALESCE($11, phone),
			postal_code = COALESCE($12, postal_code)
		WHERE id=$1 AND user_id=$2`, p.ID, userID, p.Country, p.Region, p.City, p.Street, p.House,
		p.Structure, p.Building, p.Apartment, p.Phone, p.PostalCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("contact %d is missing or does not belong to the user", p.ID)
	}
	return nil
}

// DeleteContacts removes the user's contacts among ids and returns the ids removed.
func (r *Repo) DeleteContacts(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	rows, err := r.DB.Query(ctx, `DELETE FROM contacts WHERE user_id=$1 AND id = ANY($2) RETURNING id`, userID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
