package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/google/uuid"
)

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(user *models.User) error {
	user.ID = uuid.NewString()
	query := `
		INSERT INTO sprawl.users (id, email, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING created_at`
	err := r.db.QueryRow(query, user.ID, user.Email, user.Name, user.PasswordHash).
		Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, email, name, password_hash, created_at
		FROM sprawl.users
		WHERE email = $1`
	err := r.db.QueryRow(query, email).
		Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreateCompany creates a company and links the creating user as OWNER
func (r *Repository) CreateCompany(company *models.Company, ownerUserID string) error {
	company.ID = uuid.NewString()
	query := `
		INSERT INTO sprawl.companies (id, name, created_at, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(query, company.ID, company.Name).
		Scan(&company.CreatedAt, &company.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO sprawl.company_users (company_id, user_id, role)
		VALUES ($1, $2, $3)`,
		company.ID, ownerUserID, models.RoleOwner)
	if err != nil {
		return fmt.Errorf("failed to link company owner: %w", err)
	}
	return nil
}

// FindCompanyForUser returns the first company a user belongs to
func (r *Repository) FindCompanyForUser(userID string) (*models.Company, error) {
	company := &models.Company{}
	query := `
		SELECT c.id, c.name, c.created_at, c.updated_at
		FROM sprawl.companies c
		JOIN sprawl.company_users cu ON cu.company_id = c.id
		WHERE cu.user_id = $1
		ORDER BY c.created_at
		LIMIT 1`
	err := r.db.QueryRow(query, userID).
		Scan(&company.ID, &company.Name, &company.CreatedAt, &company.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no company found for user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find company: %w", err)
	}
	return company, nil
}

// FindCompanyByID retrieves a company by id
func (r *Repository) FindCompanyByID(id string) (*models.Company, error) {
	company := &models.Company{}
	query := `
		SELECT id, name, created_at, updated_at
		FROM sprawl.companies
		WHERE id = $1`
	err := r.db.QueryRow(query, id).
		Scan(&company.ID, &company.Name, &company.CreatedAt, &company.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("company not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find company: %w", err)
	}
	return company, nil
}

// CompanyAdmins returns every user with an OWNER or ADMIN role in the company.
// These are the recipients for sync and renewal notifications.
func (r *Repository) CompanyAdmins(companyID string) ([]models.User, error) {
	query := `
		SELECT u.id, u.email, u.name, u.created_at
		FROM sprawl.users u
		JOIN sprawl.company_users cu ON cu.user_id = u.id
		WHERE cu.company_id = $1 AND cu.role IN ($2, $3)`
	rows, err := r.db.Query(query, companyID, models.RoleOwner, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to list company admins: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
