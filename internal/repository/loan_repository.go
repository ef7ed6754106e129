package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/creditiq/creditiq-api/internal/models"
)

// LoanRepository defines the interface for loan application data access.
// Applications and their decisions form one aggregate; decisions are
// append-only and read back ordered created_at desc.
type LoanRepository interface {
	FindByID(ctx context.Context, id uint) (*models.LoanApplication, error)
	FindByIDWithDecisions(ctx context.Context, id uint) (*models.LoanApplication, error)
	FindByUser(ctx context.Context, userID uint) ([]models.LoanApplication, error)
	Create(ctx context.Context, app *models.LoanApplication) error
	// UpdateWhereStatus applies fields only when the application's current
	// status matches expectedStatus, as a single conditional UPDATE. It
	// returns false when the row was not in the expected status, which is
	// the storage-level guard closing the race between two concurrent
	// submissions of the same application.
	UpdateWhereStatus(ctx context.Context, id uint, expectedStatus string, fields map[string]any) (bool, error)
	List(ctx context.Context, query *LoanQuery) ([]models.LoanApplication, int64, error)
	FindStaleDrafts(ctx context.Context, olderThan time.Duration) ([]models.LoanApplication, error)
	GetStats(ctx context.Context) (*LoanStats, error)

	CreateDecision(ctx context.Context, decision *models.LoanDecision) error
	ListDecisions(ctx context.Context, applicationID uint) ([]models.LoanDecision, error)
	GetRiskBandDistribution(ctx context.Context) (map[string]int64, error)
}

// LoanQuery extends ListQuery with loan-specific filters
type LoanQuery struct {
	*ListQuery
	UserID  uint
	IsAdmin bool
	Status  string
}

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) FindByID(ctx context.Context, id uint) (*models.LoanApplication, error) {
	var app models.LoanApplication
	err := r.db.WithContext(ctx).First(&app, id).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *loanRepository) FindByIDWithDecisions(ctx context.Context, id uint) (*models.LoanApplication, error) {
	var app models.LoanApplication
	err := r.db.WithContext(ctx).
		Joins("User").
		Preload("Decisions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		First(&app, id).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *loanRepository) FindByUser(ctx context.Context, userID uint) ([]models.LoanApplication, error) {
	var apps []models.LoanApplication
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Decisions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Order("created_at DESC").
		Find(&apps).Error
	return apps, err
}

func (r *loanRepository) Create(ctx context.Context, app *models.LoanApplication) error {
	return r.db.WithContext(ctx).Create(app).Error
}

func (r *loanRepository) UpdateWhereStatus(ctx context.Context, id uint, expectedStatus string, fields map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.LoanApplication{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *loanRepository) List(ctx context.Context, query *LoanQuery) ([]models.LoanApplication, int64, error) {
	var apps []models.LoanApplication
	var total int64

	db := r.db.WithContext(ctx).Model(&models.LoanApplication{})

	// Non-admins only see their own applications
	if !query.IsAdmin && query.UserID > 0 {
		db = db.Where("loan_applications.user_id = ?", query.UserID)
	}

	// Apply status filter (single or multiple via status_in)
	if query.Filters != nil {
		if val, ok := query.Filters["status_in"]; ok && val != "" {
			statuses := strings.Split(val, ",")
			for i, s := range statuses {
				statuses[i] = strings.TrimSpace(s)
			}
			if len(statuses) > 0 {
				db = db.Where("loan_applications.status IN ?", statuses)
			}
		}
	}
	if query.Filters == nil || query.Filters["status_in"] == "" {
		if query.Status != "" {
			db = db.Where("loan_applications.status = ?", query.Status)
		}
	}

	// Apply created_at date filters
	if query.Filters != nil {
		if val, ok := query.Filters["start_date"]; ok && val != "" {
			db = db.Where("loan_applications.created_at >= ?", val)
		}
		if val, ok := query.Filters["end_date"]; ok && val != "" {
			// Include the full day if only a date is provided
			if len(val) == 10 { // YYYY-MM-DD
				val += " 23:59:59"
			}
			db = db.Where("loan_applications.created_at <= ?", val)
		}
		if val, ok := query.Filters["guid"]; ok && val != "" {
			db = db.Where("loan_applications.guid = ?", val)
		}
	}

	// Apply search (JOIN only for filtering; associations loaded via Preload below)
	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Joins("LEFT JOIN users ON users.id = loan_applications.user_id").
			Where("users.first_name ILIKE ? OR users.last_name ILIKE ? OR users.email ILIKE ? OR loan_applications.guid ILIKE ?",
				search, search, search, search)
	}

	// Count total using a separate session so the main query is not altered by Count()
	countDB := db.Session(&gorm.Session{})
	if err := countDB.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply sorting
	if query.SortBy != "" {
		order := query.SortBy
		if query.SortDir == "desc" {
			order += " DESC"
		}
		db = db.Order(order)
	} else {
		db = db.Order("loan_applications.created_at DESC")
	}

	// Apply pagination
	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.
		Preload("User").
		Preload("Decisions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Find(&apps).Error
	if err != nil {
		return nil, 0, err
	}

	return apps, total, nil
}

func (r *loanRepository) FindStaleDrafts(ctx context.Context, olderThan time.Duration) ([]models.LoanApplication, error) {
	var apps []models.LoanApplication
	cutoff := time.Now().Add(-olderThan)
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.ApplicationStatusDraft, cutoff).
		Preload("User").
		Find(&apps).Error
	return apps, err
}

// LoanStats holds the count of applications by status
type LoanStats struct {
	Total       int64 `json:"total"`
	Draft       int64 `json:"draft"`
	Submitted   int64 `json:"submitted"`
	UnderReview int64 `json:"under_review"`
	Approved    int64 `json:"approved"`
	Rejected    int64 `json:"rejected"`
}

func (r *loanRepository) GetStats(ctx context.Context) (*LoanStats, error) {
	stats := &LoanStats{}

	rows, err := r.db.WithContext(ctx).
		Model(&models.LoanApplication{}).
		Select("status, count(*) as count").
		Group("status").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var total int64
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		total += count
		switch status {
		case models.ApplicationStatusDraft:
			stats.Draft = count
		case models.ApplicationStatusSubmitted:
			stats.Submitted = count
		case models.ApplicationStatusUnderReview:
			stats.UnderReview = count
		case models.ApplicationStatusApproved:
			stats.Approved = count
		case models.ApplicationStatusRejected:
			stats.Rejected = count
		}
	}
	stats.Total = total

	return stats, nil
}

func (r *loanRepository) CreateDecision(ctx context.Context, decision *models.LoanDecision) error {
	return r.db.WithContext(ctx).Create(decision).Error
}

func (r *loanRepository) ListDecisions(ctx context.Context, applicationID uint) ([]models.LoanDecision, error) {
	var decisions []models.LoanDecision
	err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at DESC").
		Find(&decisions).Error
	return decisions, err
}

func (r *loanRepository) GetRiskBandDistribution(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.WithContext(ctx).
		Model(&models.LoanDecision{}).
		Select("risk_band, count(*) as count").
		Where("risk_band IS NOT NULL").
		Group("risk_band").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dist := make(map[string]int64)
	for rows.Next() {
		var band string
		var count int64
		if err := rows.Scan(&band, &count); err != nil {
			return nil, err
		}
		dist[band] = count
	}
	return dist, nil
}
