package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store implements ports.Store on PostgreSQL through gorm
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.Store = (*Store)(nil)

// Open connects to PostgreSQL and migrates the schema
func Open(dsn string, log zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&shopRow{}, &chargeRow{}, &installationRow{}, &sectionRow{}, &planRow{}, &gapRow{}); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	log.Info().Msg("PostgreSQL store ready")
	return New(db), nil
}

// New wraps an existing gorm handle
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close closes the connection pool
func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return err
}

// UpsertShop is one INSERT ... ON CONFLICT (domain) DO UPDATE statement
func (s *Store) UpsertShop(ctx context.Context, shopDomain string, encryptedToken string, scopes []string) (*domain.Shop, error) {
	now := s.now()
	row := shopRow{
		ID:                 uuid.NewString(),
		Domain:             shopDomain,
		AccessToken:        encryptedToken,
		Scopes:             strings.Join(scopes, ","),
		Installed:          true,
		SubscriptionStatus: string(domain.SubscriptionNone),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "domain"}},
				DoUpdates: clause.AssignmentColumns([]string{"access_token", "scopes", "installed", "uninstalled_at", "updated_at"}),
			},
			clause.Returning{},
		).
		Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert shop: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetShop(ctx context.Context, shopDomain string) (*domain.Shop, error) {
	var row shopRow
	if err := s.db.WithContext(ctx).Where("domain = ?", shopDomain).First(&row).Error; err != nil {
		return nil, notFound(err, "shop "+shopDomain)
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateSubscription(ctx context.Context, shopDomain string, status domain.SubscriptionStatus, planID string, chargeID string, expiresAt *time.Time) error {
	updates := map[string]interface{}{
		"subscription_status": string(status),
		"updated_at":          s.now(),
	}
	if planID != "" {
		updates["subscription_plan"] = planID
	}
	if chargeID != "" {
		updates["subscription_charge_id"] = chargeID
	}
	if expiresAt != nil {
		updates["subscription_expires_at"] = *expiresAt
	}

	res := s.db.WithContext(ctx).Model(&shopRow{}).Where("domain = ?", shopDomain).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("shop %s: %w", shopDomain, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) MarkUninstalled(ctx context.Context, shopDomain string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&shopRow{}).Where("domain = ?", shopDomain).Updates(map[string]interface{}{
		"installed":      false,
		"uninstalled_at": at,
		"updated_at":     at,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to mark shop uninstalled: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("shop %s: %w", shopDomain, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateCharge(ctx context.Context, charge *domain.Charge) error {
	row := chargeRowFromDomain(charge)
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to create charge: %w", err)
	}
	charge.ID = row.ID
	charge.CreatedAt = row.CreatedAt
	return nil
}

func (s *Store) GetChargeByExternalID(ctx context.Context, externalID string) (*domain.Charge, error) {
	var row chargeRow
	if err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&row).Error; err != nil {
		return nil, notFound(err, "charge "+externalID)
	}
	return row.toDomain(), nil
}

// TransitionCharge is one UPDATE ... WHERE status = 'pending' RETURNING *
func (s *Store) TransitionCharge(ctx context.Context, externalID string, to domain.ChargeStatus, at time.Time) (*domain.Charge, bool, error) {
	if !domain.CanTransition(domain.ChargePending, to) {
		return nil, false, fmt.Errorf("invalid charge transition to %s", to)
	}

	updates := map[string]interface{}{"status": string(to)}
	if to == domain.ChargeActive {
		updates["activated_at"] = at
	}

	var rows []chargeRow
	res := s.db.WithContext(ctx).
		Model(&rows).
		Clauses(clause.Returning{}).
		Where("external_id = ? AND status = ?", externalID, string(domain.ChargePending)).
		Updates(updates)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to transition charge: %w", res.Error)
	}
	if res.RowsAffected > 0 && len(rows) > 0 {
		return rows[0].toDomain(), true, nil
	}

	current, err := s.GetChargeByExternalID(ctx, externalID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *Store) HasActiveOneTimeCharge(ctx context.Context, shopDomain string, sectionID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&chargeRow{}).
		Where("shop_domain = ? AND section_id = ? AND kind = ? AND status = ?",
			shopDomain, sectionID, string(domain.ChargeOneTime), string(domain.ChargeActive)).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to count charges: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListChargesByShop(ctx context.Context, shopDomain string) ([]*domain.Charge, error) {
	var rows []chargeRow
	if err := s.db.WithContext(ctx).Where("shop_domain = ?", shopDomain).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list charges: %w", err)
	}
	charges := make([]*domain.Charge, 0, len(rows))
	for i := range rows {
		charges = append(charges, rows[i].toDomain())
	}
	return charges, nil
}

func (s *Store) UpsertInstallation(ctx context.Context, installation *domain.Installation) error {
	row := installationRow{
		ShopDomain:  installation.ShopDomain,
		SectionID:   installation.SectionID,
		InstalledAt: installation.InstalledAt,
	}
	if row.InstalledAt.IsZero() {
		row.InstalledAt = s.now()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shop_domain"}, {Name: "section_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"installed_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert installation: %w", err)
	}
	return nil
}

func (s *Store) DeleteInstallation(ctx context.Context, shopDomain string, sectionID string) error {
	err := s.db.WithContext(ctx).
		Where("shop_domain = ? AND section_id = ?", shopDomain, sectionID).
		Delete(&installationRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete installation: %w", err)
	}
	return nil
}

func (s *Store) ListInstallations(ctx context.Context, shopDomain string) ([]*domain.Installation, error) {
	var rows []installationRow
	if err := s.db.WithContext(ctx).Where("shop_domain = ?", shopDomain).Order("installed_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}
	installations := make([]*domain.Installation, 0, len(rows))
	for _, row := range rows {
		installations = append(installations, &domain.Installation{
			ShopDomain:  row.ShopDomain,
			SectionID:   row.SectionID,
			InstalledAt: row.InstalledAt,
		})
	}
	return installations, nil
}

func (s *Store) GetSection(ctx context.Context, id string) (*domain.Section, error) {
	var row sectionRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "section "+id)
	}
	return row.toDomain(), nil
}

func (s *Store) GetSections(ctx context.Context, ids []string) ([]*domain.Section, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []sectionRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	sections := make([]*domain.Section, 0, len(rows))
	for i := range rows {
		sections = append(sections, rows[i].toDomain())
	}
	return sections, nil
}

func (s *Store) IncrementDownloads(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Model(&sectionRow{}).
		Where("id = ?", id).
		UpdateColumn("downloads_count", gorm.Expr("downloads_count + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to increment downloads: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	var row planRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "plan "+id)
	}
	return row.toDomain(), nil
}

func (s *Store) ListActivePlans(ctx context.Context) ([]*domain.Plan, error) {
	var rows []planRow
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("price ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	plans := make([]*domain.Plan, 0, len(rows))
	for i := range rows {
		plans = append(plans, rows[i].toDomain())
	}
	return plans, nil
}

// RecordGap inserts an open gap or bumps the occurrence count of the open one
func (s *Store) RecordGap(ctx context.Context, gap *domain.ReconciliationGap) error {
	row := gapRow{
		ID:              uuid.NewString(),
		ExternalID:      gap.ExternalID,
		Reason:          string(gap.Reason),
		Detail:          gap.Detail,
		ShopDomain:      gap.ShopDomain,
		Kind:            string(gap.Kind),
		Amount:          gap.Amount,
		SectionID:       gap.SectionID,
		PlanID:          gap.PlanID,
		ConfirmationURL: gap.ConfirmationURL,
		Occurrences:     1,
		Open:            true,
		DetectedAt:      gap.DetectedAt,
	}
	if row.DetectedAt.IsZero() {
		row.DetectedAt = s.now()
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:     []clause.Column{{Name: "external_id"}, {Name: "reason"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Eq{Column: clause.Column{Name: "open"}, Value: true}}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"detail":      gap.Detail,
			"occurrences": gorm.Expr("reconciliation_gaps.occurrences + 1"),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to record gap: %w", err)
	}
	return nil
}

func (s *Store) ListOpenGaps(ctx context.Context, limit int) ([]*domain.ReconciliationGap, error) {
	q := s.db.WithContext(ctx).Where("open = ?", true).Order("detected_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []gapRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list gaps: %w", err)
	}
	gaps := make([]*domain.ReconciliationGap, 0, len(rows))
	for i := range rows {
		gaps = append(gaps, rows[i].toDomain())
	}
	return gaps, nil
}

func (s *Store) ResolveGap(ctx context.Context, id string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&gapRow{}).
		Where("id = ? AND open = ?", id, true).
		Updates(map[string]interface{}{"open": false, "resolved_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to resolve gap: %w", err)
	}
	return nil
}
