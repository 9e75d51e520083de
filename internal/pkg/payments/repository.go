package payments

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarcusWehner/CrewDesk/app/models"
)

// Repository provides the DB operations the reconciliation engine needs. All
// mutator writes for one event run through Transaction so partial application
// is never visible to concurrent readers.
type Repository interface {
	Transaction(fn func(Repository) error) error

	ClaimWebhookEvent(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint) error
	MarkWebhookFailed(id uint, errMsg string) error

	GetInvoiceByID(id uint) (*models.Invoice, error)
	UpdateInvoice(inv *models.Invoice) error

	GetDepositByID(id uint) (*models.Deposit, error)
	UpdateDeposit(dep *models.Deposit) error
	SetProjectDepositPaid(projectID uint) error

	GetUserByStripeCustomerID(customerID string) (*models.User, error)
	GetUserByStripeAccountID(accountID string) (*models.User, error)
	UpdateUser(user *models.User) error

	UpsertSubscription(sub *models.Subscription) error
	GetSubscriptionByStripeID(subscriptionID string) (*models.Subscription, error)
	UpdateSubscription(sub *models.Subscription) error

	GetPayoutByID(id uint) (*models.ContractorPayout, error)
	GetPayoutByTransferID(transferID string) (*models.ContractorPayout, error)
	CreatePayout(payout *models.ContractorPayout) error
	UpdatePayout(payout *models.ContractorPayout) error
	GetAssignmentsByIDs(ids []uint) ([]models.ProjectAssignment, error)
	MarkAssignmentsProcessing(payoutID uint, ids []uint) error
	ResetAssignmentsForPayout(payoutID uint) (int64, error)

	CreatePayment(payment *models.Payment) error

	GetOrCreateCreditBalance(userID uint) (*models.CreditBalance, error)
	UpdateCreditBalance(balance *models.CreditBalance) error
	CreateCreditTransaction(entry *models.CreditTransaction) error

	CreateActivityLog(entry *models.ActivityLog) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a reconciliation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

// ClaimWebhookEvent inserts the event row if no row with the same provider
// event ID exists. The unique index converts concurrent deliveries of the
// same event into one winner: claimed reports whether this call inserted the
// row, and the stored row is returned either way.
func (r *gormRepository) ClaimWebhookEvent(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	claimed := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("stripe_event_id = ?", event.StripeEventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return claimed, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed_at":  &now,
		"failed_at":     nil,
		"error_message": "",
	}).Error
}

func (r *gormRepository) MarkWebhookFailed(id uint, errMsg string) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"failed_at":     &now,
		"error_message": errMsg,
	}).Error
}

func (r *gormRepository) GetInvoiceByID(id uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.First(&inv, id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *gormRepository) UpdateInvoice(inv *models.Invoice) error {
	return r.db.Save(inv).Error
}

func (r *gormRepository) GetDepositByID(id uint) (*models.Deposit, error) {
	var dep models.Deposit
	if err := r.db.First(&dep, id).Error; err != nil {
		return nil, err
	}
	return &dep, nil
}

func (r *gormRepository) UpdateDeposit(dep *models.Deposit) error {
	return r.db.Save(dep).Error
}

func (r *gormRepository) SetProjectDepositPaid(projectID uint) error {
	return r.db.Model(&models.Project{}).Where("id = ?", projectID).
		Update("deposit_paid", true).Error
}

func (r *gormRepository) GetUserByStripeCustomerID(customerID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("stripe_customer_id = ?", customerID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetUserByStripeAccountID(accountID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("stripe_account_id = ?", accountID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) UpdateUser(user *models.User) error {
	return r.db.Save(user).Error
}

// UpsertSubscription creates or overwrites the single subscription row per
// user. The provider's state wins wholesale on conflict.
func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan",
			"amount",
			"billing",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"canceled_at",
			"stripe_subscription_id",
			"stripe_price_id",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("user_id = ?", sub.UserID).First(sub).Error
}

func (r *gormRepository) GetSubscriptionByStripeID(subscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("stripe_subscription_id = ?", subscriptionID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpdateSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) GetPayoutByID(id uint) (*models.ContractorPayout, error) {
	var payout models.ContractorPayout
	if err := r.db.First(&payout, id).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *gormRepository) GetPayoutByTransferID(transferID string) (*models.ContractorPayout, error) {
	var payout models.ContractorPayout
	if err := r.db.Where("stripe_transfer_id = ?", transferID).First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *gormRepository) CreatePayout(payout *models.ContractorPayout) error {
	return r.db.Create(payout).Error
}

func (r *gormRepository) UpdatePayout(payout *models.ContractorPayout) error {
	return r.db.Save(payout).Error
}

func (r *gormRepository) GetAssignmentsByIDs(ids []uint) ([]models.ProjectAssignment, error) {
	var assignments []models.ProjectAssignment
	err := r.db.Where("id IN ?", ids).Find(&assignments).Error
	return assignments, err
}

func (r *gormRepository) MarkAssignmentsProcessing(payoutID uint, ids []uint) error {
	return r.db.Model(&models.ProjectAssignment{}).Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"payout_id":      payoutID,
			"payment_status": models.AssignmentPaymentProcessing,
		}).Error
}

// ResetAssignmentsForPayout flips every assignment linked to the payout back
// to PENDING so a failed transfer batch can be retried. Exactly the linked
// rows are touched.
func (r *gormRepository) ResetAssignmentsForPayout(payoutID uint) (int64, error) {
	tx := r.db.Model(&models.ProjectAssignment{}).Where("payout_id = ?", payoutID).
		Update("payment_status", models.AssignmentPaymentPending)
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) CreatePayment(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

func (r *gormRepository) GetOrCreateCreditBalance(userID uint) (*models.CreditBalance, error) {
	var balance models.CreditBalance
	err := r.db.Where(models.CreditBalance{UserID: userID}).FirstOrCreate(&balance).Error
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *gormRepository) UpdateCreditBalance(balance *models.CreditBalance) error {
	return r.db.Save(balance).Error
}

func (r *gormRepository) CreateCreditTransaction(entry *models.CreditTransaction) error {
	return r.db.Create(entry).Error
}

func (r *gormRepository) CreateActivityLog(entry *models.ActivityLog) error {
	return r.db.Create(entry).Error
}
