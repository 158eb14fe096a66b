package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// FeeTemplateModel is the persistence model for the FeeTemplate aggregate root.
type FeeTemplateModel struct {
	SchoolAggregateModel
	Name        string                `gorm:"type:varchar(100);not null"`
	Items       fees.FeeTemplateItems `gorm:"type:jsonb;not null;default:'[]'"`
	TotalAmount decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Active      bool                  `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (FeeTemplateModel) TableName() string {
	return "fee_templates"
}

// ToDomain converts the persistence model to a domain FeeTemplate entity.
func (m *FeeTemplateModel) ToDomain() *fees.FeeTemplate {
	t := &fees.FeeTemplate{
		Name:        m.Name,
		Items:       m.Items,
		TotalAmount: m.TotalAmount,
		Active:      m.Active,
	}
	m.PopulateSchoolAggregateRoot(&t.SchoolAggregateRoot)
	return t
}

// FromDomain populates the persistence model from a domain FeeTemplate entity.
func (m *FeeTemplateModel) FromDomain(t *fees.FeeTemplate) {
	m.FromDomainSchoolAggregateRoot(t.SchoolAggregateRoot)
	m.Name = t.Name
	m.Items = t.Items
	m.TotalAmount = t.TotalAmount
	m.Active = t.Active
}

// FeeTemplateModelFromDomain creates a new persistence model from a domain FeeTemplate.
func FeeTemplateModelFromDomain(t *fees.FeeTemplate) *FeeTemplateModel {
	m := &FeeTemplateModel{}
	m.FromDomain(t)
	return m
}

// FeeRecordModel is the persistence model for the FeeRecord aggregate root.
type FeeRecordModel struct {
	SchoolAggregateModel
	RecordNumber   string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_fee_record_school_number,priority:2"`
	StudentID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	ClassID        *uuid.UUID            `gorm:"type:uuid;index"`
	TemplateID     uuid.UUID             `gorm:"type:uuid;not null;index"`
	TemplateName   string                `gorm:"type:varchar(100);not null"`
	ItemsSnapshot  fees.FeeTemplateItems `gorm:"type:jsonb;not null;default:'[]'"`
	Amount         decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Discount       decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	LateFine       decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	AmountPaid     decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	BalanceDue     decimal.Decimal       `gorm:"type:decimal(18,4);not null;index"`
	Status         fees.FeeRecordStatus  `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	DueDate        time.Time             `gorm:"not null;index"`
	LastFinePeriod string                `gorm:"type:varchar(10)"`
	PaidAt         *time.Time
}

// TableName returns the table name for GORM
func (FeeRecordModel) TableName() string {
	return "fee_records"
}

// ToDomain converts the persistence model to a domain FeeRecord entity.
func (m *FeeRecordModel) ToDomain() *fees.FeeRecord {
	r := &fees.FeeRecord{
		RecordNumber:   m.RecordNumber,
		StudentID:      m.StudentID,
		ClassID:        m.ClassID,
		TemplateID:     m.TemplateID,
		TemplateName:   m.TemplateName,
		ItemsSnapshot:  m.ItemsSnapshot,
		Amount:         m.Amount,
		Discount:       m.Discount,
		LateFine:       m.LateFine,
		AmountPaid:     m.AmountPaid,
		BalanceDue:     m.BalanceDue,
		Status:         m.Status,
		DueDate:        m.DueDate,
		LastFinePeriod: m.LastFinePeriod,
		PaidAt:         m.PaidAt,
	}
	m.PopulateSchoolAggregateRoot(&r.SchoolAggregateRoot)
	return r
}

// FromDomain populates the persistence model from a domain FeeRecord entity.
func (m *FeeRecordModel) FromDomain(r *fees.FeeRecord) {
	m.FromDomainSchoolAggregateRoot(r.SchoolAggregateRoot)
	m.RecordNumber = r.RecordNumber
	m.StudentID = r.StudentID
	m.ClassID = r.ClassID
	m.TemplateID = r.TemplateID
	m.TemplateName = r.TemplateName
	m.ItemsSnapshot = r.ItemsSnapshot
	m.Amount = r.Amount
	m.Discount = r.Discount
	m.LateFine = r.LateFine
	m.AmountPaid = r.AmountPaid
	m.BalanceDue = r.BalanceDue
	m.Status = r.Status
	m.DueDate = r.DueDate
	m.LastFinePeriod = r.LastFinePeriod
	m.PaidAt = r.PaidAt
}

// FeeRecordModelFromDomain creates a new persistence model from a domain FeeRecord.
func FeeRecordModelFromDomain(r *fees.FeeRecord) *FeeRecordModel {
	m := &FeeRecordModel{}
	m.FromDomain(r)
	return m
}

// PaymentTransactionModel is the persistence model for the PaymentTransaction aggregate root.
type PaymentTransactionModel struct {
	SchoolAggregateModel
	ReceiptNumber    string                 `gorm:"type:varchar(50);not null;uniqueIndex:idx_transaction_school_receipt,priority:2"`
	FeeRecordID      uuid.UUID              `gorm:"type:uuid;not null;index"`
	StudentID        uuid.UUID              `gorm:"type:uuid;not null;index"`
	Amount           decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	Details          fees.PaymentDetails    `gorm:"type:jsonb;not null;default:'{}'"`
	Status           fees.TransactionStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	GatewayOrderID   string                 `gorm:"type:varchar(100);index"`
	GatewayPaymentID string                 `gorm:"type:varchar(100);index"`
	CollectedBy      *uuid.UUID             `gorm:"type:uuid;index"`
	PaidAt           *time.Time
	FailureReason    string               `gorm:"type:varchar(500)"`
	Receipt          fees.ReceiptSnapshot `gorm:"type:jsonb;not null;default:'{}'"`
}

// TableName returns the table name for GORM
func (PaymentTransactionModel) TableName() string {
	return "payment_transactions"
}

// ToDomain converts the persistence model to a domain PaymentTransaction entity.
func (m *PaymentTransactionModel) ToDomain() *fees.PaymentTransaction {
	t := &fees.PaymentTransaction{
		ReceiptNumber:    m.ReceiptNumber,
		FeeRecordID:      m.FeeRecordID,
		StudentID:        m.StudentID,
		Amount:           m.Amount,
		Details:          m.Details,
		Status:           m.Status,
		GatewayOrderID:   m.GatewayOrderID,
		GatewayPaymentID: m.GatewayPaymentID,
		CollectedBy:      m.CollectedBy,
		PaidAt:           m.PaidAt,
		FailureReason:    m.FailureReason,
		Receipt:          m.Receipt,
	}
	m.PopulateSchoolAggregateRoot(&t.SchoolAggregateRoot)
	return t
}

// FromDomain populates the persistence model from a domain PaymentTransaction entity.
func (m *PaymentTransactionModel) FromDomain(t *fees.PaymentTransaction) {
	m.FromDomainSchoolAggregateRoot(t.SchoolAggregateRoot)
	m.ReceiptNumber = t.ReceiptNumber
	m.FeeRecordID = t.FeeRecordID
	m.StudentID = t.StudentID
	m.Amount = t.Amount
	m.Details = t.Details
	m.Status = t.Status
	m.GatewayOrderID = t.GatewayOrderID
	m.GatewayPaymentID = t.GatewayPaymentID
	m.CollectedBy = t.CollectedBy
	m.PaidAt = t.PaidAt
	m.FailureReason = t.FailureReason
	m.Receipt = t.Receipt
}

// PaymentTransactionModelFromDomain creates a new persistence model from a domain PaymentTransaction.
func PaymentTransactionModelFromDomain(t *fees.PaymentTransaction) *PaymentTransactionModel {
	m := &PaymentTransactionModel{}
	m.FromDomain(t)
	return m
}

// ReconciliationLogModel is the persistence model for reconciliation audit entries.
type ReconciliationLogModel struct {
	BaseModel
	SchoolID          uuid.UUID                 `gorm:"type:uuid;not null;index"`
	TransactionID     *uuid.UUID                `gorm:"type:uuid;index"`
	GatewayOrderID    string                    `gorm:"type:varchar(100);index"`
	GatewayPaymentID  string                    `gorm:"type:varchar(100);index"`
	GatewayStatus     string                    `gorm:"type:varchar(20);not null"`
	LocalStatusBefore string                    `gorm:"type:varchar(20)"`
	Action            fees.ReconciliationAction `gorm:"type:varchar(20);not null;index"`
	Detail            string                    `gorm:"type:varchar(500)"`
	RunAt             time.Time                 `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ReconciliationLogModel) TableName() string {
	return "reconciliation_logs"
}

// ToDomain converts the persistence model to a domain ReconciliationLog entity.
func (m *ReconciliationLogModel) ToDomain() *fees.ReconciliationLog {
	return &fees.ReconciliationLog{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		SchoolID:          m.SchoolID,
		TransactionID:     m.TransactionID,
		GatewayOrderID:    m.GatewayOrderID,
		GatewayPaymentID:  m.GatewayPaymentID,
		GatewayStatus:     m.GatewayStatus,
		LocalStatusBefore: m.LocalStatusBefore,
		Action:            m.Action,
		Detail:            m.Detail,
		RunAt:             m.RunAt,
	}
}

// FromDomain populates the persistence model from a domain ReconciliationLog entity.
func (m *ReconciliationLogModel) FromDomain(l *fees.ReconciliationLog) {
	m.FromDomainBaseEntity(l.BaseEntity)
	m.SchoolID = l.SchoolID
	m.TransactionID = l.TransactionID
	m.GatewayOrderID = l.GatewayOrderID
	m.GatewayPaymentID = l.GatewayPaymentID
	m.GatewayStatus = l.GatewayStatus
	m.LocalStatusBefore = l.LocalStatusBefore
	m.Action = l.Action
	m.Detail = l.Detail
	m.RunAt = l.RunAt
}

// ReconciliationLogModelFromDomain creates a new persistence model from a domain ReconciliationLog.
func ReconciliationLogModelFromDomain(l *fees.ReconciliationLog) *ReconciliationLogModel {
	m := &ReconciliationLogModel{}
	m.FromDomain(l)
	return m
}

// StudentModel is a read-only projection of the student directory owned by
// the rest of the platform. The ledger only reads it to validate references.
type StudentModel struct {
	ID       uuid.UUID  `gorm:"type:uuid;primary_key"`
	SchoolID uuid.UUID  `gorm:"type:uuid;not null;index"`
	ClassID  *uuid.UUID `gorm:"type:uuid;index"`
	Name     string     `gorm:"type:varchar(200);not null"`
}

// TableName returns the table name for GORM
func (StudentModel) TableName() string {
	return "students"
}
