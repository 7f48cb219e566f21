package billing

import "time"

// Subscription statuses as reported by the billing platform.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusUnpaid   = "unpaid"
)

// Billing intervals for subscription plans.
const (
	IntervalMonth = "month"
	IntervalYear  = "year"
	IntervalWeek  = "week"
)

// Charge statuses.
const (
	ChargeStatusSucceeded = "succeeded"
	ChargeStatusFailed    = "failed"
	ChargeStatusPending   = "pending"
)

// Invoice statuses.
const (
	InvoiceStatusDraft         = "draft"
	InvoiceStatusOpen          = "open"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusUncollectible = "uncollectible"
	InvoiceStatusVoid          = "void"
)

// Subscription is a recurring billing agreement for one customer.
type Subscription struct {
	ID              string     `json:"id"`
	CustomerID      string     `json:"customer_id"`
	Status          string     `json:"status"`
	PlanAmountCents int64      `json:"plan_amount_cents"`
	Quantity        int64      `json:"quantity"`
	Interval        string     `json:"interval"`
	Created         time.Time  `json:"created"`
	CanceledAt      *time.Time `json:"canceled_at,omitempty"`
}

// ItemID implements Identifiable.
func (s Subscription) ItemID() string { return s.ID }

// Customer is a billable party. Deleted marks a tombstone: the platform
// retains the identifier but no live record.
type Customer struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Created    time.Time `json:"created"`
	Delinquent bool      `json:"delinquent"`
	Deleted    bool      `json:"deleted,omitempty"`
}

// ItemID implements Identifiable.
func (c Customer) ItemID() string { return c.ID }

// Invoice is a single billing document, possibly spanning several payment
// attempts.
type Invoice struct {
	ID             string    `json:"id"`
	CustomerID     string    `json:"customer_id"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	Status         string    `json:"status"`
	Paid           bool      `json:"paid"`
	AttemptCount   int       `json:"attempt_count"`
	AmountDueCents int64     `json:"amount_due_cents"`
	Created        time.Time `json:"created"`
}

// ItemID implements Identifiable.
func (i Invoice) ItemID() string { return i.ID }

// Charge is one payment attempt.
type Charge struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	Status      string    `json:"status"`
	AmountCents int64     `json:"amount_cents"`
	FailureCode string    `json:"failure_code,omitempty"`
	Created     time.Time `json:"created"`
}

// ItemID implements Identifiable.
func (c Charge) ItemID() string { return c.ID }
