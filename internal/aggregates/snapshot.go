// Package aggregates derives account-level revenue metrics from raw billing
// records and persists them as point-in-time snapshots.
package aggregates

import (
	"time"

	"github.com/google/uuid"

	"github.com/revenuleaks/billing-sync-server/internal/billing"
)

// Trailing windows for the charge and churn aggregations.
const (
	windowWeek  = 7 * 24 * time.Hour
	windowMonth = 30 * 24 * time.Hour
)

// MetricSnapshot is a point-in-time aggregation of one account's billing
// state. Monetary fields are integer cents.
type MetricSnapshot struct {
	// ID is assigned by the store when the snapshot is saved.
	ID                  uuid.UUID `json:"id"`
	AccountID           string    `json:"account_id"`
	CapturedAt          time.Time `json:"captured_at"`
	MRRCents            int64     `json:"mrr_cents"`
	ActiveSubscriptions int       `json:"active_subscriptions"`
	CanceledLast30d     int       `json:"canceled_last_30d"`
	TotalCustomers      int       `json:"total_customers"`
	DelinquentCustomers int       `json:"delinquent_customers"`
	OpenInvoices        int       `json:"open_invoices"`
	OverdueInvoiceCents int64     `json:"overdue_invoice_cents"`
	FailedCharges7d     int       `json:"failed_charges_7d"`
	FailedCharges30d    int       `json:"failed_charges_30d"`
	ChurnRate           float64   `json:"churn_rate"`
}

// Compute aggregates pulled billing records into a snapshot captured at now.
//
// MRR sums the monthly-normalized plan amounts of subscriptions that are
// active or past due. Churn rate is the fraction of subscriptions canceled in
// the trailing 30 days relative to the surviving base, zero when the account
// has no subscriptions at all. Failed charge counts cover trailing 7 and 30
// day windows.
//
// The returned snapshot has no ID; the store assigns one on save.
func Compute(
	accountID string,
	subscriptions []billing.Subscription,
	customers []billing.Customer,
	invoices []billing.Invoice,
	charges []billing.Charge,
	now time.Time,
) *MetricSnapshot {
	now = now.UTC()
	snapshot := &MetricSnapshot{
		AccountID:  accountID,
		CapturedAt: now,
	}

	monthCutoff := now.Add(-windowMonth)
	for _, sub := range subscriptions {
		switch sub.Status {
		case billing.SubscriptionStatusActive, billing.SubscriptionStatusPastDue:
			// Past due subscriptions still bill, so they count toward the
			// active base and MRR.
			snapshot.ActiveSubscriptions++
			snapshot.MRRCents += monthlyAmountCents(sub)
		case billing.SubscriptionStatusCanceled:
			if sub.CanceledAt != nil && sub.CanceledAt.After(monthCutoff) {
				snapshot.CanceledLast30d++
			}
		}
	}

	for _, customer := range customers {
		if customer.Deleted {
			continue
		}
		snapshot.TotalCustomers++
		if customer.Delinquent {
			snapshot.DelinquentCustomers++
		}
	}

	for _, invoice := range invoices {
		if invoice.Status != billing.InvoiceStatusOpen {
			continue
		}
		snapshot.OpenInvoices++
		snapshot.OverdueInvoiceCents += invoice.AmountDueCents
	}

	weekCutoff := now.Add(-windowWeek)
	for _, charge := range charges {
		if charge.Status != billing.ChargeStatusFailed || !charge.Created.After(monthCutoff) {
			continue
		}
		snapshot.FailedCharges30d++
		if charge.Created.After(weekCutoff) {
			snapshot.FailedCharges7d++
		}
	}

	if denominator := snapshot.ActiveSubscriptions + snapshot.CanceledLast30d; denominator > 0 {
		snapshot.ChurnRate = float64(snapshot.CanceledLast30d) / float64(denominator)
	}

	return snapshot
}

// monthlyAmountCents normalizes a subscription's recurring amount to a
// monthly figure. Yearly plans are divided by 12, weekly plans multiplied
// by 4; unknown intervals are treated as monthly.
func monthlyAmountCents(sub billing.Subscription) int64 {
	amount := sub.PlanAmountCents * sub.Quantity
	switch sub.Interval {
	case billing.IntervalYear:
		return amount / 12
	case billing.IntervalWeek:
		return amount * 4
	default:
		return amount
	}
}
