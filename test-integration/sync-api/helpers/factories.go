package helpers

import (
	"fmt"
	"time"

	"github.com/revenuleaks/billing-sync-server/internal/billing"
)

// CreateHealthyDataset returns billing data for a stable account. Nothing in
// it should trip signal detection. Aggregating it yields:
//
//	mrr_cents             9000 (5000 + 3000 monthly, 12000 yearly past due)
//	active_subscriptions  3
//	canceled_last_30d     0 (the one cancellation is 60 days old)
//	total_customers       2 (one record is a tombstone)
//	delinquent_customers  1
//	open_invoices         2
//	overdue_invoice_cents 4000
//	failed_charges_7d     0
//	failed_charges_30d    1
//	churn_rate            0
func CreateHealthyDataset(now time.Time) BillingDataset {
	canceledAt := now.AddDate(0, 0, -60)

	return BillingDataset{
		Subscriptions: []billing.Subscription{
			{
				ID:              "sub_001",
				CustomerID:      "cus_001",
				Status:          billing.SubscriptionStatusActive,
				PlanAmountCents: 5000,
				Quantity:        1,
				Interval:        billing.IntervalMonth,
				Created:         now.AddDate(0, -6, 0),
			},
			{
				ID:              "sub_002",
				CustomerID:      "cus_002",
				Status:          billing.SubscriptionStatusActive,
				PlanAmountCents: 3000,
				Quantity:        1,
				Interval:        billing.IntervalMonth,
				Created:         now.AddDate(0, -3, 0),
			},
			{
				ID:              "sub_003",
				CustomerID:      "cus_002",
				Status:          billing.SubscriptionStatusPastDue,
				PlanAmountCents: 12000,
				Quantity:        1,
				Interval:        billing.IntervalYear,
				Created:         now.AddDate(-1, 0, 0),
			},
			{
				ID:              "sub_004",
				CustomerID:      "cus_001",
				Status:          billing.SubscriptionStatusTrialing,
				PlanAmountCents: 9900,
				Quantity:        1,
				Interval:        billing.IntervalMonth,
				Created:         now.AddDate(0, 0, -10),
			},
			{
				ID:              "sub_005",
				CustomerID:      "cus_003",
				Status:          billing.SubscriptionStatusCanceled,
				PlanAmountCents: 2000,
				Quantity:        1,
				Interval:        billing.IntervalMonth,
				Created:         now.AddDate(-1, 0, 0),
				CanceledAt:      &canceledAt,
			},
		},
		Customers: []billing.Customer{
			{ID: "cus_001", Email: "ana@example.com", Name: "Ana", Created: now.AddDate(0, -6, 0)},
			{ID: "cus_002", Email: "bo@example.com", Name: "Bo", Created: now.AddDate(0, -3, 0), Delinquent: true},
			{ID: "cus_003", Email: "cy@example.com", Name: "Cy", Created: now.AddDate(-1, 0, 0), Deleted: true},
		},
		Invoices: []billing.Invoice{
			{
				ID:             "inv_001",
				CustomerID:     "cus_001",
				SubscriptionID: "sub_001",
				Status:         billing.InvoiceStatusPaid,
				Paid:           true,
				AttemptCount:   1,
				AmountDueCents: 5000,
				Created:        now.AddDate(0, 0, -30),
			},
			{
				ID:             "inv_002",
				CustomerID:     "cus_002",
				SubscriptionID: "sub_002",
				Status:         billing.InvoiceStatusOpen,
				AttemptCount:   2,
				AmountDueCents: 1500,
				Created:        now.AddDate(0, 0, -12),
			},
			{
				ID:             "inv_003",
				CustomerID:     "cus_002",
				SubscriptionID: "sub_003",
				Status:         billing.InvoiceStatusOpen,
				AttemptCount:   1,
				AmountDueCents: 2500,
				Created:        now.AddDate(0, 0, -4),
			},
		},
		Charges: []billing.Charge{
			{
				ID:          "ch_001",
				CustomerID:  "cus_001",
				Status:      billing.ChargeStatusSucceeded,
				AmountCents: 5000,
				Created:     now.AddDate(0, 0, -1),
			},
			{
				ID:          "ch_002",
				CustomerID:  "cus_002",
				Status:      billing.ChargeStatusFailed,
				AmountCents: 1500,
				FailureCode: "card_declined",
				Created:     now.AddDate(0, 0, -20),
			},
			{
				ID:          "ch_003",
				CustomerID:  "cus_001",
				Status:      billing.ChargeStatusSucceeded,
				AmountCents: 5000,
				Created:     now.AddDate(0, 0, -40),
			},
		},
	}
}

// CreatePaymentFailureDataset returns billing data whose failed charges
// cluster in the trailing week: four of the five failures in the last 30 days
// happened within the last three days. The payment failure heuristic flags
// this at high severity (4 failures in 7 days, 80% of the 30-day total).
func CreatePaymentFailureDataset(now time.Time) BillingDataset {
	charges := []billing.Charge{
		{
			ID:          "ch_ok_001",
			CustomerID:  "cus_101",
			Status:      billing.ChargeStatusSucceeded,
			AmountCents: 5000,
			Created:     now.AddDate(0, 0, -1),
		},
		{
			ID:          "ch_old_001",
			CustomerID:  "cus_102",
			Status:      billing.ChargeStatusFailed,
			AmountCents: 5000,
			FailureCode: "card_declined",
			Created:     now.AddDate(0, 0, -20),
		},
	}
	for i := 1; i <= 4; i++ {
		charges = append(charges, billing.Charge{
			ID:          fmt.Sprintf("ch_fail_%03d", i),
			CustomerID:  "cus_102",
			Status:      billing.ChargeStatusFailed,
			AmountCents: 5000,
			FailureCode: "insufficient_funds",
			Created:     now.Add(-time.Duration(i*12) * time.Hour),
		})
	}

	return BillingDataset{
		Subscriptions: []billing.Subscription{
			{
				ID:              "sub_101",
				CustomerID:      "cus_101",
				Status:          billing.SubscriptionStatusActive,
				PlanAmountCents: 5000,
				Quantity:        1,
				Interval:        billing.IntervalMonth,
				Created:         now.AddDate(0, -6, 0),
			},
			{
				ID:              "sub_102",
				CustomerID:      "cus_102",
				Status:          billing.SubscriptionStatusPastDue,
				PlanAmountCents: 5000,
				Quantity:        1,
				Interval:        billing.IntervalMonth,
				Created:         now.AddDate(0, -6, 0),
			},
		},
		Customers: []billing.Customer{
			{ID: "cus_101", Email: "dot@example.com", Name: "Dot", Created: now.AddDate(0, -6, 0)},
			{ID: "cus_102", Email: "eli@example.com", Name: "Eli", Created: now.AddDate(0, -6, 0), Delinquent: true},
		},
		Invoices: []billing.Invoice{
			{
				ID:             "inv_101",
				CustomerID:     "cus_102",
				SubscriptionID: "sub_102",
				Status:         billing.InvoiceStatusOpen,
				AttemptCount:   4,
				AmountDueCents: 8000,
				Created:        now.AddDate(0, 0, -8),
			},
		},
		Charges: charges,
	}
}

// CreateStableFleetDataset returns ten active monthly subscriptions and no
// cancellations. Syncing it records a zero churn rate baseline.
func CreateStableFleetDataset(now time.Time) BillingDataset {
	return BillingDataset{
		Subscriptions: fleetSubscriptions(now, 10, 0),
		Customers: []billing.Customer{
			{ID: "cus_201", Email: "fleet@example.com", Name: "Fleet", Created: now.AddDate(-1, 0, 0)},
		},
	}
}

// CreateChurnedFleetDataset returns the same fleet after two of the ten
// subscriptions canceled within the last week. Aggregating it yields a churn
// rate of 0.2, which against the stable baseline is a rise of 20 points and
// flags a high severity churn spike.
func CreateChurnedFleetDataset(now time.Time) BillingDataset {
	return BillingDataset{
		Subscriptions: fleetSubscriptions(now, 8, 2),
		Customers: []billing.Customer{
			{ID: "cus_201", Email: "fleet@example.com", Name: "Fleet", Created: now.AddDate(-1, 0, 0)},
		},
	}
}

// fleetSubscriptions builds active monthly subscriptions followed by
// canceled ones, all for the fleet customer. Cancellations land five days in
// the past so they fall inside the 30 day churn window.
func fleetSubscriptions(now time.Time, active, canceled int) []billing.Subscription {
	canceledAt := now.AddDate(0, 0, -5)

	subs := make([]billing.Subscription, 0, active+canceled)
	for i := 1; i <= active+canceled; i++ {
		sub := billing.Subscription{
			ID:              fmt.Sprintf("sub_%03d", 200+i),
			CustomerID:      "cus_201",
			Status:          billing.SubscriptionStatusActive,
			PlanAmountCents: 1000,
			Quantity:        1,
			Interval:        billing.IntervalMonth,
			Created:         now.AddDate(-1, 0, 0),
		}
		if i > active {
			sub.Status = billing.SubscriptionStatusCanceled
			sub.CanceledAt = &canceledAt
		}
		subs = append(subs, sub)
	}
	return subs
}
