package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// contentRegistered counts successful registrations.
	contentRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registry_content_registered_total",
		Help: "Content records registered.",
	})

	// contentTransitions counts lifecycle and moderation changes by target.
	contentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_content_transitions_total",
			Help: "Content state transitions (active, inactive, deleted, flagged, unflagged).",
		},
		[]string{"to"},
	)

	// purchaseOutcomes counts purchase attempts by result. Labels are the
	// fixed taxonomy, never ids.
	purchaseOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_purchases_total",
			Help: "Purchase attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// payoutCredits counts ledger credits by payee role.
	payoutCredits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_payout_credits_total",
			Help: "Payout ledger credits by role.",
		},
		[]string{"role"},
	)

	// accessDecisions counts access evaluations by decision.
	accessDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_access_decisions_total",
			Help: "Access evaluator decisions.",
		},
		[]string{"decision"},
	)
)

func init() {
	prometheus.MustRegister(contentRegistered, contentTransitions, purchaseOutcomes, payoutCredits, accessDecisions)
}

// purchaseOutcome maps a purchase result to its metric label.
func purchaseOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyOwned):
		return "already_owned"
	case errors.Is(err, ErrInsufficientPayment):
		return "insufficient_payment"
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, ErrSelfPurchase):
		return "self_purchase"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
