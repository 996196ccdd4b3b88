package ds

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusPendingTelegram, StatusAwaitingContract, true},
		{StatusAwaitingContract, StatusAwaitingPrepayment, true},
		{StatusAwaitingPrepayment, StatusReadyForDevelopment, true},
		{StatusReadyForDevelopment, StatusInProgress, true},
		{StatusInProgress, StatusReadyForReview, true},
		{StatusReadyForReview, StatusAwaitingFinalPayment, true},
		{StatusAwaitingFinalPayment, StatusSupport, true},
		{StatusAwaitingFinalPayment, StatusCompleted, true},
		{StatusSupport, StatusCompleted, true},

		// Пропуск этапов запрещен
		{StatusPendingTelegram, StatusInProgress, false},
		{StatusAwaitingContract, StatusReadyForDevelopment, false},
		// Движение назад запрещено
		{StatusInProgress, StatusAwaitingPrepayment, false},
		// Переход в себя не является переходом
		{StatusInProgress, StatusInProgress, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCanTransitionCancellation(t *testing.T) {
	active := []string{
		StatusPendingTelegram, StatusAwaitingContract, StatusAwaitingPrepayment,
		StatusReadyForDevelopment, StatusInProgress, StatusReadyForReview,
		StatusAwaitingFinalPayment, StatusSupport,
	}
	for _, from := range active {
		require.True(t, CanTransition(from, StatusCancelled), "%s -> CANCELLED", from)
	}

	// Терминальные статусы не отменяются и не покидаются
	require.False(t, CanTransition(StatusCompleted, StatusCancelled))
	require.False(t, CanTransition(StatusCancelled, StatusCancelled))
	require.False(t, CanTransition(StatusCompleted, StatusSupport))
	require.False(t, CanTransition(StatusCancelled, StatusPendingTelegram))
}
