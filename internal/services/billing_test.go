package services

import (
	"nemt-trip-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveReconciliationsKeepsLatestPerStop(t *testing.T) {
	ledger := []domain.StopReconciliation{
		{ID: "r1", StopID: "pu", Outcome: domain.OutcomeCompletedAsPlanned},
		{ID: "r2", StopID: "do", Outcome: domain.OutcomeNoShow},
		{ID: "r3", StopID: "pu", Outcome: domain.OutcomeCompletedWithChanges, Supersedes: "r1"},
		{ID: "r4", StopID: "do", Outcome: domain.OutcomeVoided, Supersedes: "r2"},
	}

	got := EffectiveReconciliations(ledger)
	assert.Len(t, got, 2)
	assert.Equal(t, "r3", got[0].ID)
	assert.Equal(t, "r4", got[1].ID)

	assert.Empty(t, EffectiveReconciliations(nil))
}
