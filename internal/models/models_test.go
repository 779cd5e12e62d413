package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryDecision_IsRetry(t *testing.T) {
	tests := map[RetryDecision]bool{
		RetryDecisionNull:                      false,
		RetryDecisionRetry:                     true,
		RetryDecisionRetryWithAutoconnectTrue:  true,
		RetryDecisionRetryWithAutoconnectFalse: true,
		RetryDecisionDoNotRetry:                false,
	}
	for decision, want := range tests {
		t.Run(decision.String(), func(t *testing.T) {
			assert.Equal(t, want, decision.IsRetry())
		})
	}
}

func TestRetryDecision_Autoconnect(t *testing.T) {
	value, ok := RetryDecisionRetryWithAutoconnectTrue.Autoconnect()
	assert.True(t, ok)
	assert.True(t, value)

	value, ok = RetryDecisionRetryWithAutoconnectFalse.Autoconnect()
	assert.True(t, ok)
	assert.False(t, value)

	_, ok = RetryDecisionRetry.Autoconnect()
	assert.False(t, ok)
}

func TestPriority_OrderAndAliases(t *testing.T) {
	assert.Less(t, PriorityTrivial, PriorityLow)
	assert.Less(t, PriorityLow, PriorityMedium)
	assert.Less(t, PriorityMedium, PriorityHigh)
	assert.Less(t, PriorityHigh, PriorityCritical)

	assert.Equal(t, PriorityLow, PriorityForNormalReadsWrites)
	assert.Equal(t, PriorityMedium, PriorityForExplicitBondingAndConnecting)
	assert.Equal(t, PriorityMedium, PriorityForPriorityReadsWrites)
	assert.Equal(t, PriorityHigh, PriorityForImplicitBondingAndConnecting)
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority(" Critical ")
	require.NoError(t, err)
	assert.Equal(t, PriorityCritical, p)

	_, err = ParsePriority("urgent")
	assert.ErrorIs(t, err, ErrInvalidPriority)

	assert.False(t, Priority(7).Valid())
	assert.Equal(t, "priority(7)", Priority(7).String())
}

func TestTaskState_IsEnding(t *testing.T) {
	for _, s := range []TaskState{TaskStateCreated, TaskStateQueued, TaskStateExecuting} {
		assert.False(t, s.IsEnding(), s.String())
		assert.False(t, s.IsFailure(), s.String())
	}
	assert.True(t, TaskStateSucceeded.IsEnding())
	assert.False(t, TaskStateSucceeded.IsFailure())
	for _, s := range []TaskState{TaskStateTimedOut, TaskStateCancelled, TaskStateFailed, TaskStateClearedFromQueue, TaskStateFailedImmediately} {
		assert.True(t, s.IsEnding(), s.String())
		assert.True(t, s.IsFailure(), s.String())
	}
}

func TestParseTaskState(t *testing.T) {
	for s := TaskStateCreated; s <= TaskStateFailedImmediately; s++ {
		got, err := ParseTaskState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseTaskState("exploded")
	assert.Error(t, err)
}
