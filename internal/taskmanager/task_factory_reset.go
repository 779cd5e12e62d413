package taskmanager

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"radioqueue/internal/models"
	"radioqueue/internal/radio"
)

// ErrRadioEnabled is the failure of a factory reset issued while the radio is on.
var ErrRadioEnabled = errors.New("radio must be disabled before a factory reset")

// ResetPolicy decides whether a failing factory reset call fails the task.
type ResetPolicy int

// const ...
const (
	// ResetPolicyBestEffort always succeeds once the call was issued and logs its failure.
	ResetPolicyBestEffort ResetPolicy = iota
	// ResetPolicyStrict fails the task when the binding reports an error.
	ResetPolicyStrict
)

func (p ResetPolicy) String() string {
	if p == ResetPolicyStrict {
		return "strict"
	}
	return "best_effort"
}

// ParseResetPolicy ...
func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "best_effort":
		return ResetPolicyBestEffort, nil
	case "strict":
		return ResetPolicyStrict, nil
	default:
		return 0, fmt.Errorf("unknown reset policy %q", s)
	}
}

// FactoryResetTask wipes the radio stack. The call is synchronous and the
// task ends inside Execute without waiting for hardware confirmation.
type FactoryResetTask struct {
	Base
	resetter radio.Resetter
	power    radio.PowerController
	policy   ResetPolicy
}

// Type ...
func (t *FactoryResetTask) Type() models.TaskType { return models.TaskTypeNukeRadioStack }

// Priority ...
func (t *FactoryResetTask) Priority() models.Priority { return models.PriorityCritical }

// Execute ...
func (t *FactoryResetTask) Execute() {
	ctx := t.Context()

	if t.power != nil {
		powered, err := t.power.Powered(ctx)
		switch {
		case err != nil && t.policy == ResetPolicyStrict:
			t.FailImmediately(fmt.Errorf("failed to read radio power state: %w", err))
			return
		case err != nil:
			log.WithError(err).Warn("Could not confirm radio is disabled, resetting anyway")
		case powered:
			t.FailImmediately(ErrRadioEnabled)
			return
		}
	}

	if err := t.resetter.FactoryReset(ctx); err != nil {
		if t.policy == ResetPolicyStrict {
			t.Fail(fmt.Errorf("factory reset failed: %w", err))
			return
		}
		log.WithError(err).Warn("Factory reset call reported failure")
	}
	t.Succeed()
}

// Update ...
func (t *FactoryResetTask) Update(_ time.Duration) {}

// NewFactoryResetTask creates a reset task. power may be nil to skip the
// disabled check.
func NewFactoryResetTask(resetter radio.Resetter, power radio.PowerController, policy ResetPolicy, listener StateListener) *FactoryResetTask {
	t := &FactoryResetTask{
		resetter: resetter,
		power:    power,
		policy:   policy,
	}
	t.Init(listener)
	return t
}
