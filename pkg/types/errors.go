package types

import (
	"errors"
	"fmt"
)

// Kind is the coarse category of a failure
type Kind int

const (
	KindUnknown Kind = iota
	PerceptionNotFound
	ExtractionUnreadable
	MissionConflict
	ResourceExhausted
	ConfigurationUnsupported
)

func (k Kind) String() string {
	switch k {
	case PerceptionNotFound:
		return "perception_not_found"
	case ExtractionUnreadable:
		return "extraction_unreadable"
	case MissionConflict:
		return "mission_conflict"
	case ResourceExhausted:
		return "resource_exhausted"
	case ConfigurationUnsupported:
		return "configuration_unsupported"
	default:
		return "unknown"
	}
}

// Reason identifies a specific failure. Retry and backoff decisions match on
// Reason values instead of message text.
type Reason string

const (
	ReasonNone Reason = ""

	ReasonTargetNotFound       Reason = "target_not_found"
	ReasonArrowNotFound        Reason = "arrow_not_found"
	ReasonAttackButtonNotFound Reason = "attack_button_not_found"
	ReasonGatherButtonNotFound Reason = "gather_button_not_found"
	ReasonGoButtonNotFound     Reason = "go_button_not_found"
	ReasonRadarNotFound        Reason = "radar_not_found"
	ReasonFleetsAreaNotFound   Reason = "fleets_area_not_found"
	ReasonExitDialogNotFound   Reason = "exit_dialog_not_found"
	ReasonEliteNotFound        Reason = "elite_not_found"
	ReasonBattleButtonNotFound Reason = "battle_button_not_found"

	ReasonTextUnreadable        Reason = "text_unreadable"
	ReasonFuelUnreadable        Reason = "fuel_unreadable"
	ReasonLevelUnreadable       Reason = "level_unreadable"
	ReasonSetOutTimeUnreadable  Reason = "set_out_time_unreadable"
	ReasonFleetQueueUnreadable  Reason = "fleet_queue_unreadable"
	ReasonBattleCountUnreadable Reason = "battle_count_unreadable"

	ReasonFleetConflict Reason = "fleet_conflict"

	ReasonOutOfLevels     Reason = "out_of_levels"
	ReasonOutOfTroops     Reason = "out_of_troops"
	ReasonBudgetExhausted Reason = "budget_exhausted"

	ReasonUnsupportedView  Reason = "unsupported_view"
	ReasonUnknownTarget    Reason = "unknown_target"
	ReasonInvalidParameter Reason = "invalid_parameter"
)

// Kind maps a reason to its category.
func (r Reason) Kind() Kind {
	switch r {
	case ReasonTargetNotFound, ReasonArrowNotFound, ReasonAttackButtonNotFound,
		ReasonGatherButtonNotFound, ReasonGoButtonNotFound, ReasonRadarNotFound,
		ReasonFleetsAreaNotFound, ReasonExitDialogNotFound, ReasonEliteNotFound, ReasonBattleButtonNotFound:
		return PerceptionNotFound
	case ReasonTextUnreadable, ReasonFuelUnreadable, ReasonLevelUnreadable,
		ReasonSetOutTimeUnreadable, ReasonFleetQueueUnreadable, ReasonBattleCountUnreadable:
		return ExtractionUnreadable
	case ReasonFleetConflict:
		return MissionConflict
	case ReasonOutOfLevels, ReasonOutOfTroops, ReasonBudgetExhausted:
		return ResourceExhausted
	case ReasonUnsupportedView, ReasonUnknownTarget, ReasonInvalidParameter:
		return ConfigurationUnsupported
	default:
		return KindUnknown
	}
}

// Error is the error type produced by perception, extraction and mission code
type Error struct {
	Reason Reason
	Op     string
	Detail string
	Err    error
}

// NewError builds an Error for op with a formatted detail message.
func NewError(reason Reason, op, format string, args ...any) *Error {
	return &Error{Reason: reason, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error that wraps an underlying cause.
func WrapError(reason Reason, op string, err error) *Error {
	return &Error{Reason: reason, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Reason)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Kind returns the category of the error's reason.
func (e *Error) Kind() Kind { return e.Reason.Kind() }

// Is matches another *Error by Reason so sentinel comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Reason == e.Reason
}

// Sentinel returns a comparable error for reason, usable with errors.Is.
func Sentinel(reason Reason) error {
	return &Error{Reason: reason}
}

// ReasonOf extracts the reason from the first *Error in err's chain.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonNone
}

// KindOf extracts the category from err, or KindUnknown.
func KindOf(err error) Kind {
	return ReasonOf(err).Kind()
}

// IsKind reports whether err belongs to category k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
