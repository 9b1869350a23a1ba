// Package moderation applies chat moderation actions behind the
// authorization gate. Each action is a small per-target state machine:
// mute and ban toggle, kick is transient, and warnings accumulate until a
// configurable threshold triggers an automatic ban. Repeating an action that
// already holds is a no-op, not an error.
package moderation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dresos/duckbot/internal/auth"
	"github.com/dresos/duckbot/internal/logging"
	"github.com/dresos/duckbot/internal/metrics"
)

// ErrDenied marks failures caused by a deny decision from the gate.
var ErrDenied = errors.New("authorization denied")

// DeniedError carries the gate's deny reason. Matches ErrDenied under errors.Is.
type DeniedError struct {
	Reason auth.Reason
}

func (e *DeniedError) Error() string { return "authorization denied: " + string(e.Reason) }

// Is makes errors.Is(err, ErrDenied) work for DeniedError values.
func (e *DeniedError) Is(target error) bool { return target == ErrDenied }

// Action identifies a moderation action for reporting and metrics.
type Action string

// Supported actions.
const (
	ActionKick    Action = "kick"
	ActionBan     Action = "ban"
	ActionUnban   Action = "unban"
	ActionMute    Action = "mute"
	ActionUnmute  Action = "unmute"
	ActionWarn    Action = "warn"
	ActionAutoBan Action = "auto_ban"
)

// DefaultWarnThreshold is the warning count at which a target is auto-banned.
const DefaultWarnThreshold = 3

// Outcome reports the result of an applied action.
type Outcome struct {
	Action Action
	// Changed is false when the target was already in the requested state.
	Changed bool
	// WarnCount is the target's warning total after a Warn action.
	WarnCount int
	// AutoBanned is true when a Warn crossed the threshold and banned the target.
	AutoBanned bool
}

// userState tracks one target's moderation state. Deadlines of zero mean
// indefinite.
type userState struct {
	muted       bool
	mutedUntil  time.Time
	banned      bool
	bannedUntil time.Time
	warns       int
}

func (s *userState) resolve(now time.Time) {
	if s.muted && !s.mutedUntil.IsZero() && now.After(s.mutedUntil) {
		s.muted = false
		s.mutedUntil = time.Time{}
	}
	if s.banned && !s.bannedUntil.IsZero() && now.After(s.bannedUntil) {
		s.banned = false
		s.bannedUntil = time.Time{}
	}
}

// Executor applies moderation actions. All state transitions are serialized
// under one mutex so concurrent commands cannot tear a target's state.
type Executor struct {
	mu            sync.Mutex
	gate          *auth.Gate
	states        map[int64]*userState
	warnThreshold int
}

// NewExecutor creates an Executor over the given gate. warnThreshold <= 0
// selects DefaultWarnThreshold.
func NewExecutor(gate *auth.Gate, warnThreshold int) *Executor {
	if warnThreshold <= 0 {
		warnThreshold = DefaultWarnThreshold
	}
	return &Executor{
		gate:          gate,
		states:        make(map[int64]*userState),
		warnThreshold: warnThreshold,
	}
}

// authorize runs the gate at admin level. Every transition goes through here
// before any state is touched.
func (e *Executor) authorize(ctx context.Context, caller auth.Caller) error {
	decision := e.gate.Authorize(ctx, caller, auth.RoleAdmin)
	if !decision.Allow {
		return &DeniedError{Reason: decision.Reason}
	}
	return nil
}

func (e *Executor) state(target int64) *userState {
	s, ok := e.states[target]
	if !ok {
		s = &userState{}
		e.states[target] = s
	}
	s.resolve(time.Now())
	return s
}

// Kick removes the target from the chat. Transient: no state is persisted.
func (e *Executor) Kick(ctx context.Context, caller auth.Caller, target int64) (Outcome, error) {
	if err := e.authorize(ctx, caller); err != nil {
		return Outcome{}, err
	}
	metrics.ModerationActions.WithLabelValues(string(ActionKick)).Inc()
	logging.FromContext(ctx).Info("user kicked", "target_id", target)
	return Outcome{Action: ActionKick, Changed: true}, nil
}

// Ban bans the target, optionally until now+duration (duration <= 0 is
// indefinite). Banning an already-banned target is a no-op.
func (e *Executor) Ban(ctx context.Context, caller auth.Caller, target int64, duration time.Duration) (Outcome, error) {
	if err := e.authorize(ctx, caller); err != nil {
		return Outcome{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state(target)
	if s.banned {
		return Outcome{Action: ActionBan}, nil
	}
	s.banned = true
	s.bannedUntil = deadline(duration)
	metrics.ModerationActions.WithLabelValues(string(ActionBan)).Inc()
	logging.FromContext(ctx).Info("user banned", "target_id", target)
	return Outcome{Action: ActionBan, Changed: true}, nil
}

// Unban reverses a ban and clears the target's warning count. Unbanning a
// target that is not banned is a no-op.
func (e *Executor) Unban(ctx context.Context, caller auth.Caller, target int64) (Outcome, error) {
	if err := e.authorize(ctx, caller); err != nil {
		return Outcome{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state(target)
	if !s.banned {
		return Outcome{Action: ActionUnban}, nil
	}
	s.banned = false
	s.bannedUntil = time.Time{}
	s.warns = 0
	metrics.ModerationActions.WithLabelValues(string(ActionUnban)).Inc()
	logging.FromContext(ctx).Info("user unbanned", "target_id", target)
	return Outcome{Action: ActionUnban, Changed: true}, nil
}

// Mute mutes the target, optionally until now+duration. Muting an
// already-muted target is a no-op.
func (e *Executor) Mute(ctx context.Context, caller auth.Caller, target int64, duration time.Duration) (Outcome, error) {
	if err := e.authorize(ctx, caller); err != nil {
		return Outcome{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state(target)
	if s.muted {
		return Outcome{Action: ActionMute}, nil
	}
	s.muted = true
	s.mutedUntil = deadline(duration)
	metrics.ModerationActions.WithLabelValues(string(ActionMute)).Inc()
	logging.FromContext(ctx).Info("user muted", "target_id", target)
	return Outcome{Action: ActionMute, Changed: true}, nil
}

// Unmute reverses a mute. Unmuting an unmuted target is a no-op.
func (e *Executor) Unmute(ctx context.Context, caller auth.Caller, target int64) (Outcome, error) {
	if err := e.authorize(ctx, caller); err != nil {
		return Outcome{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state(target)
	if !s.muted {
		return Outcome{Action: ActionUnmute}, nil
	}
	s.muted = false
	s.mutedUntil = time.Time{}
	metrics.ModerationActions.WithLabelValues(string(ActionUnmute)).Inc()
	logging.FromContext(ctx).Info("user unmuted", "target_id", target)
	return Outcome{Action: ActionUnmute, Changed: true}, nil
}

// Warn increments the target's warning count. Crossing the configured
// threshold bans the target automatically.
func (e *Executor) Warn(ctx context.Context, caller auth.Caller, target int64) (Outcome, error) {
	if err := e.authorize(ctx, caller); err != nil {
		return Outcome{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state(target)
	s.warns++
	metrics.ModerationActions.WithLabelValues(string(ActionWarn)).Inc()

	out := Outcome{Action: ActionWarn, Changed: true, WarnCount: s.warns}
	if s.warns >= e.warnThreshold && !s.banned {
		s.banned = true
		s.bannedUntil = time.Time{}
		out.AutoBanned = true
		metrics.ModerationActions.WithLabelValues(string(ActionAutoBan)).Inc()
		logging.FromContext(ctx).Info("warn threshold reached, user banned",
			"target_id", target, "warns", s.warns)
	} else {
		logging.FromContext(ctx).Info("user warned", "target_id", target, "warns", s.warns)
	}
	return out, nil
}

// IsBanned reports whether the target is currently banned.
func (e *Executor) IsBanned(target int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state(target).banned
}

// IsMuted reports whether the target is currently muted.
func (e *Executor) IsMuted(target int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state(target).muted
}

// Warnings returns the target's current warning count.
func (e *Executor) Warnings(target int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state(target).warns
}

func deadline(duration time.Duration) time.Time {
	if duration <= 0 {
		return time.Time{}
	}
	return time.Now().Add(duration)
}
