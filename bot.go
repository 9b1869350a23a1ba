package duckbot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dresos/duckbot/internal/auth"
	"github.com/dresos/duckbot/internal/blacklist"
	"github.com/dresos/duckbot/internal/logging"
	"github.com/dresos/duckbot/internal/metrics"
	"github.com/dresos/duckbot/internal/ratelimit"
	"github.com/dresos/duckbot/internal/welcome"
	"github.com/dresos/duckbot/moderation"
	"github.com/dresos/duckbot/search"
)

// User-safe reply messages. Every failure class maps to exactly one of
// these at the command boundary; internal error detail never reaches chat.
const (
	msgUnauthorized      = "You are not authorized to use this command."
	msgSearchUnavailable = "Sorry, I couldn't reach the search service."
	msgNoResults         = "No results found."
	msgBadTarget         = "Provide a numeric user id."
	msgBadDuration       = "Invalid duration. Examples: 10m, 2h"
	msgRateLimited       = "You're searching too fast. Try again in a moment."
	msgStart             = "Hi! I am a web search and group moderation bot."
)

const helpText = `Commands:
/search <query>
/kick <user_id>
/ban <user_id> [duration]
/unban <user_id>
/mute <user_id> [duration]
/unmute <user_id>
/warn <user_id>
/blacklist <user_id>
/unblacklist <user_id>
/list_blacklist
/setwelcome <text> [--channel <link>] (use {user_mention})
/clearwelcome
/help`

// Update is one incoming chat command, with the caller identity already
// resolved by the platform adapter.
type Update struct {
	ChatID   int64  `json:"chat_id"`
	CallerID int64  `json:"caller_id"`
	// CallerRole is the platform-reported role: "admin" or "member".
	// The configured owner id always resolves to owner regardless.
	CallerRole string `json:"caller_role"`
	Text       string `json:"text"`
}

// Bot dispatches chat commands to the moderation and search subsystems.
// All dependencies are injected; Bot itself holds no mutable state and is
// safe for concurrent Dispatch calls.
type Bot struct {
	cfg      Config
	store    blacklist.Store
	gate     *auth.Gate
	executor *moderation.Executor
	search   *search.Service
	welcome  *welcome.Store
	limiter  *ratelimit.Store
}

// New creates a Bot over the given collaborators. welcomeStore may be nil to
// disable welcome messages. A per-caller search rate limiter is created when
// the config sets a positive rate.
func New(cfg Config, store blacklist.Store, gate *auth.Gate, executor *moderation.Executor, searchSvc *search.Service, welcomeStore *welcome.Store) *Bot {
	var limiter *ratelimit.Store
	if rl := cfg.Search.RateLimit; rl.PerSecond > 0 {
		limiter = ratelimit.NewStore(rl.PerSecond, rl.Burst)
	}
	return &Bot{
		cfg:      cfg,
		store:    store,
		gate:     gate,
		executor: executor,
		search:   searchSvc,
		welcome:  welcomeStore,
		limiter:  limiter,
	}
}

// caller resolves the effective caller identity for an update. The owner id
// outranks any platform-reported role.
func (b *Bot) caller(upd Update) auth.Caller {
	role := auth.RoleMember
	if upd.CallerRole == "admin" {
		role = auth.RoleAdmin
	}
	if upd.CallerID == b.cfg.OwnerID {
		role = auth.RoleOwner
	}
	return auth.Caller{ID: upd.CallerID, Role: role}
}

// Dispatch parses and executes one chat command, returning the reply text.
// An empty reply means the update is silently ignored. Dispatch never
// returns an error: every failure becomes a user-safe message, and a failure
// handling one command must not affect concurrently running commands.
func (b *Bot) Dispatch(ctx context.Context, upd Update) string {
	ctx = logging.WithCommandID(ctx, logging.NewCommandID())
	log := logging.FromContext(ctx)

	command, args := parseCommand(upd.Text)
	if command == "" {
		// Plain chat text still goes through the guard chain, so an
		// IP-disclosure question gets the refusal reply even outside /search.
		if msg, refused := b.search.Vet(upd.Text); refused {
			log.Info("message refused", "chat_id", upd.ChatID)
			metrics.CommandsTotal.WithLabelValues("message", "refused").Inc()
			return msg
		}
		return ""
	}
	log.Info("command received", "command", command, "chat_id", upd.ChatID)

	caller := b.caller(upd)
	reply, status := b.execute(ctx, command, args, caller, upd.ChatID)
	metrics.CommandsTotal.WithLabelValues(command, status).Inc()
	return reply
}

// execute runs a single parsed command and reports the outcome status for
// metrics ("success", "denied", "refused", "rate_limited", "error").
func (b *Bot) execute(ctx context.Context, command string, args []string, caller auth.Caller, chatID int64) (string, string) {
	switch command {
	case "start":
		return msgStart, "success"
	case "help":
		return helpText, "success"
	case "search":
		return b.handleSearch(ctx, caller, args)
	case "blacklist":
		return b.handleBlacklistAdd(ctx, caller, args)
	case "unblacklist":
		return b.handleBlacklistRemove(ctx, caller, args)
	case "list_blacklist":
		return b.handleBlacklistList(ctx, caller)
	case "kick", "ban", "unban", "mute", "unmute", "warn":
		return b.handleModeration(ctx, command, caller, args)
	case "setwelcome":
		return b.handleSetWelcome(ctx, caller, chatID, args)
	case "clearwelcome":
		return b.handleClearWelcome(ctx, caller, chatID)
	default:
		return "", "success" // unknown commands are ignored, not errors
	}
}

func (b *Bot) handleSearch(ctx context.Context, caller auth.Caller, args []string) (string, string) {
	decision := b.gate.Authorize(ctx, caller, auth.RoleMember)
	if !decision.Allow {
		// Blacklisted callers get silence, not feedback.
		return "", "denied"
	}
	if b.limiter != nil && !b.limiter.AllowCaller(caller.ID) {
		return msgRateLimited, "rate_limited"
	}
	if len(args) == 0 {
		return "Usage: /search <query>", "success"
	}

	result, err := b.search.Search(ctx, strings.Join(args, " "))
	switch {
	case err == nil:
		return formatResult(result), "success"
	case errors.Is(err, search.ErrRefused):
		var refused *search.RefusedError
		if errors.As(err, &refused) {
			return refused.Message, "refused"
		}
		return msgSearchUnavailable, "refused"
	case errors.Is(err, search.ErrNoResult):
		return msgNoResults, "success"
	default:
		return msgSearchUnavailable, "error"
	}
}

func (b *Bot) handleBlacklistAdd(ctx context.Context, caller auth.Caller, args []string) (string, string) {
	if d := b.gate.Authorize(ctx, caller, auth.RoleOwner); !d.Allow {
		return msgUnauthorized, "denied"
	}
	id, ok := parseTarget(args)
	if !ok {
		return "Usage: /blacklist <user_id>", "success"
	}
	if err := b.store.Add(id); err != nil {
		logging.FromContext(ctx).Error("blacklist add failed", "error", err.Error())
		return "Sorry, something went wrong.", "error"
	}
	return fmt.Sprintf("User %d blacklisted.", id), "success"
}

func (b *Bot) handleBlacklistRemove(ctx context.Context, caller auth.Caller, args []string) (string, string) {
	if d := b.gate.Authorize(ctx, caller, auth.RoleOwner); !d.Allow {
		return msgUnauthorized, "denied"
	}
	id, ok := parseTarget(args)
	if !ok {
		return "Usage: /unblacklist <user_id>", "success"
	}
	if err := b.store.Remove(id); err != nil {
		logging.FromContext(ctx).Error("blacklist remove failed", "error", err.Error())
		return "Sorry, something went wrong.", "error"
	}
	return fmt.Sprintf("User %d removed from blacklist.", id), "success"
}

func (b *Bot) handleBlacklistList(ctx context.Context, caller auth.Caller) (string, string) {
	if d := b.gate.Authorize(ctx, caller, auth.RoleOwner); !d.Allow {
		return msgUnauthorized, "denied"
	}
	ids, err := b.store.List()
	if err != nil {
		logging.FromContext(ctx).Error("blacklist list failed", "error", err.Error())
		return "Sorry, something went wrong.", "error"
	}
	if len(ids) == 0 {
		return "Blacklist empty.", "success"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "Blacklist: " + strings.Join(parts, ", "), "success"
}

func (b *Bot) handleModeration(ctx context.Context, command string, caller auth.Caller, args []string) (string, string) {
	target, ok := parseTarget(args)
	if !ok {
		return msgBadTarget, "success"
	}

	var (
		outcome moderation.Outcome
		err     error
	)
	switch command {
	case "kick":
		outcome, err = b.executor.Kick(ctx, caller, target)
	case "ban":
		duration, durErr := optionalDuration(args)
		if durErr != nil {
			return msgBadDuration, "success"
		}
		outcome, err = b.executor.Ban(ctx, caller, target, duration)
	case "unban":
		outcome, err = b.executor.Unban(ctx, caller, target)
	case "mute":
		duration, durErr := optionalDuration(args)
		if durErr != nil {
			return msgBadDuration, "success"
		}
		outcome, err = b.executor.Mute(ctx, caller, target, duration)
	case "unmute":
		outcome, err = b.executor.Unmute(ctx, caller, target)
	case "warn":
		outcome, err = b.executor.Warn(ctx, caller, target)
	}

	if errors.Is(err, moderation.ErrDenied) {
		return msgUnauthorized, "denied"
	}
	if err != nil {
		return "Sorry, something went wrong.", "error"
	}
	return formatOutcome(outcome, target), "success"
}

func (b *Bot) handleSetWelcome(ctx context.Context, caller auth.Caller, chatID int64, args []string) (string, string) {
	if d := b.gate.Authorize(ctx, caller, auth.RoleAdmin); !d.Allow {
		return msgUnauthorized, "denied"
	}
	if b.welcome == nil {
		return "Welcome messages are not enabled.", "success"
	}
	text, channel := splitChannelFlag(args)
	if text == "" {
		return "Usage: /setwelcome <text> [--channel <link>]. Use {user_mention} in text.", "success"
	}
	if err := b.welcome.Set(chatID, welcome.Message{Text: text, ChannelLink: channel}); err != nil {
		logging.FromContext(ctx).Error("welcome save failed", "error", err.Error())
		return "Sorry, something went wrong.", "error"
	}
	return "Welcome message saved for this chat.", "success"
}

func (b *Bot) handleClearWelcome(ctx context.Context, caller auth.Caller, chatID int64) (string, string) {
	if d := b.gate.Authorize(ctx, caller, auth.RoleAdmin); !d.Allow {
		return msgUnauthorized, "denied"
	}
	if b.welcome == nil {
		return "Welcome messages are not enabled.", "success"
	}
	cleared, err := b.welcome.Clear(chatID)
	if err != nil {
		logging.FromContext(ctx).Error("welcome clear failed", "error", err.Error())
		return "Sorry, something went wrong.", "error"
	}
	if !cleared {
		return "No welcome configured.", "success"
	}
	return "Welcome cleared.", "success"
}

// HandleJoin renders the welcome message for a member joining a chat.
// Returns an empty string when the chat has no welcome configured.
func (b *Bot) HandleJoin(ctx context.Context, chatID int64, mention string) string {
	if b.welcome == nil {
		return ""
	}
	text, ok := b.welcome.Render(chatID, mention)
	if !ok {
		return ""
	}
	logging.FromContext(ctx).Info("welcome rendered", "chat_id", chatID)
	return text
}

// parseCommand splits "/cmd arg arg" into name and args. Returns an empty
// name for non-command text.
func parseCommand(text string) (string, []string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil
	}
	// Strip a "@botname" suffix as sent in group chats.
	name := fields[0]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), fields[1:]
}

func parseTarget(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// optionalDuration parses args[1] as a duration when present.
func optionalDuration(args []string) (time.Duration, error) {
	if len(args) < 2 {
		return 0, nil
	}
	return ParseDuration(args[1])
}

var durationRe = regexp.MustCompile(`^(\d+)\s*(s|sec|secs|second|seconds|m|min|mins|minute|minutes|h|hr|hrs|hour|hours|d|day|days)?$`)

// ParseDuration parses human-friendly durations like "90", "10m", "2h", "1d".
// A bare number means seconds.
func ParseDuration(s string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	val := time.Duration(n)
	switch {
	case m[2] == "" || strings.HasPrefix(m[2], "s"):
		return val * time.Second, nil
	case strings.HasPrefix(m[2], "m"):
		return val * time.Minute, nil
	case strings.HasPrefix(m[2], "h"):
		return val * time.Hour, nil
	default:
		return val * 24 * time.Hour, nil
	}
}

// splitChannelFlag extracts an optional "--channel <link>" pair from the
// argument list and returns the remaining text plus the link.
func splitChannelFlag(args []string) (string, string) {
	var channel string
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "--channel" && i+1 < len(args) {
			channel = args[i+1]
			i++
			continue
		}
		rest = append(rest, args[i])
	}
	return strings.TrimSpace(strings.Join(rest, " ")), channel
}

func formatResult(r *search.Result) string {
	if r.Summary != "" {
		if r.SummaryURL != "" {
			return r.Summary + "\n" + r.SummaryURL
		}
		return r.Summary
	}
	if len(r.Related) > 0 {
		return strings.Join(r.Related, " | ")
	}
	return msgNoResults
}

func formatOutcome(o moderation.Outcome, target int64) string {
	switch o.Action {
	case moderation.ActionKick:
		return fmt.Sprintf("Kicked %d.", target)
	case moderation.ActionBan:
		if !o.Changed {
			return fmt.Sprintf("User %d is already banned.", target)
		}
		return fmt.Sprintf("Banned %d.", target)
	case moderation.ActionUnban:
		if !o.Changed {
			return fmt.Sprintf("User %d is not banned.", target)
		}
		return fmt.Sprintf("Unbanned %d.", target)
	case moderation.ActionMute:
		if !o.Changed {
			return fmt.Sprintf("User %d is already muted.", target)
		}
		return fmt.Sprintf("Muted %d.", target)
	case moderation.ActionUnmute:
		if !o.Changed {
			return fmt.Sprintf("User %d is not muted.", target)
		}
		return fmt.Sprintf("Unmuted %d.", target)
	case moderation.ActionWarn:
		if o.AutoBanned {
			return fmt.Sprintf("Warned %d (%d total). Warning threshold reached: banned.", target, o.WarnCount)
		}
		return fmt.Sprintf("Warned %d (%d total).", target, o.WarnCount)
	default:
		return "Done."
	}
}
