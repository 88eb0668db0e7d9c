package relay

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"

	"github.com/zulandar/kisaragi/internal/rank"
)

// commandPrefix is the prefix that triggers command handling.
const commandPrefix = "!kisa"

// Command reply texts, kept in the bot's voice.
const (
	talkStartedReply  = "I'm ready to chat, Master! (ﾉ◕ヮ◕)ﾉ*:･ﾟ✧"
	talkEndedReply    = "It was a great talk, Master! (´｡• ᵕ •｡`)"
	notTalkingReply   = "You're not in a conversation with me, Master! Use `" + commandPrefix + " talk` to start chatting! (・・；)"
	emptyBoardReply   = "No leaderboard data available yet!"
	rankFailedReply   = "I couldn't check the ledger just now, Master... please try again! (｡•́︿•̀｡)"
	anonymousUserName = "Anonymous"
)

// Router classifies inbound chat messages: commands go to the command
// verbs, everything else is the catch-all message flow (XP grant plus,
// for active talk sessions, a model round trip).
type Router struct {
	registry *SessionRegistry
	ledger   *rank.Ledger
	engine   *Engine
	adapter  Adapter

	botUserID string // the bot's own user ID (to filter self-messages)
	out       io.Writer
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Registry *SessionRegistry
	Ledger   *rank.Ledger
	Engine   *Engine
	Adapter  Adapter

	BotUserID string    // bot's user ID for self-message filtering
	Out       io.Writer // defaults to os.Stdout
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("relay: router: session registry is required")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("relay: router: rank ledger is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("relay: router: engine is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("relay: router: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Router{
		registry:  opts.Registry,
		ledger:    opts.Ledger,
		engine:    opts.Engine,
		adapter:   opts.Adapter,
		botUserID: opts.BotUserID,
		out:       out,
	}, nil
}

// Handle classifies and routes a single inbound message. Routing paths:
//  1. Bot self-message → ignore
//  2. Command prefix "!kisa" or @mention command → command verbs
//  3. Everything else → catch-all message flow
func (r *Router) Handle(ctx context.Context, msg InboundMessage) {
	if r.isSelfMessage(msg) {
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	fmt.Fprintf(r.out, "relay: router: recv [chat=%s user=%s] %q\n",
		msg.ChatID, msg.UserName, truncate(text, 80))

	if args := r.extractCommand(text); len(args) > 0 {
		fmt.Fprintf(r.out, "relay: router: → command %q\n", args[0])
		r.handleCommand(ctx, msg, args)
		return
	}

	r.handleMessage(ctx, msg, text)
}

// handleMessage is the catch-all flow for ordinary text: XP is granted for
// every message, then the text is forwarded to the model only when the
// sender has an active talk session in this chat.
func (r *Router) handleMessage(ctx context.Context, msg InboundMessage, text string) {
	userName := msg.UserName
	if userName == "" {
		userName = anonymousUserName
	}

	if err := r.ledger.GrantXP(msg.UserID, userName); err != nil {
		log.Printf("relay: router: grant xp to %s: %v", msg.UserID, err)
	}

	if !r.registry.IsActive(msg.ChatID, msg.UserID) {
		fmt.Fprintf(r.out, "relay: router: → ignore (no talk session)\n")
		return
	}

	if err := r.adapter.SendTyping(ctx, msg.ChatID); err != nil {
		log.Printf("relay: router: send typing: %v", err)
	}

	response := r.engine.Reply(ctx, msg.UserID, text)
	r.registry.Touch(msg.ChatID, msg.UserID)

	r.send(ctx, msg.ChatID, "**"+response+"**")
}

// handleCommand dispatches a command verb and sends the response.
func (r *Router) handleCommand(ctx context.Context, msg InboundMessage, args []string) {
	userName := msg.UserName
	if userName == "" {
		userName = anonymousUserName
	}

	var response string
	switch args[0] {
	case "talk":
		r.registry.Start(msg.ChatID, msg.UserID, userName)
		response = talkStartedReply
	case "endtalk":
		if r.registry.Stop(msg.ChatID, msg.UserID) {
			response = talkEndedReply
		} else {
			response = notTalkingReply
		}
	case "rank":
		status, err := r.ledger.RankOf(msg.UserID)
		if err != nil {
			log.Printf("relay: router: rank of %s: %v", msg.UserID, err)
			status = rankFailedReply
		}
		response = status
	case "leaderboard":
		entries, err := r.ledger.Leaderboard(rank.DefaultLeaderboardLimit)
		if err != nil {
			log.Printf("relay: router: leaderboard: %v", err)
			response = rankFailedReply
			break
		}
		response = formatLeaderboard(entries)
	case "help":
		response = helpText()
	default:
		response = fmt.Sprintf("Unknown command: `%s`\n\n%s", args[0], helpText())
	}

	r.send(ctx, msg.ChatID, response)
}

// send delivers a reply, logging failures. Every handled command resolves to
// a plain-text reply; there is no error path back to the platform layer.
func (r *Router) send(ctx context.Context, chatID, text string) {
	if err := r.adapter.Send(ctx, OutboundMessage{ChatID: chatID, Text: text}); err != nil {
		log.Printf("relay: router: send reply: %v", err)
	}
}

// formatLeaderboard renders ledger entries as a numbered list.
func formatLeaderboard(entries []rank.Entry) string {
	if len(entries) == 0 {
		return emptyBoardReply
	}
	var b strings.Builder
	b.WriteString("🏆 Leaderboard 🏆\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s: Level %d, %d/%d XP\n", i+1, e.Username, e.Level, e.XP, rank.LevelThreshold)
	}
	return b.String()
}

func helpText() string {
	return "Kisaragi commands:\n" +
		"`" + commandPrefix + " talk` — start chatting with me\n" +
		"`" + commandPrefix + " endtalk` — end our talk\n" +
		"`" + commandPrefix + " rank` — show your level and XP\n" +
		"`" + commandPrefix + " leaderboard` — show the top chatters\n" +
		"`" + commandPrefix + " help` — this message"
}

// isSelfMessage returns true if the message is from the bot itself.
func (r *Router) isSelfMessage(msg InboundMessage) bool {
	return r.botUserID != "" && msg.UserID == r.botUserID
}

// mentionRe matches Discord mention formats: <@ID> or <@!ID>.
var mentionRe = regexp.MustCompile(`<@!?\w+>`)

// knownCommands is the set of verbs recognized after a bare @mention.
var knownCommands = map[string]bool{
	"talk":        true,
	"endtalk":     true,
	"rank":        true,
	"leaderboard": true,
	"help":        true,
}

// extractCommand returns the command args for prefixed commands ("!kisa
// talk") and @mention commands ("@kisaragi talk"). Returns nil for ordinary
// messages.
func (r *Router) extractCommand(text string) []string {
	if text == commandPrefix {
		return []string{"help"}
	}
	if strings.HasPrefix(text, commandPrefix+" ") {
		return strings.Fields(text[len(commandPrefix)+1:])
	}

	// Bare @mention followed by a known verb.
	stripped := strings.TrimSpace(mentionRe.ReplaceAllString(text, ""))
	if stripped == "" || stripped == text {
		return nil
	}
	fields := strings.Fields(stripped)
	if len(fields) > 0 && knownCommands[fields[0]] {
		return fields
	}
	return nil
}

// truncate returns s truncated to maxLen with "..." appended if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
