package relay

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zulandar/kisaragi/internal/rank"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	d := time.Until(sched.Next(time.Now()))
	if d < 0 {
		return 0
	}
	return d
}

// runDigestScheduler posts the leaderboard to the configured chat on a cron
// schedule. It returns immediately when the digest is disabled.
func (d *Daemon) runDigestScheduler(ctx context.Context) {
	digestCfg := d.cfg.Digest
	if !digestCfg.Enabled || digestCfg.Cron == "" {
		return
	}

	wait := nextCronDuration(digestCfg.Cron)
	if wait <= 0 {
		log.Printf("relay: digest: invalid cron expression %q, digest disabled", digestCfg.Cron)
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.fireDigest(ctx, digestCfg.Chat)
			if wait := nextCronDuration(digestCfg.Cron); wait > 0 {
				timer.Reset(wait)
			} else {
				return
			}
		}
	}
}

// fireDigest posts one leaderboard digest. An empty ledger suppresses the
// post; send failures are logged, never fatal.
func (d *Daemon) fireDigest(ctx context.Context, chatID string) {
	entries, err := d.ledger.Leaderboard(rank.DefaultLeaderboardLimit)
	if err != nil {
		log.Printf("relay: digest: leaderboard: %v", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	if err := d.adapter.Send(ctx, OutboundMessage{
		ChatID: chatID,
		Text:   formatLeaderboard(entries),
	}); err != nil {
		log.Printf("relay: digest: send: %v", err)
	}
}
