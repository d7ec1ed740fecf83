// Package audit periodically re-verifies that every active judge's view
// agrees with the hackathon overview.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/judge-engine/internal/engine"
	"github.com/terra-clan/judge-engine/internal/models"
)

// Verifier checks all active judges of a hackathon
type Verifier interface {
	VerifyHackathon(ctx context.Context, hackathonID models.HackathonID) ([]*engine.ConsistencyReport, error)
}

// HackathonLister lists the hackathons to audit
type HackathonLister interface {
	ListHackathonIDs(ctx context.Context) ([]models.HackathonID, error)
}

// Summary describes one audit cycle
type Summary struct {
	Hackathons   int
	Judges       int
	Inconsistent int
	Failed       int
}

// Auditor runs consistency checks on a ticker. It never repairs state.
type Auditor struct {
	verifier   Verifier
	hackathons HackathonLister
	interval   time.Duration
}

// NewAuditor creates a new audit worker
func NewAuditor(verifier Verifier, hackathons HackathonLister, interval time.Duration) *Auditor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &Auditor{
		verifier:   verifier,
		hackathons: hackathons,
		interval:   interval,
	}
}

// Start begins the audit worker in a goroutine
func (a *Auditor) Start(ctx context.Context) {
	go a.run(ctx)
}

// run is the main loop for the audit worker
func (a *Auditor) run(ctx context.Context) {
	slog.Info("consistency audit worker started", "interval", a.interval)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	// Run immediately on start
	a.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("consistency audit worker stopped")
			return
		case <-ticker.C:
			a.RunOnce(ctx)
		}
	}
}

// RunOnce verifies every active judge of every known hackathon
func (a *Auditor) RunOnce(ctx context.Context) Summary {
	slog.Debug("running consistency audit cycle")

	var summary Summary

	ids, err := a.hackathons.ListHackathonIDs(ctx)
	if err != nil {
		slog.Error("failed to list hackathons", "error", err)
		summary.Failed++
		return summary
	}

	for _, id := range ids {
		reports, err := a.verifier.VerifyHackathon(ctx, id)
		if err != nil {
			slog.Error("failed to verify hackathon", "error", err, "hackathon_id", id)
			summary.Failed++
			continue
		}

		summary.Hackathons++
		summary.Judges += len(reports)
		for _, r := range reports {
			if r.Consistent() {
				continue
			}
			summary.Inconsistent++
			slog.Warn("inconsistent judge assignment",
				"hackathon_id", id,
				"email", r.JudgeEmail,
				"missing_from_overview", r.MissingFromOverview,
			)
		}
	}

	if summary.Inconsistent > 0 {
		slog.Warn("consistency audit found mismatches",
			"hackathons", summary.Hackathons,
			"judges", summary.Judges,
			"inconsistent", summary.Inconsistent,
		)
	} else {
		slog.Debug("consistency audit clean", "hackathons", summary.Hackathons, "judges", summary.Judges)
	}

	return summary
}
