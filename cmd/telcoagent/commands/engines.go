package commands

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"

	"github.com/moolen/telcoagent/internal/agentengine"
)

// engineClient creates the Agent Engine client and registers its gRPC
// connections for shutdown. The staging bucket client is only created when
// withStager is set.
func (a *app) engineClient(ctx context.Context, withStager bool) (*agentengine.Client, error) {
	if err := a.cfg.RequireCloud(); err != nil {
		return nil, err
	}

	api, err := agentengine.NewReasoningEngines(ctx, a.cfg.Location)
	if err != nil {
		return nil, err
	}
	if err := a.manager.Register(api); err != nil {
		return nil, err
	}

	var stager agentengine.Stager
	if withStager {
		bs, err := agentengine.NewBucketStager(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.manager.Register(bs); err != nil {
			return nil, err
		}
		stager = bs
	}

	return agentengine.NewClient(agentengine.Config{
		Project:       a.cfg.Project,
		Location:      a.cfg.Location,
		StagingBucket: a.cfg.StagingBucket,
	}, api, stager, a.metrics)
}

// printEngines writes each engine as its display name and resource name
// followed by a blank line.
func printEngines(w io.Writer, engines []agentengine.Engine) {
	for _, e := range engines {
		fmt.Fprintf(w, "%s\n%s\n\n", e.DisplayName, e.ResourceName)
	}
}

var nowMinusPattern = regexp.MustCompile(`(?i)^\s*now\s*-\s*(\d+)\s*(h|hr|hrs|hour|hours|m|min|mins|minute|minutes|d|day|days)\s*$`)

// parseSince parses a --since value relative to now. Accepted forms are Unix
// seconds, "now-<n><unit>" and anything go-dateparser understands, such as
// "yesterday", "3 days ago" or "2025-01-31". Empty means no filter.
func parseSince(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}

	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs < 0 {
			return time.Time{}, fmt.Errorf("--since must not be negative")
		}
		return time.Unix(secs, 0).UTC(), nil
	}

	if strings.HasPrefix(strings.ToLower(value), "now") && strings.Contains(value, "-") {
		m := nowMinusPattern.FindStringSubmatch(value)
		if m == nil {
			return time.Time{}, fmt.Errorf("invalid --since %q: expected now-<number><unit>, e.g. now-2h", value)
		}
		amount, _ := strconv.Atoi(m[1])
		switch unit := strings.ToLower(m[2]); {
		case strings.HasPrefix(unit, "h"):
			return now.Add(-time.Duration(amount) * time.Hour), nil
		case strings.HasPrefix(unit, "m"):
			return now.Add(-time.Duration(amount) * time.Minute), nil
		default:
			return now.AddDate(0, 0, -amount), nil
		}
	}

	parser := dps.Parser{}
	parsed, err := parser.Parse(&dps.Configuration{
		CurrentTime:         now,
		PreferredDateSource: dps.Past,
	}, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: %w", value, err)
	}
	if parsed.IsZero() {
		return time.Time{}, fmt.Errorf("invalid --since %q: not a date", value)
	}
	return parsed.Time, nil
}
