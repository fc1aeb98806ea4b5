package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultNudgeTiers is name:inactivity:cooldown, comma separated.
const DefaultNudgeTiers = "gentle:24h:24h,strong:72h:72h,final:168h:720h"

type NudgeTier struct {
	Name     string
	After    time.Duration
	Cooldown time.Duration
}

// ParseNudgeTiers parses NUDGE_TIERS and returns tiers ordered by inactivity threshold.
func ParseNudgeTiers(s string) ([]NudgeTier, error) {
	var tiers []NudgeTier
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("tier %q must be name:after:cooldown", part)
		}
		name := strings.TrimSpace(fields[0])
		if name == "" || seen[name] {
			return nil, fmt.Errorf("tier %q has an empty or duplicate name", part)
		}
		after, err := time.ParseDuration(fields[1])
		if err != nil || after <= 0 {
			return nil, fmt.Errorf("tier %q has an invalid threshold", part)
		}
		cooldown, err := time.ParseDuration(fields[2])
		if err != nil || cooldown < 0 {
			return nil, fmt.Errorf("tier %q has an invalid cooldown", part)
		}
		seen[name] = true
		tiers = append(tiers, NudgeTier{Name: name, After: after, Cooldown: cooldown})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("at least one tier is required")
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].After < tiers[j].After })
	return tiers, nil
}
