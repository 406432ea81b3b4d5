package service

import "sort"

// Role values mirrored from the identity directory.
const (
	RoleAgent           = "agent"
	RoleAdmin           = "admin"
	RoleCampaignManager = "campaign_manager"
)

// ResolveAuthorizations is the default-authorization policy applied on every
// sync. It returns the full authorization set the agent must end up with.
//
// Rules, in order:
//   - admins always end with zero authorizations; they are excluded from
//     rotation structurally, not just filtered at selection time
//   - an explicit source list from the directory replaces the set wholesale
//   - the legacy single-source field replaces the set with that one entry
//   - a brand-new agent with no directory-provided sources gets none;
//     silence is not an implicit "grant everything"
//   - an existing agent with no directory-provided sources keeps its set
func ResolveAuthorizations(isNew bool, role string, explicit []string, legacy string, current []string) []string {
	if role == RoleAdmin {
		return []string{}
	}

	if explicit != nil {
		return normalizeSources(explicit)
	}

	if legacy != "" {
		return []string{legacy}
	}

	if isNew {
		return []string{}
	}

	return normalizeSources(current)
}

// normalizeSources deduplicates and sorts a source list, dropping empties.
func normalizeSources(sources []string) []string {
	seen := make(map[string]struct{}, len(sources))
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// diffSources computes the minimal insert/delete sets turning current into
// desired. Both inputs must be normalized.
func diffSources(current, desired []string) (toInsert, toDelete []string) {
	currentSet := make(map[string]struct{}, len(current))
	for _, s := range current {
		currentSet[s] = struct{}{}
	}
	desiredSet := make(map[string]struct{}, len(desired))
	for _, s := range desired {
		desiredSet[s] = struct{}{}
	}

	for _, s := range desired {
		if _, ok := currentSet[s]; !ok {
			toInsert = append(toInsert, s)
		}
	}
	for _, s := range current {
		if _, ok := desiredSet[s]; !ok {
			toDelete = append(toDelete, s)
		}
	}
	return toInsert, toDelete
}
