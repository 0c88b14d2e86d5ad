package match

import (
	"fmt"

	"github.com/ppiankov/concordia/internal/model"
	"github.com/ppiankov/concordia/internal/normalize"
)

// CollisionPolicy decides which record owns a key shared by several records
type CollisionPolicy string

const (
	LastWins  CollisionPolicy = "last-wins"  // Later records overwrite earlier ones
	FirstWins CollisionPolicy = "first-wins" // The first record keeps the key
	Reject    CollisionPolicy = "reject"     // Nobody owns the key; files hitting it stay unmatched
)

// ParsePolicy parses a policy name; empty means LastWins
func ParsePolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(s) {
	case "", LastWins:
		return LastWins, nil
	case FirstWins:
		return FirstWins, nil
	case Reject:
		return Reject, nil
	default:
		return "", fmt.Errorf("invalid collision policy %q: must be last-wins, first-wins or reject", s)
	}
}

// Matcher pairs candidate files with records by TitleKey
type Matcher struct {
	normalizer *normalize.Normalizer
	policy     CollisionPolicy
}

// NewMatcher creates a matcher. A nil normalizer uses the defaults.
func NewMatcher(n *normalize.Normalizer, policy CollisionPolicy) *Matcher {
	if n == nil {
		n = normalize.Default()
	}
	if policy == "" {
		policy = LastWins
	}
	return &Matcher{
		normalizer: n,
		policy:     policy,
	}
}

// Match classifies every file exactly once, in input order.
// It does no I/O and returns the same partition for the same inputs.
func (m *Matcher) Match(records []model.CanonicalRecord, files []model.CandidateFile) model.Partition {
	table, collisions := m.buildTable(records)

	partition := model.Partition{
		Matched:    []model.MatchResult{},
		Unmatched:  []model.MatchResult{},
		Collisions: collisions,
	}

	for _, f := range files {
		key := m.normalizer.File(f.OriginalName)
		result := model.MatchResult{File: f, Key: key}

		switch id, found := table[key]; {
		case key == "":
			result.Reason = model.ReasonEmptyKey
		case !found:
			result.Reason = model.ReasonNoRecord
		case id == "":
			result.Reason = model.ReasonAmbiguous
		default:
			result.RecordID = id
		}

		if result.Matched() {
			partition.Matched = append(partition.Matched, result)
		} else {
			partition.Unmatched = append(partition.Unmatched, result)
		}
	}

	return partition
}

// buildTable maps key to record id. Under Reject a collided key maps to
// "" so lookups can tell "ambiguous" from "absent".
func (m *Matcher) buildTable(records []model.CanonicalRecord) (map[string]string, []model.Collision) {
	table := make(map[string]string, len(records))
	owners := make(map[string][]string)
	var order []string

	for _, r := range records {
		key := m.normalizer.Title(r.Title)
		if key == "" || r.ID == "" {
			continue
		}

		if _, seen := owners[key]; !seen {
			order = append(order, key)
		}
		owners[key] = append(owners[key], r.ID)

		if _, taken := table[key]; !taken {
			table[key] = r.ID
			continue
		}
		switch m.policy {
		case LastWins:
			table[key] = r.ID
		case Reject:
			table[key] = ""
		}
	}

	var collisions []model.Collision
	for _, key := range order {
		ids := owners[key]
		if len(ids) < 2 {
			continue
		}
		collisions = append(collisions, model.Collision{
			Key:       key,
			RecordIDs: ids,
			Kept:      table[key],
		})
	}

	return table, collisions
}
