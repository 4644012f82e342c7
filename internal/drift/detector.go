package drift

import (
	"sort"
	"strings"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/registry"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/vendors"
)

// Detector diffs a live schema snapshot against current mappings and
// classifies the differences. Detection is pure: it never touches storage,
// so a single pass can be replayed against the observation ledger.
type Detector struct {
	editThreshold    float64
	overlapThreshold float64
}

// NewDetector creates a detector with the given rename thresholds.
// A vanished field and a new field pair as a rename when their edit
// similarity meets editThreshold or their token overlap meets
// overlapThreshold, and their types are compatible.
func NewDetector(editThreshold, overlapThreshold float64) *Detector {
	return &Detector{
		editThreshold:    editThreshold,
		overlapThreshold: overlapThreshold,
	}
}

// Detect compares current mapping entries against a live schema and returns
// drift candidates. Retired entries are invisible to the diff. Results are
// ordered by field name for deterministic replay.
func (d *Detector) Detect(entries []registry.Entry, schema *vendors.TableSchema) []Candidate {
	mapped := make(map[string]registry.Entry, len(entries))
	for _, e := range entries {
		if e.Current && !e.Retired() {
			mapped[e.VendorField] = e
		}
	}

	var added, removed []string
	for field := range schema.Fields {
		if _, ok := mapped[field]; !ok {
			added = append(added, field)
		}
	}
	for field := range mapped {
		if !schema.Has(field) {
			removed = append(removed, field)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)

	candidates := make([]Candidate, 0, len(added)+len(removed))
	pairedAdds := make(map[string]bool)

	// Pair each vanished field with its closest compatible new field;
	// unpaired leftovers fall through as plain additions and removals.
	for _, old := range removed {
		entry := mapped[old]
		best, score := d.bestRenameMatch(old, entry.DeclaredType, added, pairedAdds, schema)

		if best != "" {
			pairedAdds[best] = true
			candidates = append(candidates, Candidate{
				Kind:         KindFieldRenamed,
				Field:        old,
				Counterpart:  best,
				ObservedType: schema.Fields[best],
				Similarity:   score,
			})
			continue
		}

		candidates = append(candidates, Candidate{
			Kind:         KindFieldRemoved,
			Field:        old,
			ObservedType: vendors.FieldType(entry.DeclaredType),
		})
	}

	for _, field := range added {
		if pairedAdds[field] {
			continue
		}
		candidates = append(candidates, Candidate{
			Kind:         KindFieldAdded,
			Field:        field,
			ObservedType: schema.Fields[field],
		})
	}

	return candidates
}

// RenameCandidate reports whether a vanished and a new field name pair
// plausibly as a rename under this detector's thresholds.
func (d *Detector) RenameCandidate(oldName, newName string, oldType, newType vendors.FieldType) bool {
	if !typeCompatible(oldType, newType) {
		return false
	}
	return editSimilarity(oldName, newName) >= d.editThreshold ||
		tokenOverlap(oldName, newName) >= d.overlapThreshold
}

func (d *Detector) bestRenameMatch(
	old, declaredType string,
	added []string,
	taken map[string]bool,
	schema *vendors.TableSchema,
) (string, float64) {
	var (
		best      string
		bestScore float64
	)

	for _, candidate := range added {
		if taken[candidate] {
			continue
		}
		if !typeCompatible(vendors.FieldType(declaredType), schema.Fields[candidate]) {
			continue
		}

		edit := editSimilarity(old, candidate)
		overlap := tokenOverlap(old, candidate)
		if edit < d.editThreshold && overlap < d.overlapThreshold {
			continue
		}

		score := edit
		if overlap > score {
			score = overlap
		}
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	return best, bestScore
}

// typeCompatible reports whether a rename between the two declared types is
// plausible. Identical types always are; otherwise either side must be
// string-representable.
func typeCompatible(a, b vendors.FieldType) bool {
	if a == b {
		return true
	}
	if a == vendors.TypeString || b == vendors.TypeString {
		return true
	}
	return (a == vendors.TypeID && b == vendors.TypeString) ||
		(a == vendors.TypeString && b == vendors.TypeID)
}

// editSimilarity returns 1 - levenshtein(a,b)/max(len(a),len(b)).
func editSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}

	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}

	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// tokenOverlap returns the Jaccard overlap of the underscore-delimited
// tokens of both names, case-insensitive.
func tokenOverlap(a, b string) float64 {
	ta := tokens(a)
	tb := tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	union := make(map[string]bool, len(ta)+len(tb))
	shared := 0
	for t := range ta {
		union[t] = true
	}
	for t := range tb {
		if ta[t] {
			shared++
		}
		union[t] = true
	}

	return float64(shared) / float64(len(union))
}

func tokens(name string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range strings.Split(strings.ToLower(name), "_") {
		if t != "" {
			out[t] = true
		}
	}
	return out
}
