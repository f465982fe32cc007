package matching

import (
	"sort"
	"time"

	"github.com/kassa-labs/recon/model"
)

const (
	// DefaultPoolCap bounds the size of a group the exact subset-sum search runs on.
	DefaultPoolCap = 40
	// DefaultMaxItems is the largest combination proposed when none is configured.
	DefaultMaxItems = 5

	// maxExactSubsets bounds the subsets listed by one exact search without a Limit.
	maxExactSubsets = 256
)

// Entry is one member of a combination pool. Entries are only combined with
// entries of the same Group.
type Entry struct {
	ID     string
	Group  string
	Amount model.Amount
	Date   time.Time
}

// Combination is a subset of the pool whose sum approximates the target.
type Combination struct {
	Items      []Entry
	Sum        model.Amount
	SumDiff    model.Amount
	DateSpread int
	Group      string
}

// IDs returns the ids of the combined entries in selection order.
func (c Combination) IDs() []string {
	ids := make([]string, len(c.Items))
	for i, e := range c.Items {
		ids[i] = e.ID
	}
	return ids
}

type CombinationOptions struct {
	MaxItems  int
	Tolerance model.Amount
	PoolCap   int
	// Limit caps the number of ranked results. Zero returns all of them.
	Limit int
}

// FindCombinations searches subsets of pool whose sum lies within tolerance of target.
//
// Entries are grouped by Group and combined only within a group. Entries whose
// sign differs from the target never take part. Within a group a greedy pass
// accumulates entries ordered by date proximity to targetDate. Groups of at
// most PoolCap entries then get an exact subset-sum search over cents that
// lists every equally good subset, so alternatives to the greedy pick survive.
//
// Results are ranked by fewest items, then smaller difference, then smaller date spread.
// An empty pool yields an empty result.
func FindCombinations(target model.Amount, targetDate time.Time, pool []Entry, opts CombinationOptions) []Combination {
	if len(pool) == 0 || target == 0 {
		return nil
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	if opts.PoolCap <= 0 {
		opts.PoolCap = DefaultPoolCap
	}
	tolerance := opts.Tolerance.Abs()
	goal := target.Abs()

	groups := make(map[string][]Entry)
	var names []string
	for _, e := range pool {
		if e.Amount.Sign() != target.Sign() {
			continue
		}
		if _, ok := groups[e.Group]; !ok {
			names = append(names, e.Group)
		}
		groups[e.Group] = append(groups[e.Group], e)
	}
	sort.Strings(names)

	var results []Combination
	seen := make(map[string]struct{})
	collect := func(group string, items []Entry) {
		if len(items) == 0 || len(items) > opts.MaxItems {
			return
		}
		c := newCombination(target, group, items)
		if c.SumDiff > tolerance {
			return
		}
		key := model.IDKey(c.IDs())
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		results = append(results, c)
	}

	for _, name := range names {
		entries := groups[name]
		sortByProximity(entries, targetDate)

		greedy := greedySubset(entries, goal, tolerance, opts.MaxItems, targetDate)
		collect(name, greedy)
		if len(entries) > opts.PoolCap {
			continue
		}
		for _, subset := range exactSubsets(entries, goal, tolerance, opts.MaxItems, opts.Limit) {
			collect(name, subset)
		}
	}

	RankCombinations(results)
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

// RankCombinations orders combinations by fewest items, smaller difference,
// smaller date spread and finally by their ids.
func RankCombinations(cs []Combination) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if len(a.Items) != len(b.Items) {
			return len(a.Items) < len(b.Items)
		}
		if a.SumDiff != b.SumDiff {
			return a.SumDiff < b.SumDiff
		}
		if a.DateSpread != b.DateSpread {
			return a.DateSpread < b.DateSpread
		}
		return model.IDKey(a.IDs()) < model.IDKey(b.IDs())
	})
}

func newCombination(target model.Amount, group string, items []Entry) Combination {
	sum := model.Sum(amountsOf(items)...)
	earliest, latest := items[0].Date, items[0].Date
	for _, e := range items[1:] {
		if e.Date.Before(earliest) {
			earliest = e.Date
		}
		if e.Date.After(latest) {
			latest = e.Date
		}
	}
	return Combination{
		Items:      append([]Entry(nil), items...),
		Sum:        sum,
		SumDiff:    (sum - target).Abs(),
		DateSpread: model.DaysBetween(earliest, latest),
		Group:      group,
	}
}

func amountsOf(items []Entry) []model.Amount {
	out := make([]model.Amount, len(items))
	for i, e := range items {
		out[i] = e.Amount
	}
	return out
}

func sortByProximity(entries []Entry, targetDate time.Time) {
	sort.SliceStable(entries, func(i, j int) bool {
		di := model.DaysBetween(entries[i].Date, targetDate)
		dj := model.DaysBetween(entries[j].Date, targetDate)
		if di != dj {
			return di < dj
		}
		return entries[i].ID < entries[j].ID
	})
}

// greedySubset accumulates entries in date order. On overshoot it drops the
// selected entry with the worst date proximity whose removal brings the sum
// back under goal+tolerance, or the newest entry when none does. A full
// selection may still swap its furthest entry for a later one when that lands
// within tolerance.
func greedySubset(entries []Entry, goal, tolerance model.Amount, maxItems int, targetDate time.Time) []Entry {
	var chosen []Entry
	var sum model.Amount

	furthest := func() int {
		idx, worst := -1, -1
		for i, e := range chosen {
			if d := model.DaysBetween(e.Date, targetDate); d >= worst {
				idx, worst = i, d
			}
		}
		return idx
	}
	overshootDrop := func() int {
		idx, worst := len(chosen)-1, -1
		for i, e := range chosen {
			if sum-e.Amount.Abs() > goal+tolerance {
				continue
			}
			if d := model.DaysBetween(e.Date, targetDate); d >= worst {
				idx, worst = i, d
			}
		}
		return idx
	}
	within := func(s model.Amount) bool {
		return (s - goal).Abs() <= tolerance
	}

	for _, e := range entries {
		a := e.Amount.Abs()
		if len(chosen) == maxItems {
			j := furthest()
			if next := sum - chosen[j].Amount.Abs() + a; within(next) {
				chosen[j] = e
				return chosen
			}
			continue
		}

		chosen = append(chosen, e)
		sum += a
		if sum > goal+tolerance {
			j := overshootDrop()
			sum -= chosen[j].Amount.Abs()
			chosen = append(chosen[:j], chosen[j+1:]...)
		}
		if len(chosen) > 0 && within(sum) {
			return chosen
		}
	}
	return nil
}

// exactSubsets runs a sparse subset-sum search over cents with an item count
// dimension. Only sums up to goal+tolerance are tracked, and partial sums that
// can no longer reach goal-tolerance are pruned, so the work depends on the
// number of useful sums rather than on the size of the target.
//
// Every distinct subset of every (count, sum) state inside the tolerance window
// is listed, closest sums first, up to limit subsets (maxExactSubsets when
// limit is zero).
func exactSubsets(entries []Entry, goal, tolerance model.Amount, maxItems, limit int) [][]Entry {
	hi := goal + tolerance
	lo := goal - tolerance
	k := maxItems
	if k > len(entries) {
		k = len(entries)
	}
	if limit <= 0 {
		limit = maxExactSubsets
	}
	reach := largestSuffixSums(entries, k)

	// ways[c][s] lists, in ascending order, the entries that close a subset of
	// c entries summing to s on top of a subset built from earlier entries only.
	ways := make([]map[model.Amount][]int, k+1)
	for c := range ways {
		ways[c] = make(map[model.Amount][]int)
	}
	ways[0][0] = nil

	for i, e := range entries {
		a := e.Amount.Abs()
		if a == 0 || a > hi {
			continue
		}
		for c := k; c >= 1; c-- {
			for p := range ways[c-1] {
				s := p + a
				if s > hi || s+reach[i+1][k-c] < lo {
					continue
				}
				ways[c][s] = append(ways[c][s], i)
			}
		}
	}

	type state struct {
		count int
		sum   model.Amount
	}
	var states []state
	for c := 1; c <= k; c++ {
		for s := range ways[c] {
			if s >= lo {
				states = append(states, state{c, s})
			}
		}
	}
	sort.Slice(states, func(i, j int) bool {
		di, dj := (states[i].sum - goal).Abs(), (states[j].sum - goal).Abs()
		if di != dj {
			return di < dj
		}
		if states[i].count != states[j].count {
			return states[i].count < states[j].count
		}
		return states[i].sum < states[j].sum
	})

	var subsets [][]Entry
	for _, st := range states {
		if len(subsets) == limit {
			break
		}
		subsets = append(subsets, expandSubsets(entries, ways, st.count, st.sum, len(entries), limit-len(subsets))...)
	}
	return subsets
}

// largestSuffixSums returns, for every i, the sums of the r largest amounts
// among entries[i:] for r up to k.
func largestSuffixSums(entries []Entry, k int) [][]model.Amount {
	out := make([][]model.Amount, len(entries)+1)
	var top []model.Amount
	for i := len(entries); i >= 0; i-- {
		if i < len(entries) {
			a := entries[i].Amount.Abs()
			at := sort.Search(len(top), func(j int) bool { return top[j] < a })
			top = append(top, 0)
			copy(top[at+1:], top[at:])
			top[at] = a
			if len(top) > k {
				top = top[:k]
			}
		}
		sums := make([]model.Amount, k+1)
		for r := 1; r <= k; r++ {
			sums[r] = sums[r-1]
			if r <= len(top) {
				sums[r] += top[r-1]
			}
		}
		out[i] = sums
	}
	return out
}

// expandSubsets lists up to budget subsets of c entries with indexes below bound
// that sum to s. Indexes strictly decrease along a path, so no subset repeats.
func expandSubsets(entries []Entry, ways []map[model.Amount][]int, c int, s model.Amount, bound, budget int) [][]Entry {
	if c == 0 {
		return [][]Entry{nil}
	}
	var out [][]Entry
	for _, i := range ways[c][s] {
		if i >= bound {
			break
		}
		for _, rest := range expandSubsets(entries, ways, c-1, s-entries[i].Amount.Abs(), i, budget-len(out)) {
			subset := make([]Entry, 0, len(rest)+1)
			subset = append(append(subset, rest...), entries[i])
			out = append(out, subset)
			if len(out) == budget {
				return out
			}
		}
	}
	return out
}
