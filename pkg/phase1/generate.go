// Package phase1 implements the candidate group generator: geographic
// clustering of tasks into small co-visitable bundles.
package phase1

import (
	"context"
	"sort"

	"cleanopt/internal/config"
	"cleanopt/pkg/domain"
	"cleanopt/pkg/events"
	"cleanopt/pkg/geo"
	"cleanopt/pkg/scoring"
)

// Generate buckets tasks by zone and, for every task as a seed, builds
// candidate groups of 2-4 co-visitable tasks (falling back to a singleton
// when no neighbor is found within either radius). Groups are deduplicated
// by canonical key, scored, sorted by score descending, and truncated to
// params.MaxGroupsTotal.
func Generate(ctx context.Context, tasks []domain.Task, params config.Phase1Params, sink events.Sink) ([]domain.CandidateGroup, error) {
	schedulable := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Schedulable() {
			schedulable = append(schedulable, t)
		}
	}
	if len(schedulable) == 0 {
		return nil, nil
	}

	zoneOf := make(map[int]domain.Zone, len(schedulable))
	byZone := make(map[domain.Zone][]domain.Task)
	byID := make(map[int]domain.Task, len(schedulable))
	for _, t := range schedulable {
		byID[t.ID] = t
		z, ok := geo.ZoneOf(t.Coordinates)
		if !ok {
			z = domain.ZoneUnmapped
		}
		zoneOf[t.ID] = z
		byZone[z] = append(byZone[z], t)
	}

	perSeed := events.NewPerKeySink()
	groupsBySeed := make([][]domain.CandidateGroup, len(schedulable))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	forEachSeed(len(schedulable), func(i int) {
		seed := schedulable[i]
		seedSink := perSeed.For(seed.ID)
		groupsBySeed[i] = groupsForSeed(seed, zoneOf, byZone, byID, params, seedSink)
	})

	perSeed.Merge(sink)

	dedup := make(map[string]domain.CandidateGroup)
	for _, groups := range groupsBySeed {
		for _, g := range groups {
			if existing, ok := dedup[g.CanonicalKey()]; !ok || g.Score > existing.Score {
				dedup[g.CanonicalKey()] = g
			}
		}
	}

	result := make([]domain.CandidateGroup, 0, len(dedup))
	for _, g := range dedup {
		result = append(result, g)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].CanonicalKey() < result[j].CanonicalKey()
	})

	if len(result) > params.MaxGroupsTotal {
		result = result[:params.MaxGroupsTotal]
	}

	return result, nil
}

// groupsForSeed generates every candidate group rooted at a single seed task.
func groupsForSeed(
	seed domain.Task,
	zoneOf map[int]domain.Zone,
	byZone map[domain.Zone][]domain.Task,
	byID map[int]domain.Task,
	params config.Phase1Params,
	sink events.Sink,
) []domain.CandidateGroup {
	seedZone := zoneOf[seed.ID]

	pool := pooledTasks(seed, seedZone, byZone, params.UseAdjacentZones)

	ranked, _ := rankedNeighbors(seed, pool, params.NearbySeedMaxMin, params.NeighborLimit)
	widenedConsulted := false
	if len(ranked) == 0 {
		var poolNonEmpty bool
		ranked, poolNonEmpty = rankedNeighbors(seed, pool, params.FallbackSeedMaxMin, params.NeighborLimit)
		widenedConsulted = poolNonEmpty
	}

	if widenedConsulted {
		sink.Emit(domain.NewDecisionEvent("", domain.Phase1, domain.EventPhase1UsedFallback20).
			With("seed_id", seed.ID))
	}

	if len(ranked) == 0 {
		single := singletonGroup(seed, seedZone)
		sink.Emit(domain.NewDecisionEvent("", domain.Phase1, domain.EventPhase1GroupSingleCreated).
			With("seed_id", seed.ID).With("task_ids", single.TaskIDs))
		return []domain.CandidateGroup{single}
	}

	groups := buildGroups(seed, seedZone, ranked, zoneOf, byID, params)
	for _, g := range groups {
		sink.Emit(domain.NewDecisionEvent("", domain.Phase1, domain.EventPhase1GroupCandidate).
			With("seed_id", seed.ID).With("task_ids", g.TaskIDs).With("score", g.Score))
	}
	return groups
}

func pooledTasks(seed domain.Task, seedZone domain.Zone, byZone map[domain.Zone][]domain.Task, useAdjacent bool) []domain.Task {
	seen := make(map[int]bool)
	var pool []domain.Task

	add := func(tasks []domain.Task) {
		for _, t := range tasks {
			if t.ID == seed.ID || seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			pool = append(pool, t)
		}
	}

	add(byZone[seedZone])
	if useAdjacent && seedZone != domain.ZoneUnmapped {
		for _, z := range geo.AdjacentZones(seedZone) {
			add(byZone[z])
		}
	}
	return pool
}

type rankedNeighbor struct {
	task   domain.Task
	travel int
}

// rankedNeighbors computes travel-to-seed for every pool task, keeps those
// within maxMin, sorts ascending by travel (ties broken by task ID for
// determinism), and truncates to neighborLimit. The second return value
// reports whether the pool was non-empty (i.e. whether this radius was
// actually consulted), used to decide whether to report the fallback event
// when escalating.
func rankedNeighbors(seed domain.Task, pool []domain.Task, maxMin, neighborLimit int) ([]rankedNeighbor, bool) {
	var within []rankedNeighbor
	for _, t := range pool {
		travel := geo.EstimateTravelMinutes(seed.Coordinates, t.Coordinates)
		if travel <= maxMin {
			within = append(within, rankedNeighbor{task: t, travel: travel})
		}
	}

	sort.Slice(within, func(i, j int) bool {
		if within[i].travel != within[j].travel {
			return within[i].travel < within[j].travel
		}
		return within[i].task.ID < within[j].task.ID
	})

	if len(within) > neighborLimit {
		within = within[:neighborLimit]
	}

	return within, len(pool) > 0
}

func singletonGroup(seed domain.Task, zone domain.Zone) domain.CandidateGroup {
	score := scoring.GroupScore(0, 0, true)
	return domain.CandidateGroup{
		TaskIDs:      []int{seed.ID},
		SeedID:       seed.ID,
		Zone:         zone,
		AvgTravelMin: 0,
		MaxTravelMin: 0,
		Score:        score,
		IsSingle:     true,
	}
}

// buildGroups enumerates every pair, every triple, and a quadruple per
// triple when the fourth element is close enough to at least one existing
// member.
func buildGroups(
	seed domain.Task,
	seedZone domain.Zone,
	ranked []rankedNeighbor,
	zoneOf map[int]domain.Zone,
	byID map[int]domain.Task,
	params config.Phase1Params,
) []domain.CandidateGroup {
	var groups []domain.CandidateGroup

	makeGroup := func(ids []int) domain.CandidateGroup {
		sort.Ints(ids)
		return scoreGroup(ids, seed.ID, seedZone, zoneOf, byID)
	}

	for i := range ranked {
		a := ranked[i].task
		groups = append(groups, makeGroup([]int{seed.ID, a.ID}))

		if params.MaxApts < 3 {
			continue
		}
		for j := i + 1; j < len(ranked); j++ {
			b := ranked[j].task
			triple := []int{seed.ID, a.ID, b.ID}
			groups = append(groups, makeGroup(triple))

			// A fourth apartment is permitted as the documented exception to
			// MaxApts whenever its travel to the closest existing member is
			// within AllowFourthIfTravelLEMin; any MaxApts of 3 or more
			// admits it.
			for k := j + 1; k < len(ranked); k++ {
				c := ranked[k].task
				if minTravelToGroup(c, triple, byID) <= params.AllowFourthIfTravelLEMin {
					groups = append(groups, makeGroup([]int{seed.ID, a.ID, b.ID, c.ID}))
				}
			}
		}
	}

	return groups
}

func minTravelToGroup(candidate domain.Task, memberIDs []int, byID map[int]domain.Task) int {
	best := -1
	for _, id := range memberIDs {
		m := byID[id]
		t := geo.EstimateTravelMinutes(candidate.Coordinates, m.Coordinates)
		if best == -1 || t < best {
			best = t
		}
	}
	return best
}

func scoreGroup(ids []int, seedID int, seedZone domain.Zone, zoneOf map[int]domain.Zone, byID map[int]domain.Task) domain.CandidateGroup {
	var sum, maxTravel int
	var pairs int
	sameZone := true

	for i := 0; i < len(ids); i++ {
		if zoneOf[ids[i]] != seedZone {
			sameZone = false
		}
		for j := i + 1; j < len(ids); j++ {
			a, b := byID[ids[i]], byID[ids[j]]
			travel := geo.EstimateTravelMinutes(a.Coordinates, b.Coordinates)
			sum += travel
			pairs++
			if travel > maxTravel {
				maxTravel = travel
			}
		}
	}

	avg := 0.0
	if pairs > 0 {
		avg = scoring.Round1(float64(sum) / float64(pairs))
	}

	return domain.CandidateGroup{
		TaskIDs:      ids,
		SeedID:       seedID,
		Zone:         seedZone,
		AvgTravelMin: avg,
		MaxTravelMin: maxTravel,
		Score:        scoring.GroupScore(avg, maxTravel, sameZone),
		IsSingle:     false,
	}
}
