// Package sampler selects the dataset handle population: extraction of
// rated participants per contest and stratified sampling by rating.
package sampler

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/probsolve/cfdataset/internal/codeforces"
	"github.com/probsolve/cfdataset/internal/logger"
	"github.com/probsolve/cfdataset/internal/models"
)

// Fetcher is the API surface the sampler needs.
type Fetcher interface {
	RatedUsersByContest(ctx context.Context, contestID int) ([]codeforces.RatedUser, error)
}

// ExtractHandles collects the deduplicated rated participants of the
// given contests, with each user's maximum rating. Contests whose
// fetch fails are skipped and returned for inspection.
func ExtractHandles(ctx context.Context, fetcher Fetcher, contestIDs []int) ([]models.Handle, []int, error) {
	var handles []models.Handle
	var skipped []int
	seen := make(map[string]bool)

	for _, cid := range contestIDs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		users, err := fetcher.RatedUsersByContest(ctx, cid)
		if err != nil {
			logger.Warn("Contest %d skipped: %v", cid, err)
			skipped = append(skipped, cid)
			continue
		}
		for _, u := range users {
			if seen[u.Handle] {
				continue
			}
			seen[u.Handle] = true
			handles = append(handles, models.Handle{Handle: u.Handle, MaxRating: u.MaxRating})
		}
	}
	logger.Info("Extracted %d handles (%d contests skipped)", len(handles), len(skipped))
	return handles, skipped, nil
}

// Bucket is one rating stratum of the sampled population.
type Bucket struct {
	Name string
	Lo   int
	Hi   int
}

// DefaultBuckets returns the rating strata used for sampling.
func DefaultBuckets() []Bucket {
	return []Bucket{
		{"newbie", 0, 1199},
		{"pupil", 1200, 1399},
		{"specialist", 1400, 1599},
		{"expert", 1600, 1899},
		{"candidate_master", 1900, 2099},
		{"master_plus", 2100, 5000},
	}
}

type bucketInfo struct {
	name   string
	pool   []models.Handle
	target int
}

// StratifiedSample draws up to totalTarget handles, split evenly across
// buckets. Budget a bucket cannot fill is redistributed to buckets with
// spare pool, proportionally to their spare capacity.
func StratifiedSample(pool []models.Handle, buckets []Bucket, totalTarget int, seed int64) []models.Handle {
	if len(buckets) == 0 || totalTarget < 1 {
		return nil
	}
	perBucket := totalTarget / len(buckets)
	infos := make([]*bucketInfo, 0, len(buckets))
	remaining := totalTarget

	for _, b := range buckets {
		var sub []models.Handle
		for _, h := range pool {
			if h.MaxRating >= b.Lo && h.MaxRating <= b.Hi {
				sub = append(sub, h)
			}
		}
		target := perBucket
		if target > len(sub) {
			target = len(sub)
		}
		infos = append(infos, &bucketInfo{name: b.Name, pool: sub, target: target})
		remaining -= target
	}

	// Spread the unfilled budget across buckets with spare handles,
	// proportionally to how much spare each has.
	totalSpare := 0
	for _, bi := range infos {
		totalSpare += len(bi.pool) - bi.target
	}
	if totalSpare > 0 {
		for _, bi := range infos {
			spare := len(bi.pool) - bi.target
			if spare <= 0 {
				continue
			}
			extra := int(math.Floor(float64(spare) / float64(totalSpare) * float64(remaining)))
			if extra > spare {
				extra = spare
			}
			bi.target += extra
		}
	}

	// Rounding can leave a residue; hand it to the largest spares first.
	got := 0
	for _, bi := range infos {
		got += bi.target
	}
	if diff := totalTarget - got; diff > 0 {
		order := make([]*bucketInfo, len(infos))
		copy(order, infos)
		sort.Slice(order, func(i, j int) bool {
			return len(order[i].pool)-order[i].target > len(order[j].pool)-order[j].target
		})
		for _, bi := range order {
			if diff == 0 {
				break
			}
			give := len(bi.pool) - bi.target
			if give > diff {
				give = diff
			}
			if give > 0 {
				bi.target += give
				diff -= give
			}
		}
	}

	rnd := rand.New(rand.NewSource(seed))
	var sampled []models.Handle
	for _, bi := range infos {
		rnd.Shuffle(len(bi.pool), func(i, j int) {
			bi.pool[i], bi.pool[j] = bi.pool[j], bi.pool[i]
		})
		sampled = append(sampled, bi.pool[:bi.target]...)
		logger.Info("Bucket %s: sampled %d of %d", bi.name, bi.target, len(bi.pool))
	}
	logger.Info("Sampled %d handles (target %d)", len(sampled), totalTarget)
	return sampled
}
