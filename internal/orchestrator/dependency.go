package orchestrator

import "github.com/mhostetler/wreckit/internal/model"

// InferLinearChain sets campaign = milestoneID on each item and chains
// depends_on so objective k depends on k-1 within the milestone (spec
// §4.6.4). It is a write-once operation performed at creation time;
// callers must not invoke this again once an item's depends_on has been
// set by any other path.
func InferLinearChain(items []*model.Item, milestoneID string) {
	for i, it := range items {
		it.Campaign = milestoneID
		if i == 0 {
			continue
		}
		it.DependsOn = []string{items[i-1].ID}
	}
}
