package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// RefreshResult is the outcome of one dataset refresh.
type RefreshResult struct {
	Fetched int
	Stored  int
	Skipped int
	Total   int
}

// DatasetRefreshWorkflow copies the upstream listing into the store, drops
// cached results and announces the new dataset. A failed cache invalidation
// only logs; the cached entries expire on their own.
func DatasetRefreshWorkflow(ctx workflow.Context) (RefreshResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting dataset refresh")

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 5 * time.Second,
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Fetch, normalise and store
	var sync SyncResult
	if err := workflow.ExecuteActivity(ctx, "SyncParkings").Get(ctx, &sync); err != nil {
		return RefreshResult{}, err
	}
	res := RefreshResult{Fetched: sync.Fetched, Stored: sync.Stored, Skipped: sync.Skipped}

	// Step 2: Count what the store now holds
	if err := workflow.ExecuteActivity(ctx, "CountParkings").Get(ctx, &res.Total); err != nil {
		return res, err
	}

	// Step 3: Drop stale cached results
	var dropped int
	if err := workflow.ExecuteActivity(ctx, "InvalidateCache").Get(ctx, &dropped); err != nil {
		logger.Warn("cache invalidation failed", "error", err)
	}

	// Step 4: Announce
	if err := workflow.ExecuteActivity(ctx, "PublishDatasetRefreshed", res.Total).Get(ctx, nil); err != nil {
		return res, err
	}

	logger.Info("Dataset refreshed", "stored", res.Stored, "total", res.Total, "cacheDropped", dropped)
	return res, nil
}
