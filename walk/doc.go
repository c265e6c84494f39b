// Package walk is the public entry point to the folder indexer.
//
// It walks a folder tree concurrently in rounds and returns one PathRecord
// per file and folder below the root:
//
//	records, err := walk.Walk(ctx, "/data", walk.Options{CollectMetadata: true})
//
// Progress can be reported once per round:
//
//	opts := walk.NewOptions()
//	opts.Progress = walk.LoggingProgress(logger)
//	records, err := walk.Walk(ctx, "/data", opts)
//
// Watch keeps calling a handler with debounced batches of changed paths:
//
//	err := walk.Watch(ctx, "/data", walk.WatchOptions{}, func(ctx context.Context, changed []string) error {
//		fmt.Println(len(changed), "paths changed")
//		return nil
//	})
package walk
