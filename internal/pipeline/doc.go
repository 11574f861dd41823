// Package pipeline runs the analysis of one site as an ordered list of steps.
//
// A full analysis looks up the cache, locates the policy, crawls it,
// cleans the aggregated text, summarizes it and stores the result. Each
// stage is a Step that receives the current model.Analysis and can modify
// it. A step that reaches an outcome (cached, not found, empty) sets a
// terminal status and the remaining steps are skipped.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. The CLI, the server and the refresh job need different step lists
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context between steps
//
// BatchProcessor analyzes many sites concurrently with errgroup.
package pipeline
