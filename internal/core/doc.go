// Package core provides the business logic for BOM extraction runs.
//
// It sits between the transports (web handlers, tests) and the packages that
// do the actual work: source decodes uploads into tables, bom turns tables
// into aggregated entries and store keeps a history of runs.
//
// # Processing an Upload
//
//	svc := core.NewService(core.Config{MaxConcurrent: 4}, runs)
//	out, err := svc.Process(ctx, core.Upload{
//	    FileName: "board.xlsx",
//	    Data:     data,
//	    Sheets:   []string{"Main", "Power"},
//	})
//
// Process holds a slot from the [UploadLimiter] for its whole duration. The
// selected worksheets are extracted concurrently, each with its own
// continuation state, and merged in sheet order before aggregation, so the
// combined BOM is the same as a sequential run.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a code prefix for support reference:
//
//   - HDR: header detection and empty results
//   - FILE: upload size, format and workbook problems
//   - UPL: concurrency limits, cancellation and timeouts
//   - RUN: run history lookups and exports
//   - DB, RATE: infrastructure
package core
