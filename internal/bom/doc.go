// Package bom turns loosely formatted tabular extracts into a canonical
// Bill of Materials.
//
// The package is independent of any file format or transport. Callers hand it
// a [Table] (rows of cell text) plus a [CancellationSet] and receive flat
// [ComponentRecord] values, which [Aggregate] groups into [Entry] values.
//
// # Pipeline
//
//  1. [DetectHeader] scans the first rows for the designator, part and
//     manufacturer columns.
//  2. [Interpret] walks the data rows with a private [ContinuationState],
//     expanding designator ranges via [ExpandDesignator] and resolving
//     continuation markers ("↑", "上↑", `"`).
//  3. [Aggregate] groups records by (part, manufacturer) and sorts each
//     group's designators in natural order.
//
// [Process] runs the pipeline over several tables, concatenating the flat
// records before the combined aggregation so that grouping crosses table
// boundaries.
//
// # Errors
//
// The only reportable failure is a missing header row, returned as a
// [*HeaderNotFoundError] that matches [ErrHeaderNotFound]. Malformed tokens,
// blank rows and short rows are absorbed silently.
package bom
