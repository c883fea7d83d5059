// ABOUTME: Package documentation for the dataset executor and generators
// ABOUTME: Explains the result envelope and the sample data contract

// Package dataset executes confirmed analysis modules and produces their
// result payloads.
//
// The Executor is the single entry point: Execute takes a module name (as
// resolved by the conversation coordinator) plus the confirmed parameters and
// returns a Result envelope. RealData inside the envelope holds the full
// dataset for the renderer; callers persisting chat history strip it first
// because it can be large and is reproducible.
//
// Generators produce sample datasets whose shapes match what the chart layer
// consumes: per-parameter box series with USL/TGT/LSL/UCL/LCL control limits,
// site-level point walks, dual lot-hold/PE-confirm tables (with deterministic
// empty-table scenarios), criteria-grouped inline boxplots, and document
// retrieval hits. Values are randomized within realistic ranges; column names
// and limits are fixed.
package dataset
