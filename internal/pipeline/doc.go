// Package pipeline sequences the research and drafting steps.
//
// An Orchestrator owns no per-query state: every Run creates a fresh
// WorkflowState, drives it through Created → Researching → Drafting → Done,
// and returns the answer. Steps contribute partial updates that are merged
// into the state by explicit reducers (MergeResearch, SetAnswer).
package pipeline
