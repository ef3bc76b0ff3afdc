// Package orchestrator coordinates the exchange with the completion
// service and dispatches tool calls.
//
// Invariants:
//   - the log is append-only: a round never removes or reorders items;
//   - every tool call is answered by exactly one result with its call_id
//     before the next request is sent.
//
// Flow per user message:
//
//	user(text) -> [reasoning, (tool_call, tool_result)...]* -> assistant(text)
//
// Each round is one blocking request; tool calls resolve one at a time in
// the order the service returned them.
package orchestrator
