// Package conversation coordinates the confirm/modify dialogue that turns a
// free-text request into an execution-ready (module, params) pair.
//
// # State machine
//
// Each (chatroom, user) pair owns one persisted session record moving
// through four states:
//
//	initial -> parameter_confirmation -> execution_ready
//	                 ^        |
//	                 |        v
//	          parameter_modification
//
// A turn in initial extracts a tentative module and parameter set and asks
// for confirmation. In parameter_confirmation an approval keyword moves to
// execution_ready; a rejection keyword moves to parameter_modification and
// bumps the attempt counter (more than three rejections aborts the dialogue
// back to initial); anything else re-asks. In parameter_modification the
// message is merged into the pending parameters and confirmation is asked
// again.
//
// # Concurrency
//
// Manager.HandleTurn runs load -> transition -> save, where the save is
// gated on the version read at load time. Overlapping turns for the same
// key cannot clobber each other: the second save fails with
// store.ErrVersionConflict and the turn is reported as failed. The manager
// never retries internally - a blind retry could double-apply a
// modification merge - so resubmission is the caller's decision.
//
// # Collaborators
//
// ParamExtractor supplies extraction and merge; the KeywordExtractor
// default routes through the query classifier. Actual module execution
// happens outside this package once a turn reports Ready, after which the
// executor calls CompleteExecution to record the run and reset the session.
package conversation
