/*
Package workflow merges patches into workflow definitions and fires
transitions against them.

# Patching

Patcher.Apply is an additive, idempotent merge: missing states and
transitions are created, state permissions may be copied from another state
and then overridden, and transitions listed on a state are either replaced or
merged depending on preserve_transitions. Applying the same patch twice yields
the same definition as applying it once.

Patch documents are YAML files decoded strictly (unknown keys are rejected):

	workflows:
	  sample_workflow:
	    states:
	      stored:
	        transitions: [recover]
	        permissions_copy_from: sample_received
	        permissions: {Publish: []}
	    transitions:
	      recover: {title: Recover, new_state: sample_received}

# Engine

Engine.Fire checks that a transition leaves the current state and that its
guard admits the actor, returning the new state id.
*/
package workflow
