/*
Package domain contains the core models of the storage hierarchy and of the
sample workflow definitions it is wired into. It is kept free of I/O and
persistence, following the ports and adapters layout of the rest of the module.

# Key Entities

  - Item: a node of the storage tree tagged by Kind (facility, container, samplesContainer).
    Containers expose a fixed Rows x Columns grid of child slots.
  - Definition: a workflow state machine (States, Transitions, Guards, permission roles).
  - WorkflowPatch: a typed, validated description of states and transitions to merge into a Definition.
  - Sample: a sample record whose review state follows a Definition and which occupies a slot of a box.
*/
package domain
