package pipeline

import "context"

// Task is one ready-to-execute pipeline unit. Implementations are the nine
// asset pipelines in internal/pipeline/tasks. Execute must honor context
// cancellation at every suspension point (subprocess spawn/wait, file I/O,
// network fetch) and must write only under paths it declares, never
// reading back the staging directory.
type Task interface {
	// Kind identifies which asset pipeline this task implements, for
	// logging and error attribution.
	Kind() DescriptorKind
	// Descriptor returns the LinkDescriptor this task was planned from.
	Descriptor() *LinkDescriptor
	// Execute runs the task to completion or returns an error. The
	// context is cancelled if a sibling task fails or the build is
	// superseded by a new trigger.
	Execute(ctx context.Context, rc *RuntimeContext) (*PipelineOutput, error)
}

// TaskFactory constructs a Task from a descriptor, resolving whatever
// collaborators that task kind needs (tool resolver, minifier, hasher).
// One factory per DescriptorKind is registered with the Planner.
type TaskFactory func(d *LinkDescriptor) (Task, error)
