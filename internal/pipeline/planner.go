package pipeline

import "fmt"

// Planner turns extracted LinkDescriptors into ready-to-run Tasks, by
// dispatching each descriptor's Kind to a registered TaskFactory. Grounded
// on the teacher's internal/pipeline/core factory/constructor registry,
// generalized from stage names to DescriptorKind.
type Planner struct {
	factories map[DescriptorKind]TaskFactory
}

// NewPlanner constructs an empty Planner; call Register for each kind the
// build needs to support before calling Plan.
func NewPlanner() *Planner {
	return &Planner{factories: make(map[DescriptorKind]TaskFactory)}
}

// Register binds a TaskFactory to a DescriptorKind, overwriting any prior
// registration for the same kind.
func (p *Planner) Register(kind DescriptorKind, factory TaskFactory) {
	p.factories[kind] = factory
}

// Plan validates and converts descriptors into Tasks in their original
// order. It enforces the rust+main uniqueness invariant across the whole
// set before constructing any task.
func (p *Planner) Plan(descriptors []*LinkDescriptor) ([]Task, error) {
	mainCount := 0
	for _, d := range descriptors {
		if d.Kind == KindRust && d.BinType == RustTypeMain {
			mainCount++
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	if mainCount > 1 {
		return nil, &DescriptorError{Reason: "multiple rust links declare type=main; only one is allowed per entry html"}
	}

	tasks := make([]Task, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Kind == KindPublicURLBase {
			// No pipeline task; handled entirely by the rewriter.
			continue
		}
		factory, ok := p.factories[d.Kind]
		if !ok {
			return nil, &DescriptorError{Anchor: d.Anchor, Reason: fmt.Sprintf("no task factory registered for kind %q", d.Kind)}
		}
		task, err := factory(d)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
