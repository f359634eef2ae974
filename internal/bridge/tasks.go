package bridge

import (
	"context"
	"strings"
	"time"

	"mailbridge/internal/automation"
	"mailbridge/internal/automation/filter"
)

type Tasks struct {
	b *Bridge
}

type TaskQuery struct {
	IncludeCompleted bool
	Limit            int
}

type TaskInput struct {
	Subject  string
	Body     string
	DueDate  *time.Time
	Priority Priority
}

// TaskPatch changes the non-nil fields. PercentComplete, Complete and Status
// are kept consistent with one another.
type TaskPatch struct {
	Subject         *string
	Body            *string
	DueDate         *time.Time
	Priority        *Priority
	Status          *TaskStatus
	PercentComplete *int
	Complete        *bool
}

func (t *Tasks) List(ctx context.Context, q TaskQuery) ([]Task, error) {
	const op = "list_tasks"
	b := t.b
	limit := clampLimit(q.Limit, b.opts.limits.Tasks)
	out := []Task{}
	err := b.conn.Do(ctx, op, func(s automation.Session) error {
		f, err := s.DefaultFolder(automation.FolderTasks)
		if err != nil {
			return err
		}
		defer f.Release()
		items, err := f.Items()
		if err != nil {
			return err
		}
		defer items.Release()
		view := items
		if !q.IncludeCompleted {
			if view, err = items.Restrict(filter.Cmp(automation.PropComplete, filter.Eq, false)); err != nil {
				return err
			}
			defer view.Release()
		}
		return view.ForEach(func(it automation.Item) error {
			defer it.Release()
			task, err := b.projectTask(it)
			if err != nil {
				return err
			}
			out = append(out, task)
			if len(out) >= limit {
				return automation.ErrStop
			}
			return nil
		})
	})
	return out, err
}

func (t *Tasks) Get(ctx context.Context, id string) (Task, error) {
	const op = "get_task"
	b := t.b
	var out Task
	err := b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := resolve(s, op, id, kindTask)
		if err != nil {
			return err
		}
		defer it.Release()
		out, err = b.projectTask(it)
		return err
	})
	return out, err
}

// projectTask reports Status and Priority as nil when the item lacks them.
func (b *Bridge) projectTask(it automation.Item) (Task, error) {
	r := &reader{it: it, loc: b.opts.loc}
	task := Task{
		EntryID:  r.str(automation.PropEntryID),
		Subject:  r.str(automation.PropSubject),
		Body:     r.str(automation.PropBody),
		DueDate:  r.timestamp(automation.PropDueDate),
		Complete: r.boolean(automation.PropComplete),
	}
	if code, ok := r.integer(automation.PropStatus); ok {
		task.Status = taskStatusOf(code)
	}
	if code, ok := r.integer(automation.PropImportance); ok {
		task.Priority = priorityOf(code)
	}
	task.PercentComplete, _ = r.integer(automation.PropPercentComplete)
	if r.err != nil {
		return Task{}, r.err
	}
	if task.DueDate != nil {
		d := task.DueDate
		midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, b.opts.loc)
		task.DueDate = &midnight
	}
	return task, nil
}

func (t *Tasks) Create(ctx context.Context, in TaskInput) (string, error) {
	const op = "create_task"
	if strings.TrimSpace(in.Subject) == "" {
		return "", invalid(op, "subject", "subject is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	importance, ok := priority.code()
	if !ok {
		return "", invalid(op, "priority", "unknown priority %q (want low, normal or high)", in.Priority)
	}
	var id string
	err := t.b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := s.CreateItem(automation.ItemTask)
		if err != nil {
			return err
		}
		defer it.Release()
		sets := []propSet{
			{automation.PropSubject, in.Subject},
			{automation.PropBody, in.Body},
			{automation.PropImportance, importance},
		}
		if in.DueDate != nil {
			sets = append(sets, propSet{automation.PropDueDate, t.dueDate(*in.DueDate)})
		}
		if err := applyProps(it, sets); err != nil {
			return err
		}
		if err := it.Save(); err != nil {
			return err
		}
		id, err = propString(it, automation.PropEntryID)
		return err
	})
	return id, err
}

// dueDate keeps only the calendar date, at midnight local time.
func (t *Tasks) dueDate(d time.Time) time.Time {
	loc := t.b.opts.loc
	d = d.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

func (t *Tasks) Update(ctx context.Context, id string, patch TaskPatch) error {
	return t.update(ctx, "edit_task", id, patch)
}

func (t *Tasks) update(ctx context.Context, op, id string, patch TaskPatch) error {
	sets, err := t.patchProps(op, patch)
	if err != nil {
		return err
	}
	return t.b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := resolve(s, op, id, kindTask)
		if err != nil {
			return err
		}
		defer it.Release()
		if err := applyProps(it, sets); err != nil {
			return err
		}
		return it.Save()
	})
}

// patchProps validates a patch and orders its writes so progress fields end
// up consistent: status first, then percent, then the completion flag.
func (t *Tasks) patchProps(op string, patch TaskPatch) ([]propSet, error) {
	var sets []propSet
	if patch.Subject != nil {
		sets = append(sets, propSet{automation.PropSubject, *patch.Subject})
	}
	if patch.Body != nil {
		sets = append(sets, propSet{automation.PropBody, *patch.Body})
	}
	if patch.DueDate != nil {
		sets = append(sets, propSet{automation.PropDueDate, t.dueDate(*patch.DueDate)})
	}
	if patch.Priority != nil {
		code, ok := patch.Priority.code()
		if !ok {
			return nil, invalid(op, "priority", "unknown priority %q (want low, normal or high)", *patch.Priority)
		}
		sets = append(sets, propSet{automation.PropImportance, code})
	}
	if patch.Status != nil {
		code, ok := patch.Status.code()
		if !ok {
			return nil, invalid(op, "status", "unknown status %q", *patch.Status)
		}
		sets = append(sets, propSet{automation.PropStatus, code})
		if patch.PercentComplete == nil && patch.Complete == nil {
			switch *patch.Status {
			case TaskComplete:
				sets = append(sets, propSet{automation.PropPercentComplete, 100}, propSet{automation.PropComplete, true})
			case TaskNotStarted:
				sets = append(sets, propSet{automation.PropPercentComplete, 0}, propSet{automation.PropComplete, false})
			default:
				sets = append(sets, propSet{automation.PropComplete, false})
			}
		}
	}
	if patch.PercentComplete != nil {
		p := *patch.PercentComplete
		if p < 0 || p > 100 {
			return nil, invalid(op, "percent_complete", "percent complete %d is outside 0..100", p)
		}
		status := automation.TaskInProgress
		switch p {
		case 100:
			status = automation.TaskComplete
		case 0:
			status = automation.TaskNotStarted
		}
		sets = append(sets,
			propSet{automation.PropPercentComplete, p},
			propSet{automation.PropStatus, status},
			propSet{automation.PropComplete, p == 100},
		)
	}
	if patch.Complete != nil {
		pct, status := 0, automation.TaskNotStarted
		if *patch.Complete {
			pct, status = 100, automation.TaskComplete
		}
		sets = append(sets,
			propSet{automation.PropComplete, *patch.Complete},
			propSet{automation.PropPercentComplete, pct},
			propSet{automation.PropStatus, status},
		)
	}
	if len(sets) == 0 {
		return nil, invalid(op, "patch", "nothing to update")
	}
	return sets, nil
}

func (s TaskStatus) code() (int, bool) {
	switch s {
	case TaskNotStarted:
		return automation.TaskNotStarted, true
	case TaskInProgress:
		return automation.TaskInProgress, true
	case TaskComplete:
		return automation.TaskComplete, true
	}
	return 0, false
}

// ParseTaskStatus accepts NotStarted, InProgress or Complete in any case, with
// or without separators.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	norm := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "notstarted":
		return TaskNotStarted, true
	case "inprogress":
		return TaskInProgress, true
	case "complete", "completed", "done":
		return TaskComplete, true
	}
	return "", false
}

func (t *Tasks) Complete(ctx context.Context, id string) error {
	done := true
	return t.update(ctx, "complete_task", id, TaskPatch{Complete: &done})
}

func (t *Tasks) Delete(ctx context.Context, id string) error {
	const op = "delete_task"
	return t.b.conn.Do(ctx, op, func(s automation.Session) error {
		it, err := resolve(s, op, id, kindTask)
		if err != nil {
			return err
		}
		defer it.Release()
		return it.Delete()
	})
}
