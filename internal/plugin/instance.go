package plugin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/servicereport/internal/check"
	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
)

// Failure is a check operation that returned an error or panicked.
type Failure struct {
	Op  string
	Err error
}

// Instance is one plugin instantiated for a run. It owns its records;
// only its own checks and its paired repair plugin mutate them.
type Instance struct {
	def      Definition
	env      Env
	plugin   Plugin
	ops      []Op
	records  []*check.Record
	failures []Failure
	err      error
}

// NewInstance instantiates def. A factory error or panic is kept as the
// instance error rather than returned.
func NewInstance(def Definition, env Env) *Instance {
	inst := &Instance{def: def, env: env.WithPlugin(def.LogicalName())}
	inst.plugin, inst.err = inst.construct()
	if inst.err != nil {
		inst.env.Logger.Error("plugin setup failed", srerrors.FormatForLog(inst.err)...)
		return inst
	}
	inst.ops = inst.plugin.Checks()
	return inst
}

func (i *Instance) construct() (p Plugin, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = srerrors.PluginError(srerrors.ErrCodePluginSetup, i.def.Type,
				"plugin setup panicked", fmt.Errorf("%v", rec))
		}
	}()
	if i.def.New == nil {
		return nil, srerrors.PluginError(srerrors.ErrCodePluginDefinition, i.def.Type, "plugin has no factory", nil)
	}
	p, err = i.def.New(i.env)
	if err != nil {
		return nil, srerrors.PluginError(srerrors.ErrCodePluginSetup, i.def.Type, "plugin setup failed", err)
	}
	if p == nil {
		return nil, srerrors.PluginError(srerrors.ErrCodePluginSetup, i.def.Type, "plugin factory returned nil", nil)
	}
	return p, nil
}

// Name returns the logical plugin name.
func (i *Instance) Name() string { return i.def.LogicalName() }

// Type returns the definition type.
func (i *Instance) Type() string { return i.def.Type }

// Description returns the plugin description.
func (i *Instance) Description() string { return i.def.Description }

// Optional reports whether the plugin is optional.
func (i *Instance) Optional() bool { return i.def.Optional }

// Plugin returns the concrete plugin, nil after a setup failure.
func (i *Instance) Plugin() Plugin { return i.plugin }

// Env returns the plugin-tagged environment.
func (i *Instance) Env() Env { return i.env }

// Records returns the check records in the order they were produced.
func (i *Instance) Records() []*check.Record { return i.records }

// Record returns the record produced by op, or nil.
func (i *Instance) Record(op string) *check.Record {
	for _, r := range i.records {
		if r.Op == op {
			return r
		}
	}
	return nil
}

// RecordByName returns the record with the given display name, or nil.
func (i *Instance) RecordByName(name string) *check.Record {
	for _, r := range i.records {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Failures returns check operations that errored.
func (i *Instance) Failures() []Failure { return i.failures }

// Err returns the plugin-level failure, if any.
func (i *Instance) Err() error { return i.err }

// Passed is the AND over recorded statuses. Unknown is not a pass, a
// failed operation or setup forces false, and no records is a pass.
func (i *Instance) Passed() bool {
	return i.Status() == check.StatusPass
}

// Status is the tri-state aggregate used for reporting.
func (i *Instance) Status() check.Status {
	if i.err != nil || len(i.failures) > 0 {
		return check.StatusFail
	}
	statuses := make([]check.Status, 0, len(i.records))
	for _, r := range i.records {
		statuses = append(statuses, r.Status)
	}
	return check.All(statuses...)
}

// Validate runs every check operation in order. Each operation is
// isolated: an error or panic is logged and recorded as a failure with
// no record.
func (i *Instance) Validate(ctx context.Context) {
	if i.plugin == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			i.err = srerrors.PluginError(srerrors.ErrCodePluginSetup, i.def.Type,
				"plugin validation panicked", fmt.Errorf("%v", rec))
			i.env.Logger.Error("plugin validation aborted", srerrors.FormatForLog(i.err)...)
		}
	}()

	for _, op := range i.ops {
		rec, err := i.RunOp(ctx, op)
		if err != nil {
			i.failures = append(i.failures, Failure{Op: op.ID, Err: err})
			i.env.Logger.Error("check failed",
				slog.String("op", op.ID),
				slog.String("reason", err.Error()))
			continue
		}
		if rec == nil || rec.Name == "" {
			i.env.Logger.Debug("check not applicable", slog.String("op", op.ID))
			continue
		}
		rec.Op = op.ID
		i.records = append(i.records, rec)
		i.env.Logger.Debug("check done",
			slog.String("op", op.ID),
			slog.String("check", rec.Name),
			slog.String("status", rec.Status.String()))
	}
}

// RunOp invokes one operation, converting a panic into an error.
func (i *Instance) RunOp(ctx context.Context, op Op) (rec *check.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = srerrors.New(srerrors.ErrCodeCheckFailed, "check panicked", fmt.Errorf("%v", r)).
				WithDetail("op", op.ID)
		}
	}()
	if op.Run == nil {
		return nil, srerrors.New(srerrors.ErrCodeCheckFailed, "check has no body", nil).WithDetail("op", op.ID)
	}
	return op.Run(ctx)
}

// Recheck re-runs the operation that produced a record on this same
// instance and returns the fresh record without storing it.
func (i *Instance) Recheck(ctx context.Context, op string) (*check.Record, error) {
	for _, o := range i.ops {
		if o.ID == op {
			rec, err := i.RunOp(ctx, o)
			if err == nil && rec != nil {
				rec.Op = op
			}
			return rec, err
		}
	}
	return nil, srerrors.New(srerrors.ErrCodeCheckFailed, "no such check operation", nil).WithDetail("op", op)
}
