package vtable

import (
	"context"
	"fmt"
	"log"

	"modernc.org/sqlite/vtab"
)

// module implements vtab.Module, a single instance is registered for the process.
// Module args carry the attachment id and table name, they are resolved to the attachment's
// factory on create. It is the only place where engine callbacks meet descriptors.
type module struct{}

// Create makes the table content and declares its schema, called on CREATE VIRTUAL TABLE.
// args are module name, schema, table name and the module arguments.
func (m *module) Create(vctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 5 {
		return nil, fmt.Errorf("module %s expects attachment id and table name, got %d args", ModuleName, len(args)-3)
	}
	id, name := unquoteArg(args[3]), unquoteArg(args[4])
	att, ok := lookupAttachment(id)
	if !ok {
		return nil, fmt.Errorf("attachment %s for table %s not found", id, name)
	}
	factory, ok := att.factories[name]
	if !ok {
		return nil, fmt.Errorf("table %s not attached to %s", name, id)
	}

	desc, err := factory()
	if err != nil {
		return nil, fmt.Errorf("can't make descriptor for %s: %w", name, err)
	}
	if desc == nil {
		return nil, fmt.Errorf("descriptor for %s: %w", name, ErrNoMemory)
	}
	if err = desc.Columns().Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema of %s: %w", name, err)
	}

	content := NewTableContent(name, desc, att.Diag)
	if err = vctx.Declare(content.Statement()); err != nil {
		return nil, fmt.Errorf("can't declare schema of %s: %w", name, err)
	}
	att.track(content)
	log.Printf("[DEBUG] virtual table %s created with %d columns", name, len(content.schema))
	return &table{ctx: att.ctx, content: content}, nil
}

// Connect mirrors Create, the content is never persisted so there is nothing to reconnect to
func (m *module) Connect(vctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Create(vctx, args)
}

// table implements vtab.Table on top of TableContent
type table struct {
	ctx     context.Context
	content *TableContent
}

// BestIndex passes usable constraints to the planner and reports argument positions back to the engine
func (t *table) BestIndex(info *vtab.IndexInfo) error {
	offers := make([]Offer, len(info.Constraints))
	for i, c := range info.Constraints {
		offers[i] = Offer{Column: c.Column, Op: opFromEngine(c.Op), Usable: c.Usable}
	}
	plan := t.content.BestIndex(offers)
	for i := range info.Constraints {
		info.Constraints[i].ArgIndex = plan.ArgIndex[i]
	}
	info.IdxNum = int64(len(plan.Set))
	info.IdxStr = plan.IdxStr
	info.EstimatedCost = plan.Cost
	return nil
}

// Open makes a new cursor over the table
func (t *table) Open() (vtab.Cursor, error) {
	if t.content == nil {
		return nil, fmt.Errorf("open cursor: %w", ErrNoMemory)
	}
	return NewCursor(t.ctx, t.content), nil
}

// Disconnect releases the content, called when the connection closes
func (t *table) Disconnect() error {
	t.content.release()
	return nil
}

// Destroy releases the content, called on DROP TABLE
func (t *table) Destroy() error {
	log.Printf("[DEBUG] virtual table %s destroyed", t.content.name)
	t.content.release()
	return nil
}

var engineOps = map[vtab.ConstraintOp]Op{
	vtab.OpEQ:        OpEQ,
	vtab.OpGT:        OpGT,
	vtab.OpLE:        OpLE,
	vtab.OpLT:        OpLT,
	vtab.OpGE:        OpGE,
	vtab.OpMATCH:     OpMATCH,
	vtab.OpNE:        OpNE,
	vtab.OpIS:        OpIS,
	vtab.OpISNOT:     OpISNOT,
	vtab.OpISNULL:    OpISNULL,
	vtab.OpISNOTNULL: OpISNOTNULL,
	vtab.OpLIKE:      OpLIKE,
	vtab.OpGLOB:      OpGLOB,
	vtab.OpREGEXP:    OpREGEXP,
	vtab.OpFUNCTION:  OpFUNCTION,
	vtab.OpLIMIT:     OpLIMIT,
	vtab.OpOFFSET:    OpOFFSET,
}

func opFromEngine(op vtab.ConstraintOp) Op {
	if res, ok := engineOps[op]; ok {
		return res
	}
	return OpUnknown
}
