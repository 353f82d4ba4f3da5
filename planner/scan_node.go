package planner

import (
	"fmt"
	"slices"

	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/expression"
)

// UnboundRelation is a table reference as written in the query. The binder
// replaces it with a LogicalScan.
type UnboundRelation struct {
	NameParts []string
}

func NewUnboundRelation(nameParts ...string) *UnboundRelation {
	common.Assert(len(nameParts) > 0, "relation without a name")
	return &UnboundRelation{NameParts: slices.Clone(nameParts)}
}

func (o *UnboundRelation) Type() OperatorType {
	return UnboundRelationOp
}

func (o *UnboundRelation) Expressions() []expression.Expression {
	return nil
}

func (o *UnboundRelation) ComputeLeafOutputs(*LogicalProperties) ([]*expression.SlotReference, error) {
	return nil, common.NewError(common.BindingStateError, "output of unbound relation %s", expression.QualifiedName(o.NameParts...))
}

func (o *UnboundRelation) Equal(other Operator) bool {
	x, ok := other.(*UnboundRelation)
	return ok && slices.Equal(o.NameParts, x.NameParts)
}

func (o *UnboundRelation) String() string {
	return fmt.Sprintf("UnboundRelation(%s)", expression.QualifiedName(o.NameParts...))
}

// LogicalScan reads every row of a table. Qualifier is the path the table was
// resolved under, e.g. [db, table].
type LogicalScan struct {
	TableOid  common.ObjectID
	Qualifier []string
	Columns   []*expression.SlotReference
}

func NewLogicalScan(tableOid common.ObjectID, qualifier []string, columns []*expression.SlotReference) *LogicalScan {
	return &LogicalScan{
		TableOid:  tableOid,
		Qualifier: slices.Clone(qualifier),
		Columns:   slices.Clone(columns),
	}
}

func (o *LogicalScan) Type() OperatorType {
	return LogicalScanOp
}

func (o *LogicalScan) Expressions() []expression.Expression {
	return nil
}

func (o *LogicalScan) ComputeLeafOutputs(*LogicalProperties) ([]*expression.SlotReference, error) {
	return o.Columns, nil
}

func (o *LogicalScan) Equal(other Operator) bool {
	x, ok := other.(*LogicalScan)
	return ok && scanEqual(o.TableOid, o.Qualifier, o.Columns, x.TableOid, x.Qualifier, x.Columns)
}

func (o *LogicalScan) String() string {
	return fmt.Sprintf("LogicalScan(%s, oid=%d, %s)", expression.QualifiedName(o.Qualifier...), o.TableOid, formatList(o.Columns))
}

// PhysicalSeqScan reads a table sequentially.
type PhysicalSeqScan struct {
	TableOid  common.ObjectID
	Qualifier []string
	Columns   []*expression.SlotReference
}

func NewPhysicalSeqScan(scan *LogicalScan) *PhysicalSeqScan {
	return &PhysicalSeqScan{TableOid: scan.TableOid, Qualifier: scan.Qualifier, Columns: scan.Columns}
}

func (o *PhysicalSeqScan) Type() OperatorType {
	return PhysicalSeqScanOp
}

func (o *PhysicalSeqScan) Expressions() []expression.Expression {
	return nil
}

func (o *PhysicalSeqScan) ComputeLeafOutputs(props *LogicalProperties) ([]*expression.SlotReference, error) {
	return ownProperties(o, props)
}

func (o *PhysicalSeqScan) ToTreeNode(ge GroupExpressionRef) (*Plan, error) {
	return NewSkeleton(o, ge)
}

func (o *PhysicalSeqScan) ProvidedOrdering() Ordering {
	return nil
}

func (o *PhysicalSeqScan) Equal(other Operator) bool {
	x, ok := other.(*PhysicalSeqScan)
	return ok && scanEqual(o.TableOid, o.Qualifier, o.Columns, x.TableOid, x.Qualifier, x.Columns)
}

func (o *PhysicalSeqScan) String() string {
	return fmt.Sprintf("SeqScan(%s, oid=%d, %s)", expression.QualifiedName(o.Qualifier...), o.TableOid, formatList(o.Columns))
}

func scanEqual(aOid common.ObjectID, aQual []string, aCols []*expression.SlotReference,
	bOid common.ObjectID, bQual []string, bCols []*expression.SlotReference) bool {
	return aOid == bOid && slices.Equal(aQual, bQual) && expression.EqualLists(aCols, bCols)
}
