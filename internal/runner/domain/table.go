package domain

// Role names one of the two logical databases a job talks to
type Role string

const (
	RoleSource Role = "SOURCE"
	RoleTarget Role = "TARGET"
)

// Column is one entry of a table descriptor as reported by the catalog
type Column struct {
	Name     string
	DataType string
	Length   int64
}

// TableDescriptor is the ordered column list of a table
type TableDescriptor struct {
	Name    string
	Columns []Column
}

// ColumnNames returns the column names in declaration order
func (d TableDescriptor) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// SemanticType is the type inferred for a column of a tabular file
type SemanticType string

const (
	TypeNumber    SemanticType = "NUMBER"
	TypeFloat     SemanticType = "FLOAT"
	TypeBoolean   SemanticType = "BOOLEAN"
	TypeTimestamp SemanticType = "TIMESTAMP"
	TypeText      SemanticType = "TEXT"
)

// TextColumnLength bounds inferred character columns
const TextColumnLength = 200
