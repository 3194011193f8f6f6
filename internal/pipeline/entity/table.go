package entity

// Table is an in-memory CSV document: a header row followed by data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Width is the number of columns declared by the header.
func (t Table) Width() int {
	return len(t.Header)
}
