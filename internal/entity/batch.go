package entity

// Batch is a parsed batch link-list file: a set of playlist URLs sharing one
// output format.
type Batch struct {
	Title  string
	Format OutputFormat
	URLs   []string
}
