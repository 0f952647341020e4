package text

type Op byte

const (
	OpEqual  Op = ' '
	OpInsert Op = '+'
	OpDelete Op = '-'
)

type Edit struct {
	Op   Op
	Line string
}

type DiffResult struct {
	Diff       []byte
	Edits      []Edit
	DiffAmount float64
}

type Differ interface {
	Calculate(baseline []byte, target []byte) (*DiffResult, error)
}
