package parser

import (
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Pool recycles tree-sitter parser instances so watch-mode rescans avoid the
// per-parse cost of sitter.NewParser / Close. Safe for concurrent use.
type Pool struct {
	pool sync.Pool
}

func NewPool() *Pool {
	p := &Pool{}
	p.pool = sync.Pool{
		New: func() any {
			sp := sitter.NewParser()
			sp.SetLanguage(pythonLanguage)
			return sp
		},
	}
	return p
}

// Get returns a parser already configured for Python.
func (p *Pool) Get() *sitter.Parser {
	return p.pool.Get().(*sitter.Parser)
}

func (p *Pool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	p.pool.Put(sp)
}

var defaultPool = NewPool()
