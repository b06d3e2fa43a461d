package gateway

import (
	"fmt"

	"github.com/dmitrijs2005/carledger/internal/client/local"
	"github.com/dmitrijs2005/carledger/internal/client/remote"
	"github.com/dmitrijs2005/carledger/internal/logging"
)

// Set holds one Gateway per table of the registry's schema.
type Set struct {
	byName map[string]*Gateway
	names  []string
}

func NewSet(reg *local.Registry, rs remote.Store, logger logging.Logger, opts ...Option) *Set {
	s := &Set{byName: make(map[string]*Gateway)}
	for _, spec := range reg.Schema() {
		s.byName[spec.Name] = New(reg.Table(spec.Name), rs, logger, opts...)
		s.names = append(s.names, spec.Name)
	}
	return s
}

func (s *Set) Get(table string) (*Gateway, error) {
	g, ok := s.byName[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return g, nil
}

func (s *Set) Tables() []string {
	return append([]string(nil), s.names...)
}
