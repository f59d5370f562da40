// Package probability contiene las fuentes locales de probabilidades externas.
package probability

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// Static sirve una tabla fija, normalmente la sección probabilities del YAML.
type Static struct {
	table domain.ProbabilityTable
}

// NewStatic copia table; las entradas fuera de [0,1] se ignoran en Lookup.
func NewStatic(table map[string]float64) *Static {
	return &Static{table: domain.ProbabilityTable(nil).Merge(table)}
}

// Probabilities implementa ports.ProbabilitySource.
func (s *Static) Probabilities(_ context.Context, marketIDs []string) (domain.ProbabilityTable, error) {
	return pick(s.table, marketIDs), nil
}

// File relee un YAML market_id: p en cada ciclo, así las ediciones del
// operador se aplican sin reiniciar.
type File struct {
	path string
}

// NewFile crea una fuente sobre path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Probabilities implementa ports.ProbabilitySource. Un fichero ausente es una
// tabla vacía, no un error.
func (f *File) Probabilities(_ context.Context, marketIDs []string) (domain.ProbabilityTable, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return domain.ProbabilityTable{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("probability.File: %w", err)
	}
	var table domain.ProbabilityTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("probability.File: parse %s: %w", f.path, err)
	}
	return pick(table, marketIDs), nil
}

func pick(table domain.ProbabilityTable, marketIDs []string) domain.ProbabilityTable {
	out := make(domain.ProbabilityTable, len(marketIDs))
	for _, id := range marketIDs {
		if p, ok := table.Lookup(id); ok {
			out[id] = p
		}
	}
	return out
}
