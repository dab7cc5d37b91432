package bench

import (
	"fmt"

	"github.com/najoast/relaybench/config"
)

// Case is one cell of the benchmark matrix.
type Case struct {
	Engine string
	Length int
	Size   int
}

// Name renders the case as "<engine> <length>/<size>".
func (c Case) Name() string {
	return fmt.Sprintf("%s %d/%d", c.Engine, c.Length, c.Size)
}

// Matrix enumerates engines x chain lengths x message sizes, in that order
// of nesting.
func Matrix(cfg config.BenchConfig) []Case {
	cases := make([]Case, 0, len(cfg.Engines)*len(cfg.ChainLengths)*len(cfg.MessageSizes))
	for _, engine := range cfg.Engines {
		for _, length := range cfg.ChainLengths {
			for _, size := range cfg.MessageSizes {
				cases = append(cases, Case{Engine: engine, Length: length, Size: size})
			}
		}
	}
	return cases
}
