/*package io reads particle and bond tables, writes newly formed bonds, and
reads [DynamicBonds] config files.
*/
package io

import (
	"fmt"
	"math"
	"path"

	"github.com/phil-mansfield/table"

	"github.com/phil-mansfield/dynbond/bond"
	"github.com/phil-mansfield/dynbond/geom"
)

// Particles is the contents of a particle table.
type Particles struct {
	Tags []bond.Tag
	Pos []geom.Vec
	Types []uint32
}

// ReadParticles reads a whitespace-separated particle table with the columns
// tag, x, y, z and type.
func ReadParticles(file string) (*Particles, error) {
	cols, err := table.ReadTable(file, []int{0, 1, 2, 3, 4}, nil)
	if err != nil { return nil, err }

	ids, xs, ys, zs, types := cols[0], cols[1], cols[2], cols[3], cols[4]
	p := &Particles{
		Tags: make([]bond.Tag, len(ids)),
		Pos: make([]geom.Vec, len(ids)),
		Types: make([]uint32, len(ids)),
	}

	for i := range ids {
		tag, ok := toUint32(ids[i])
		if !ok {
			return nil, fmt.Errorf(
				"Line %d of %s has tag %g, which is not a valid tag.",
				i, file, ids[i],
			)
		}
		typ, ok := toUint32(types[i])
		if !ok {
			return nil, fmt.Errorf(
				"Line %d of %s has type %g, which is not a valid type.",
				i, file, types[i],
			)
		}
		p.Tags[i], p.Types[i] = bond.Tag(tag), typ
		p.Pos[i] = geom.Vec{xs[i], ys[i], zs[i]}
	}

	return p, nil
}

// ReadBonds reads a whitespace-separated bond table with the columns tag1,
// tag2 and type. Files ending in .bin are read in the binary bond format.
func ReadBonds(file string) ([]bond.Bond, error) {
	if path.Ext(file) == binaryExt { return ReadBinaryBondsFile(file) }

	cols, err := table.ReadTable(file, []int{0, 1, 2}, nil)
	if err != nil { return nil, err }

	bonds := make([]bond.Bond, len(cols[0]))
	for i := range bonds {
		a, okA := toUint32(cols[0][i])
		b, okB := toUint32(cols[1][i])
		typ, okT := toUint32(cols[2][i])
		if !okA || !okB || !okT {
			return nil, fmt.Errorf(
				"Line %d of %s, (%g %g %g), is not a valid bond.",
				i, file, cols[0][i], cols[1][i], cols[2][i],
			)
		}
		bonds[i] = bond.Bond{A: bond.Tag(a), B: bond.Tag(b), Type: typ}
	}

	return bonds, nil
}

func toUint32(x float64) (uint32, bool) {
	if x < 0 || x > math.MaxUint32 || x != math.Floor(x) { return 0, false }
	return uint32(x), true
}
