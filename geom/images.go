package geom

// imageOffsets is the order that offsets are visited along each axis. Zero
// comes first so that the identity image is always the first image vector.
var imageOffsets = [3]float64{0, -1, +1}

// ImageVectors returns the periodic translation vectors needed so that a
// sphere of radius rcut centered anywhere in the box (padded by ghost along
// its non-periodic axes) can see every periodic copy of a point in the box.
//
// Only periodic axes contribute offsets. The identity vector is always
// returned first and the order of the remaining vectors is fixed (z-major),
// so calling ImageVectors twice on the same box gives the same slice.
func ImageVectors(box Box, rcut, ghost float64) ([]Vec, error) {
	if err := box.Check(); err != nil { return nil, err }
	if err := box.CheckCutoff(rcut); err != nil { return nil, err }

	pad := box.Padded(ghost)
	a1, a2, a3 := pad.LatticeVectors()
	d := pad.PlaneDistance()

	// ns[i] holds the offsets along axis i whose translated cell [n, n+1]
	// overlaps the query region (-f, 1 + f), in fractional units.
	ns := [3][]float64{}
	for i := 0; i < 3; i++ {
		if !pad.periodic(i) {
			ns[i] = []float64{0}
			continue
		}
		f := rcut / d[i]
		for _, n := range imageOffsets {
			if n < 1+f && n+1 > -f {
				ns[i] = append(ns[i], n)
			}
		}
	}

	out := make([]Vec, 0, len(ns[0])*len(ns[1])*len(ns[2]))
	for _, k := range ns[2] {
		for _, j := range ns[1] {
			for _, i := range ns[0] {
				v := a1.Scale(i).Add(a2.Scale(j)).Add(a3.Scale(k))
				out = append(out, v)
			}
		}
	}

	return out, nil
}
