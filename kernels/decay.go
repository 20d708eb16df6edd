package kernels

import (
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/pthm-cable/slime/gpu/soft"
)

// decayProgram is the software version of glsl/decay.comp.
//
// The GLSL kernel updates the image in place, so neighbours may already be
// decayed when read. Here the image is snapshotted in Prepare and every
// work item reads the snapshot, which makes the result independent of
// scheduling.
type decayProgram struct{}

type decayState struct {
	img     *soft.Image
	src     []float32
	size    int
	diffuse float32
	fade    float32
	wrap    bool
}

func (decayProgram) Prepare(inv *soft.Invocation) {
	img := inv.Image(TrailSlot)
	src := inv.Scratch("source", len(img.Pix))
	copy(src, img.Pix)

	inv.State = &decayState{
		img:     img,
		src:     src,
		size:    min(int(inv.Int(UniformSize)), img.Size()),
		diffuse: inv.Float(UniformDiffuse),
		fade:    inv.Float(UniformFade),
		wrap:    inv.Bool(UniformWrapEdges),
	}
}

func (decayProgram) Run(inv *soft.Invocation, first, last int) {
	st := inv.State.(*decayState)
	lx, ly := inv.Local[0], inv.Local[1]
	avg := make([]float32, lx*4)

	for g := first; g < last; g++ {
		gx, gy, _ := inv.Group(g)
		x0, y0 := gx*lx, gy*ly
		x1, y1 := min(x0+lx, st.size), min(y0+ly, st.size)
		if x0 >= x1 || y0 >= y1 {
			continue
		}

		for y := y0; y < y1; y++ {
			row := avg[:(x1-x0)*4]
			for x := x0; x < x1; x++ {
				st.neighbourhoodAverage(x, y, row[(x-x0)*4:(x-x0)*4+4])
			}
			lo, hi := (y*st.size+x0)*4, (y*st.size+x1)*4
			st.blend(st.img.Pix[lo:hi], st.src[lo:hi], row)
		}
	}
}

// neighbourhoodAverage writes the mean of the 3×3 neighbourhood of (x, y)
// into out. Without wrapping only in-range neighbours are counted.
func (st *decayState) neighbourhoodAverage(x, y int, out []float32) {
	var sum [4]float32
	var n float32
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			qx, qy := x+dx, y+dy
			if st.wrap {
				qx = (qx + st.size) % st.size
				qy = (qy + st.size) % st.size
			} else if qx < 0 || qy < 0 || qx >= st.size || qy >= st.size {
				continue
			}
			i := (qy*st.size + qx) * 4
			sum[0] += st.src[i]
			sum[1] += st.src[i+1]
			sum[2] += st.src[i+2]
			sum[3] += st.src[i+3]
			n++
		}
	}
	for c := range 4 {
		out[c] = sum[c] / n
	}
}

// blend computes dst = ((1-diffuse)*src + diffuse*avg) * (1-fade).
func (st *decayState) blend(dst, src, avg []float32) {
	n := len(dst)
	d := blas32.Vector{N: n, Inc: 1, Data: dst}
	blas32.Copy(blas32.Vector{N: n, Inc: 1, Data: src}, d)
	blas32.Scal(1-st.diffuse, d)
	blas32.Axpy(st.diffuse, blas32.Vector{N: n, Inc: 1, Data: avg}, d)
	blas32.Scal(1-st.fade, d)
}
