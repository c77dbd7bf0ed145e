package receiver

import (
	"math"
	"sync"

	"github.com/san-kum/vacoustic/internal/geom"
)

// GainsAt reports a decoder's per-speaker gains for a test direction;
// HOA3D.Gains has this shape. VBAP3D.Gains returns a speaker triple
// instead and is not adapted to it.
type GainsAt func(dir geom.Vec3, g []float64)

// SpatialError summarizes a decoder sweep: energy and
// velocity vector magnitudes and localization errors, averaged over a
// direction set.
type SpatialError struct {
	MeanAbsRV  float64
	MeanAbsRE  float64
	MeanAzErr  float64 // signed mean azimuth error, radians
	MeanElErr  float64
	MeanMagErr float64 // mean absolute deviation of total amplitude from 1
}

// EvalRing evaluates the decoder over a horizontal ring of nDir test
// directions.
func EvalRing(l *Layout, gains GainsAt, nDir int) SpatialError {
	dirs := make([]geom.Vec3, nDir)
	for i := range dirs {
		az := 2 * math.Pi * float64(i) / float64(nDir)
		dirs[i] = geom.Vec3{X: math.Cos(az), Y: math.Sin(az)}
	}
	return evalDirs(l, gains, dirs)
}

// EvalSphere evaluates the decoder over an icosphere mesh of at least
// minPoints directions.
func EvalSphere(l *Layout, gains GainsAt, minPoints int) SpatialError {
	return evalDirs(l, gains, Icosphere(minPoints))
}

// evalDirs computes rV/rE statistics for every test direction; the
// per-direction work is independent and fans out over a bounded worker
// set (control-context only; never called from the audio context).
func evalDirs(l *Layout, gains GainsAt, dirs []geom.Vec3) SpatialError {
	n := len(dirs)
	type stat struct {
		rv, re, azErr, elErr, magErr float64
	}
	stats := make([]stat, n)

	parallelFor(n, 16, func(start, end int) {
		g := make([]float64, len(l.Speakers))
		for i := start; i < end; i++ {
			gains(dirs[i], g)
			var psum, esum float64
			var rv, re geom.Vec3
			for k, s := range l.Speakers {
				psum += g[k]
				esum += g[k] * g[k]
				rv = rv.Add(s.dir.Scale(g[k]))
				re = re.Add(s.dir.Scale(g[k] * g[k]))
			}
			if psum != 0 {
				rv = rv.Scale(1 / psum)
			}
			if esum != 0 {
				re = re.Scale(1 / esum)
			}
			stats[i].rv = rv.Norm()
			stats[i].re = re.Norm()
			azT, elT, _ := dirs[i].ToSpherical()
			azE, elE, _ := re.ToSpherical()
			stats[i].azErr = angleDiff(azE, azT)
			stats[i].elErr = elE - elT
			stats[i].magErr = math.Abs(math.Sqrt(esum) - 1)
		}
	})

	var out SpatialError
	for _, s := range stats {
		out.MeanAbsRV += s.rv
		out.MeanAbsRE += s.re
		out.MeanAzErr += s.azErr
		out.MeanElErr += s.elErr
		out.MeanMagErr += s.magErr
	}
	f := 1 / float64(n)
	out.MeanAbsRV *= f
	out.MeanAbsRE *= f
	out.MeanAzErr *= f
	out.MeanElErr *= f
	out.MeanMagErr *= f
	return out
}

// parallelFor executes fn over [0, n) in parallel chunks of at least
// minChunk elements.
func parallelFor(n, minChunk int, fn func(start, end int)) {
	const numWorkers = 4
	if n <= minChunk {
		fn(0, n)
		return
	}
	workers := numWorkers
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}
	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
