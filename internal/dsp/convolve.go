package dsp

// OverlapSave implements a single overlap-save convolver for an IR of
// length L processed in blocks of size B: an FFT of length
// NextPow2(L+B-1).
type OverlapSave struct {
	fftLen int
	irSpec []complex128
	irLen  int
	input  []float64 // ring of fftLen holding the last fftLen-B+... samples
}

// NewOverlapSave builds a convolver for the given impulse response and
// block size.
func NewOverlapSave(ir []float64, blockSize int) *OverlapSave {
	n := NextPow2(len(ir) + blockSize - 1)
	padded := make([]float64, n)
	copy(padded, ir)
	spec := RealToComplex(padded)
	return &OverlapSave{
		fftLen: n,
		irSpec: spec,
		irLen:  len(ir),
		input:  make([]float64, n),
	}
}

// Process convolves one block of size B and returns B output samples in
// a new slice (overlap-save style: the last B samples of each circular
// convolution are kept, the first fftLen-B are discarded).
func (o *OverlapSave) Process(block []float64) []float64 {
	b := len(block)
	// shift history left by b, append new block at the end
	copy(o.input, o.input[b:])
	copy(o.input[o.fftLen-b:], block)

	spec := RealToComplex(o.input)
	for i := range spec {
		spec[i] *= o.irSpec[i]
	}
	full := ComplexToReal(spec)

	out := make([]float64, b)
	start := o.fftLen - b
	copy(out, full[start:])
	return out
}

// Partitioned convolves against a long IR split into blockSize-strided
// partitions, each an overlap-save convolver of one segment, fed from a
// rotating ring of past input blocks.
type Partitioned struct {
	blockSize  int
	partitions []*OverlapSave
	history    [][]float64 // ring of past input blocks
	head       int
	out        []float64
}

// NewPartitioned splits ir into its block-strided partitions.
func NewPartitioned(ir []float64, blockSize int) *Partitioned {
	numParts := (len(ir) + blockSize - 1) / blockSize
	if numParts < 1 {
		numParts = 1
	}
	p := &Partitioned{
		blockSize:  blockSize,
		partitions: make([]*OverlapSave, numParts),
		history:    make([][]float64, numParts),
		out:        make([]float64, blockSize),
	}
	for i := 0; i < numParts; i++ {
		lo := i * blockSize
		hi := lo + blockSize
		if hi > len(ir) {
			hi = len(ir)
		}
		padded := make([]float64, blockSize+1)
		if lo < len(ir) {
			copy(padded, ir[lo:hi])
		}
		p.partitions[i] = NewOverlapSave(padded, blockSize)
		p.history[i] = make([]float64, blockSize)
	}
	return p
}

// Process convolves one input block against the full (partitioned) IR:
// partition i sees the block from i ticks ago.
func (p *Partitioned) Process(block []float64) []float64 {
	n := len(p.partitions)
	p.head = (p.head + n - 1) % n
	copy(p.history[p.head], block)

	for j := range p.out {
		p.out[j] = 0
	}
	for i := 0; i < n; i++ {
		y := p.partitions[i].Process(p.history[(p.head+i)%n])
		for j := range p.out {
			p.out[j] += y[j]
		}
	}
	return p.out
}
