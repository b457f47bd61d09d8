package embed

import (
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// Pool is a simple pool of DNN nets loaded from the same model so batches
// can run inference concurrently
type Pool struct {
	// pool of nets
	nets chan *gocv.Net
	// size of pool
	size  int
	close sync.Once
}

// NewPool loads the model size times into a new pool.  configFile may be
// empty for self contained formats such as ONNX.
func NewPool(size int, modelFile, configFile string, backend gocv.NetBackendType,
	target gocv.NetTargetType) (*Pool, error) {

	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}

	// check file exists in Go, before passing to OpenCV
	info, err := os.Stat(modelFile)

	if err != nil {
		return nil, fmt.Errorf("model file does not exist at %s, error: %w",
			modelFile, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("model file is a directory")
	}

	p := &Pool{
		nets: make(chan *gocv.Net, size),
		size: size,
	}

	err = loadAll(size,
		func() *gocv.Net {
			net := gocv.ReadNet(modelFile, configFile)
			return &net
		},
		func(net *gocv.Net) bool { return !net.Empty() },
		func(net *gocv.Net) {
			net.SetPreferableBackend(backend)
			net.SetPreferableTarget(target)
			p.Return(net)
		},
	)

	if err != nil {
		// close any nets that were created before the failure
		p.Close()
		return nil, fmt.Errorf("error loading model %s: %w", modelFile, err)
	}

	return p, nil
}

// loadAll opens n resources and hands each valid one to keep.  A resource
// that fails the valid check is closed and loading stops.
func loadAll[T interface{ Close() error }](n int, open func() T, valid func(T) bool,
	keep func(T)) error {

	for i := 0; i < n; i++ {
		r := open()

		if !valid(r) {
			_ = r.Close()
			return fmt.Errorf("instance %d is empty", i)
		}

		keep(r)
	}

	return nil
}

// Get a net from the pool, blocking until one is free
func (p *Pool) Get() *gocv.Net {
	return <-p.nets
}

// Return a net to the pool
func (p *Pool) Return(net *gocv.Net) {
	select {
	case p.nets <- net:
	default:
		// pool is full or closed
	}
}

// Size returns the number of nets in the pool
func (p *Pool) Size() int {
	return p.size
}

// Close the pool and all nets in it
func (p *Pool) Close() {
	p.close.Do(func() {
		close(p.nets)

		for next := range p.nets {
			_ = next.Close()
		}
	})
}
