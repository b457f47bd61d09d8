// Package embed extracts ReID features from item images with an OpenCV DNN
// model, implementing reideval.Embedder.
package embed

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"github.com/swdee/go-reideval/feature"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// Options configures the model and its input tensor
type Options struct {
	// ModelFile is the ReID network, typically an ONNX export
	ModelFile string
	// ConfigFile is the network description for formats that need one
	ConfigFile string
	// Backend and Target are parsed with gocv.ParseNetBackend and
	// gocv.ParseNetTarget
	Backend string
	Target  string
	// Width and Height are the input tensor dimensions, 128x256 for most
	// person ReID models
	Width  int
	Height int
	// BatchSize is the number of images per forward pass
	BatchSize int
	// Workers is the number of nets loaded to run batches concurrently
	Workers int
	// Scale multiplies pixel values after Mean is subtracted
	Scale float64
	// Mean is subtracted per channel in the order given to the network
	Mean [3]float64
	// SwapRB converts OpenCV's BGR images to RGB
	SwapRB bool
}

// Embedder runs item images through a pool of DNN nets and returns their L2
// normalized features
type Embedder struct {
	pool   *Pool
	opts   Options
	logger *zerolog.Logger
}

// New loads the model into a pool of opts.Workers nets.  A nil logger
// disables logging.
func New(opts Options, logger *zerolog.Logger) (*Embedder, error) {

	if opts.BatchSize <= 0 || opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("batch size and input dimensions must be positive")
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	pool, err := NewPool(opts.Workers, opts.ModelFile, opts.ConfigFile,
		gocv.ParseNetBackend(opts.Backend), gocv.ParseNetTarget(opts.Target))

	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("model", opts.ModelFile).
		Int("workers", opts.Workers).
		Int("batch_size", opts.BatchSize).
		Msg("embedding model loaded")

	return &Embedder{
		pool:   pool,
		opts:   opts,
		logger: logger,
	}, nil
}

// Close frees all nets
func (e *Embedder) Close() {
	e.pool.Close()
}

// Embed returns one normalized feature per item path in the same order.
// Batches run concurrently, one per pooled net, and the first failure
// cancels the remaining batches.
func (e *Embedder) Embed(ctx context.Context, items []string) ([][]float32, error) {

	start := time.Now()
	feats := make([][]float32, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.pool.Size())

	for _, sp := range batchSpans(len(items), e.opts.BatchSize) {

		g.Go(func() error {

			if err := gctx.Err(); err != nil {
				return err
			}

			net := e.pool.Get()
			fps, err := e.processBatch(net, items[sp.start:sp.end])
			e.pool.Return(net)

			if err != nil {
				return fmt.Errorf("batch [%d, %d): %w", sp.start, sp.end, err)
			}

			// copy this batch's features into place for all results
			copy(feats[sp.start:sp.end], fps)

			e.logger.Debug().Int("start", sp.start).Int("end", sp.end).
				Msg("batch embedded")

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ReID error: %w", err)
	}

	e.logger.Info().Int("items", len(items)).Dur("took", time.Since(start)).
		Msg("items embedded")

	return feats, nil
}

// processBatch reads the images, runs a forward pass and unpacks one
// normalized feature per image
func (e *Embedder) processBatch(net *gocv.Net, paths []string) ([][]float32, error) {

	batch := NewBatch(len(paths))
	defer batch.Close()

	for _, p := range paths {
		if err := batch.AddFile(p); err != nil {
			return nil, err
		}
	}

	blob := batch.Blob(image.Pt(e.opts.Width, e.opts.Height), e.opts.Scale,
		gocv.NewScalar(e.opts.Mean[0], e.opts.Mean[1], e.opts.Mean[2], 0),
		e.opts.SwapRB)
	defer blob.Close()

	net.SetInput(blob, "")

	out := net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()

	if err != nil {
		return nil, fmt.Errorf("error getting output tensor: %w", err)
	}

	return splitRows(data, len(paths))
}

// splitRows cuts a flat N x D output tensor into normalized rows
func splitRows(data []float32, n int) ([][]float32, error) {

	if n == 0 || len(data) == 0 || len(data)%n != 0 {
		return nil, fmt.Errorf("output of %d values does not split into %d rows",
			len(data), n)
	}

	dim := len(data) / n
	rows := make([][]float32, n)

	for i := range rows {
		rows[i] = feature.NormalizeVec(data[i*dim : (i+1)*dim])
	}

	return rows, nil
}

type span struct {
	start, end int
}

// batchSpans splits total items into consecutive batches of at most size
func batchSpans(total, size int) []span {

	spans := make([]span, 0, (total+size-1)/size)

	for offset := 0; offset < total; offset += size {
		end := offset + size

		if end > total {
			end = total
		}

		spans = append(spans, span{offset, end})
	}

	return spans
}
