package embed

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Batch collects item images for a single forward pass.  Images are kept at
// their source size, resizing to the input tensor happens when the blob is
// built.
type Batch struct {
	imgs []gocv.Mat
	// size is the maximum number of images in the batch
	size int
}

// NewBatch returns an empty batch holding up to size images
func NewBatch(size int) *Batch {
	return &Batch{
		imgs: make([]gocv.Mat, 0, size),
		size: size,
	}
}

// AddFile reads an image from disk into the batch
func (b *Batch) AddFile(path string) error {

	if len(b.imgs) >= b.size {
		return fmt.Errorf("batch full")
	}

	img := gocv.IMRead(path, gocv.IMReadColor)

	if img.Empty() {
		img.Close()
		return fmt.Errorf("error reading image from: %s", path)
	}

	b.imgs = append(b.imgs, img)

	return nil
}

// Len returns the number of images in the batch
func (b *Batch) Len() int {
	return len(b.imgs)
}

// Blob builds the NCHW float32 input tensor for the batch.  Images are
// resized to size, multiplied by scale after mean is subtracted, and have
// their red and blue channels swapped when swapRB is set as OpenCV reads BGR.
func (b *Batch) Blob(size image.Point, scale float64, mean gocv.Scalar,
	swapRB bool) gocv.Mat {

	blob := gocv.NewMat()
	gocv.BlobFromImages(b.imgs, &blob, scale, size, mean, swapRB, false,
		gocv.MatTypeCV32F)

	return blob
}

// Clear closes all images so the batch can be reused
func (b *Batch) Clear() {

	for _, img := range b.imgs {
		_ = img.Close()
	}

	b.imgs = b.imgs[:0]
}

// Close frees the images held by the batch
func (b *Batch) Close() {
	b.Clear()
}
