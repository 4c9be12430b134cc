package feed

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/banshee-data/cellwatch/internal/detection"
	"github.com/banshee-data/cellwatch/internal/handoff"
	"github.com/banshee-data/cellwatch/internal/timeutil"
)

// Synthetic generates bursty detection batches for development without a
// camera. Most frames carry a few detections; occasionally a burst arrives.
type Synthetic struct {
	frameID atomic.Uint64

	// Configuration
	FrameRate         float64 // frames per second
	MeanDetections    float64 // mean detections per ordinary frame
	BurstProbability  float64 // chance a frame is a burst
	BurstSize         int     // detections in a burst frame
	PersonProbability float64 // chance a detection is a person
	ClassCount        int     // detector classes drawn from
	PreviewWidth      int     // preview frame size in pixels; zero disables
	PreviewHeight     int

	rng   *rand.Rand
	clock timeutil.Clock
}

// NewSynthetic creates a generator. seed 0 seeds from the wall clock.
func NewSynthetic(seed int64, clock timeutil.Clock) *Synthetic {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Synthetic{
		FrameRate:         10,
		MeanDetections:    0.3,
		BurstProbability:  0.02,
		BurstSize:         12,
		PersonProbability: 0.4,
		ClassCount:        80,
		PreviewWidth:      160,
		PreviewHeight:     120,
		rng:               rand.New(rand.NewSource(seed)),
		clock:             clock,
	}
}

// NextBatch draws the detections of the next frame. The batch may be empty.
func (g *Synthetic) NextBatch() detection.Batch {
	g.frameID.Add(1)

	n := g.poisson(g.MeanDetections)
	if g.rng.Float64() < g.BurstProbability {
		n += g.BurstSize
	}
	batch := make(detection.Batch, n)
	for i := range batch {
		class := detection.ClassPerson
		if g.rng.Float64() >= g.PersonProbability && g.ClassCount > 1 {
			class = 1 + g.rng.Intn(g.ClassCount-1)
		}
		batch[i] = detection.Event{
			ClassID:    class,
			Confidence: 0.5 + 0.5*g.rng.Float64(),
		}
	}
	return batch
}

// poisson draws from a Poisson distribution with the given mean (Knuth).
func (g *Synthetic) poisson(mean float64) int {
	if mean <= 0 {
		return 0
	}
	l, k, p := math.Exp(-mean), 0, 1.0
	for {
		p *= g.rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

// Frames returns the number of frames generated so far.
func (g *Synthetic) Frames() uint64 { return g.frameID.Load() }

// Run emits one frame per 1/FrameRate until ctx is done. Non-empty batches
// go to sink; when frames is non-nil a preview image of every frame is
// published to it.
func (g *Synthetic) Run(ctx context.Context, sink handoff.DetectionSender, frames handoff.FrameSender) error {
	rate := g.FrameRate
	if rate <= 0 {
		rate = 10
	}
	ticker := g.clock.NewTicker(time.Duration(float64(time.Second) / rate))
	defer ticker.Stop()

	logf("synthetic producer started at %.1f fps", rate)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C():
			batch := g.NextBatch()
			if len(batch) > 0 {
				sink.Send(batch)
			}
			if frames != nil && g.PreviewWidth > 0 && g.PreviewHeight > 0 {
				if data, err := g.preview(batch); err == nil {
					frames.Publish(&handoff.Frame{Data: data, ContentType: "image/png", CapturedAt: now})
				}
			}
		}
	}
}

// preview renders a grey frame with one box per detection, people darker.
func (g *Synthetic) preview(batch detection.Batch) ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, g.PreviewWidth, g.PreviewHeight))
	for i := range img.Pix {
		img.Pix[i] = 0xE0
	}
	for _, e := range batch {
		w := 8 + g.rng.Intn(max(g.PreviewWidth/4, 1))
		h := 8 + g.rng.Intn(max(g.PreviewHeight/3, 1))
		x0 := g.rng.Intn(max(g.PreviewWidth-w, 1))
		y0 := g.rng.Intn(max(g.PreviewHeight-h, 1))
		shade := color.Gray{Y: 0x80}
		if e.ClassID == detection.ClassPerson {
			shade = color.Gray{Y: 0x20}
		}
		for y := y0; y < y0+h && y < g.PreviewHeight; y++ {
			for x := x0; x < x0+w && x < g.PreviewWidth; x++ {
				img.SetGray(x, y, shade)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
