package detect

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/cyclopcam/logs"
	"gocv.io/x/gocv"

	"github.com/footfall/footfall/pkg/nn"
)

// YOLOv8 input resolution. Frames are letterboxed down to this.
const (
	inputWidth  = 640
	inputHeight = 640
)

// YoloDetector runs a YOLOv8 ONNX model through OpenCV's DNN module.
// The network is loaded once at construction; DetectObjects is safe to
// call from multiple goroutines, but runs serialized because the
// underlying net is not.
type YoloDetector struct {
	log         logs.Log
	lock        sync.Mutex
	net         gocv.Net
	outputNames []string
	blobParams  gocv.ImageToBlobParams
}

func NewYoloDetector(log logs.Log, modelFile string) (*YoloDetector, error) {
	info, err := os.Stat(modelFile)
	if err != nil {
		return nil, fmt.Errorf("Model file '%v' is not readable: %w", modelFile, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("Model file '%v' is empty", modelFile)
	}
	net := gocv.ReadNetFromONNX(modelFile)
	if net.Empty() {
		return nil, fmt.Errorf("Failed to load ONNX model '%v'", modelFile)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	outputNames := outputLayerNames(&net)
	if len(outputNames) == 0 {
		net.Close()
		return nil, fmt.Errorf("Model '%v' has no output layers", modelFile)
	}

	blobParams := gocv.NewImageToBlobParams(
		1.0/255.0,
		image.Pt(inputWidth, inputHeight),
		gocv.NewScalar(0, 0, 0, 0),
		false,
		gocv.MatTypeCV32F,
		gocv.DataLayoutNCHW,
		gocv.PaddingModeLetterbox,
		gocv.NewScalar(114.0, 0, 0, 0),
	)

	log.Infof("Loaded model %v (outputs %v)", modelFile, outputNames)

	return &YoloDetector{
		log:         log,
		net:         net,
		outputNames: outputNames,
		blobParams:  blobParams,
	}, nil
}

func (d *YoloDetector) Close() {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.net.Close()
}

func (d *YoloDetector) DetectObjects(img image.Image, params *nn.DetectionParams) ([]nn.Detection, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("Failed to convert image: %w", err)
	}
	defer mat.Close()

	d.lock.Lock()
	defer d.lock.Unlock()

	blob := gocv.BlobFromImageWithParams(mat, d.blobParams)
	defer blob.Close()

	d.net.SetInput(blob, "")
	outputs := d.net.ForwardLayers(d.outputNames)
	defer func() {
		for _, out := range outputs {
			out.Close()
		}
	}()

	boxes, confidences, classIDs := decodeYolov8(outputs, params.ProbabilityThreshold)
	if len(boxes) == 0 {
		return nil, nil
	}

	// Map boxes from letterboxed blob space back to source image pixels
	imageRects := d.blobParams.BlobRectsToImageRects(boxes, image.Pt(mat.Cols(), mat.Rows()))
	keep := gocv.NMSBoxes(imageRects, confidences, params.ProbabilityThreshold, params.NmsIouThreshold)

	detections := make([]nn.Detection, 0, len(keep))
	for _, idx := range keep {
		r := imageRects[idx]
		detections = append(detections, nn.Detection{
			Class:      nn.ClassFromCoco(classIDs[idx]),
			Confidence: confidences[idx],
			Box: nn.Rect{
				X:      r.Min.X,
				Y:      r.Min.Y,
				Width:  r.Dx(),
				Height: r.Dy(),
			},
		})
	}
	return detections, nil
}

// decodeYolov8 extracts candidate boxes from the raw network output.
// YOLOv8 emits [1, 4+numClasses, numAnchors]; we transpose to get one
// anchor per row: cx, cy, w, h, then one score per class.
func decodeYolov8(outputs []gocv.Mat, scoreThreshold float32) ([]image.Rectangle, []float32, []int) {
	var boxes []image.Rectangle
	var confidences []float32
	var classIDs []int

	gocv.TransposeND(outputs[0], []int{0, 2, 1}, &outputs[0])

	for _, out := range outputs {
		out = out.Reshape(1, out.Size()[1])
		cols := out.Cols()
		for i := 0; i < out.Rows(); i++ {
			row := out.RowRange(i, i+1)
			scores := row.ColRange(4, cols)
			_, maxScore, _, maxLoc := gocv.MinMaxLoc(scores)
			if float32(maxScore) >= scoreThreshold {
				cx := out.GetFloatAt(i, 0)
				cy := out.GetFloatAt(i, 1)
				w := out.GetFloatAt(i, 2)
				h := out.GetFloatAt(i, 3)
				boxes = append(boxes, image.Rect(
					int(cx-w/2), int(cy-h/2),
					int(cx+w/2), int(cy+h/2)))
				confidences = append(confidences, float32(maxScore))
				classIDs = append(classIDs, maxLoc.X)
			}
			scores.Close()
			row.Close()
		}
	}
	return boxes, confidences, classIDs
}

func outputLayerNames(net *gocv.Net) []string {
	var names []string
	for _, i := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(i)
		name := layer.GetName()
		if name != "_input" {
			names = append(names, name)
		}
	}
	return names
}
