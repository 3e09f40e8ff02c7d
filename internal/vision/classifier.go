package vision

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
)

// ImageNet normalization (standard for torchvision models).
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

const (
	width  = 224
	height = 224
)

// Classification is the verdict for one image fragment: the element type it
// should be stored as, the winning label and a softmax confidence.
type Classification struct {
	ElementType model.ElementType `json:"element_type"`
	Label       string            `json:"label"`
	Confidence  float64           `json:"confidence"`
}

// StampClassifier recognizes stamps, signatures and drawing fragments in
// image crops taken from engineering documents. It runs an ONNX
// classification model whose label file decides the element type: labels
// containing "stamp" or "signature" map to stamp elements, everything else
// to plain image elements.
type StampClassifier struct {
	mu sync.Mutex

	modelPath  string
	labelsPath string
	libPath    string

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	labels  []string
	inited  bool
}

// NewStampClassifier creates a classifier that lazily loads the ONNX model
// and labels on first use.
func NewStampClassifier(modelPath, labelsPath, onnxLibPath string) *StampClassifier {
	return &StampClassifier{
		modelPath:  modelPath,
		labelsPath: labelsPath,
		libPath:    onnxLibPath,
	}
}

// Available reports whether the model file exists; extraction degrades to
// untyped image elements when it does not.
func (c *StampClassifier) Available() bool {
	_, err := os.Stat(c.modelPath)
	return err == nil
}

func (c *StampClassifier) initOnce() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inited {
		return nil
	}

	if c.libPath != "" {
		ort.SetSharedLibraryPath(c.libPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnx init environment: %w", err)
	}

	labels, err := loadLabels(c.labelsPath)
	if err != nil {
		return fmt.Errorf("load labels: %w", err)
	}
	c.labels = labels

	inputs, outputs, err := ort.GetInputOutputInfo(c.modelPath)
	if err != nil {
		return fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("onnx model has no inputs or outputs")
	}

	inputTensor, err := ort.NewEmptyTensor[float32](inputs[0].Dimensions)
	if err != nil {
		return fmt.Errorf("onnx new input tensor: %w", err)
	}
	c.input = inputTensor

	outputTensor, err := ort.NewEmptyTensor[float32](outputs[0].Dimensions)
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("onnx new output tensor: %w", err)
	}
	c.output = outputTensor

	inputNames := make([]string, len(inputs))
	for i := range inputs {
		inputNames[i] = inputs[i].Name
	}
	outputNames := make([]string, len(outputs))
	for i := range outputs {
		outputNames[i] = outputs[i].Name
	}

	session, err := ort.NewAdvancedSession(c.modelPath, inputNames, outputNames,
		[]ort.Value{c.input}, []ort.Value{c.output}, nil)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		return fmt.Errorf("onnx new session: %w", err)
	}
	c.session = session
	c.inited = true
	return nil
}

func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		labels = append(labels, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

// Classify decodes the crop, runs inference and maps the winning label to an
// element type with a softmax confidence.
func (c *StampClassifier) Classify(imageData []byte) (*Classification, error) {
	if err := c.initOnce(); err != nil {
		return nil, err
	}

	img, err := decodeImage(imageData)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	inputData := preprocess(img)
	if len(inputData) == 0 {
		return nil, fmt.Errorf("preprocess failed")
	}

	c.mu.Lock()
	inData := c.input.GetData()
	if len(inData) < len(inputData) {
		c.mu.Unlock()
		return nil, fmt.Errorf("input tensor size %d < preprocessed %d", len(inData), len(inputData))
	}
	copy(inData, inputData)
	err = c.session.Run()
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	logits := c.output.GetData()
	if len(logits) == 0 {
		return nil, fmt.Errorf("empty model output")
	}

	probs := softmax(logits)
	type idxScore struct {
		idx   int
		score float64
	}
	scored := make([]idxScore, len(probs))
	for i, p := range probs {
		scored[i] = idxScore{i, p}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	best := scored[0]
	label := ""
	if best.idx < len(c.labels) {
		label = c.labels[best.idx]
	}
	return &Classification{
		ElementType: elementTypeForLabel(label),
		Label:       label,
		Confidence:  best.score,
	}, nil
}

func elementTypeForLabel(label string) model.ElementType {
	lower := strings.ToLower(label)
	if strings.Contains(lower, "stamp") || strings.Contains(lower, "signature") ||
		strings.Contains(lower, "seal") {
		return model.ElementStamp
	}
	return model.ElementImage
}

func softmax(logits []float32) []float64 {
	maxLogit := logits[0]
	for _, l := range logits {
		if l > maxLogit {
			maxLogit = l
		}
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(float64(l - maxLogit))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// image.Decode may miss some encodings; try the codecs directly.
		img, err = jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			img, err = png.Decode(bytes.NewReader(data))
			if err != nil {
				return nil, err
			}
		}
	}
	return img, nil
}

// preprocess resizes to 224x224 RGB, NCHW layout, ImageNet-normalized float32.
func preprocess(img image.Image) []float32 {
	bounds := img.Bounds()

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	out := make([]float32, 1*3*height*width)
	const size = width * height

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			c := dst.RGBAAt(x, y)
			r, g, b := float32(c.R)/255.0, float32(c.G)/255.0, float32(c.B)/255.0
			out[0*size+idx] = (r - imagenetMean[0]) / imagenetStd[0]
			out[1*size+idx] = (g - imagenetMean[1]) / imagenetStd[1]
			out[2*size+idx] = (b - imagenetMean[2]) / imagenetStd[2]
		}
	}
	return out
}
