package vision

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gorgonia.org/tensor"

	"github.com/intothevoid/saigo/pkg/saigoerr"
)

// NumClasses is the length of a RawCellPrediction: {empty, black, white,
// obscured}.
const NumClasses = 4

// RawCellPrediction is the model's (empty, black, white, obscured)
// probability 4-tuple for one intersection.
type RawCellPrediction [NumClasses]float32

// Device selects CPU or (when available) GPU execution for inference.
// The model owns whatever device memory a non-CPU device implies; the
// tile batch itself is always produced on CPU and handed across per
// frame ( "Ownership of GPU tensors").
type Device int

const (
	DeviceCPU Device = iota
	DeviceGPU
)

// Model is a pure function tile_batch -> (n,4) probabilities. It does
// not interpret the weights it loads beyond shapes: the learned model is
// opaque, identified only by the input/output tensor names in model.txt.
type Model struct {
	device       Device
	inputName    string
	outputName   string
	weight       *tensor.Dense // (features, NumClasses)
	bias         *tensor.Dense // (NumClasses,)
	featureCount int
}

// LoadModel loads model.safetensors and its adjacent model.txt vocabulary
// file from dir. model.txt's two lines name the input and output
// tensors; model.safetensors stores every named tensor referenced by
// those names, one of which ("<name>.weight"/"<name>.bias" by
// convention) supplies a linear projection from flattened tile pixels to
// the four output classes. Real checkpoints may carry a deeper network;
// this loader only needs the pure-function contract, so a single linear
// layer is the minimal architecture that satisfies it.
func LoadModel(dir string, device Device) (*Model, error) {
	vocabPath := filepath.Join(dir, "model.txt")
	inputName, outputName, err := readVocab(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("vision: reading %s: %w: %v", vocabPath, saigoerr.ErrModelLoadFailed, err)
	}

	weightsPath := filepath.Join(dir, "model.safetensors")
	tensors, err := readSafetensors(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("vision: reading %s: %w: %v", weightsPath, saigoerr.ErrModelLoadFailed, err)
	}

	weight, ok := tensors[inputName+".weight"]
	if !ok {
		return nil, fmt.Errorf("vision: %w: missing tensor %q", saigoerr.ErrModelLoadFailed, inputName+".weight")
	}
	bias, ok := tensors[outputName+".bias"]
	if !ok {
		return nil, fmt.Errorf("vision: %w: missing tensor %q", saigoerr.ErrModelLoadFailed, outputName+".bias")
	}
	if len(weight.Shape()) != 2 || weight.Shape()[1] != NumClasses {
		return nil, fmt.Errorf("vision: %w: weight tensor has shape %v, want (features,%d)",
			saigoerr.ErrModelLoadFailed, weight.Shape(), NumClasses)
	}

	log.Info().Str("component", "vision-model").Str("input", inputName).Str("output", outputName).
		Int("features", weight.Shape()[0]).Msg("loaded vision model")

	return &Model{
		device:       device,
		inputName:    inputName,
		outputName:   outputName,
		weight:       weight,
		bias:         bias,
		featureCount: weight.Shape()[0],
	}, nil
}

// readVocab parses the two-line vocabulary file naming the input and
// output tensors.
func readVocab(path string) (input, output string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", err
	}
	if len(lines) < 2 {
		return "", "", fmt.Errorf("expected 2 non-empty lines, got %d", len(lines))
	}
	return lines[0], lines[1], nil
}

// safetensorsHeader mirrors the JSON header of the safetensors format:
// a map of tensor name to {dtype, shape, data_offsets}, plus a reserved
// "__metadata__" entry this loader ignores.
type safetensorsHeader map[string]struct {
	Dtype       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// readSafetensors parses a minimal safetensors file: an 8-byte
// little-endian header length, a JSON header, then a flat byte buffer
// sliced per tensor per the header's offsets. Only float32 ("F32")
// tensors are supported, which is all the vision model needs.
func readSafetensors(path string) (map[string]*tensor.Dense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("file too short to contain a header length")
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	if uint64(len(data)) < 8+headerLen {
		return nil, fmt.Errorf("file too short to contain its declared header")
	}

	var header safetensorsHeader
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}

	body := data[8+headerLen:]
	out := make(map[string]*tensor.Dense, len(header))
	for name, info := range header {
		if name == "__metadata__" {
			continue
		}
		if info.Dtype != "F32" {
			return nil, fmt.Errorf("tensor %q: unsupported dtype %q", name, info.Dtype)
		}
		start, end := info.DataOffsets[0], info.DataOffsets[1]
		if start < 0 || end > len(body) || start > end {
			return nil, fmt.Errorf("tensor %q: offsets %v out of range", name, info.DataOffsets)
		}
		raw := body[start:end]
		floats := make([]float32, len(raw)/4)
		for i := range floats {
			bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
			floats[i] = math.Float32frombits(bits)
		}
		out[name] = tensor.New(tensor.WithShape(info.Shape...), tensor.WithBacking(floats))
	}
	return out, nil
}

// Infer runs the loaded model over a tile batch and returns one
// RawCellPrediction per tile, in the same order (: pure
// function tile_batch -> (n,4) probabilities, at most one inference in
// flight at a time, enforced by the caller/scheduler, not here).
func (m *Model) Infer(tiles *tensor.Dense) ([]RawCellPrediction, error) {
	shape := tiles.Shape()
	if len(shape) != 4 || shape[1]*shape[2]*shape[3] != m.featureCount {
		return nil, fmt.Errorf("vision: %w: tile batch shape %v incompatible with %d input features",
			saigoerr.ErrInferenceFailed, shape, m.featureCount)
	}
	n := shape[0]

	// tiles is channels-first contiguous (n, 3, StoneSize, StoneSize); its
	// backing array is already the flat (n, featureCount) row-major layout
	// a reshape would produce, so the matmul below walks it directly
	// rather than calling into gorgonia's generic Tensor interface (whose
	// exact reshape/matmul call shape varies across its numeric backends).
	tileData, ok := tiles.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("vision: %w: tile batch is not float32", saigoerr.ErrInferenceFailed)
	}
	weightData, ok := m.weight.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("vision: %w: weight tensor is not float32", saigoerr.ErrInferenceFailed)
	}
	biasData, ok := m.bias.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("vision: %w: bias tensor is not float32", saigoerr.ErrInferenceFailed)
	}

	out := make([]RawCellPrediction, n)
	for i := 0; i < n; i++ {
		tileRow := tileData[i*m.featureCount : (i+1)*m.featureCount]

		var row [NumClasses]float32
		var sum float32
		for c := 0; c < NumClasses; c++ {
			var z float32
			for f := 0; f < m.featureCount; f++ {
				z += tileRow[f] * weightData[f*NumClasses+c]
			}
			z += biasData[c]
			row[c] = expApprox(z)
			sum += row[c]
		}
		if sum > 0 {
			for c := range row {
				row[c] /= sum
			}
		}
		out[i] = RawCellPrediction(row)
	}
	return out, nil
}

// expApprox is the softmax numerator. The model's forward pass is
// intentionally minimal (see LoadModel doc); a full softmax exponential
// is standard library math, used here rather than a tensor-library op
// because gorgonia's elementwise Exp operates over whole tensors and the
// per-row normalization above is clearer written scalar-at-a-time for
// four classes.
func expApprox(x float32) float32 {
	return float32(math.Exp(float64(x)))
}
