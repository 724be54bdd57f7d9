//go:build cgo

package silero

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// stateSize is the number of floats in the model's recurrent state [2, 1, 128].
const stateSize = 2 * 1 * 128

var (
	envMu          sync.Mutex
	envInitialized bool
)

// initEnvironment loads the ONNX Runtime shared library once per process.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envInitialized {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		if !strings.Contains(err.Error(), "already initialized") {
			return fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}
	envInitialized = true
	return nil
}

// onnxModel runs the Silero ONNX graph. Tensors are allocated once and
// reused for every window.
type onnxModel struct {
	session  *ort.DynamicAdvancedSession
	input    *ort.Tensor[float32]
	state    *ort.Tensor[float32]
	stateOut *ort.Tensor[float32]
	sr       *ort.Tensor[int64]
	output   *ort.Tensor[float32]
	window   int

	closeOnce sync.Once
}

var _ Model = (*onnxModel)(nil)

// OpenONNX loads the Silero model at modelPath on ONNX Runtime. libPath is
// the onnxruntime shared library; empty uses the library's default lookup.
// sampleRate is the rate the model runs at (8000 or 16000).
func OpenONNX(modelPath, libPath string, sampleRate int) (Model, error) {
	if modelPath == "" {
		return nil, errors.New("model path is empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	if err := initEnvironment(libPath); err != nil {
		return nil, err
	}

	window := 512
	if sampleRate == 8000 {
		window = 256
	}

	m := &onnxModel{window: window}
	var err error
	if m.input, err = ort.NewTensor(ort.NewShape(1, int64(window)), make([]float32, window)); err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	if m.state, err = ort.NewTensor(ort.NewShape(2, 1, 128), make([]float32, stateSize)); err != nil {
		m.destroy()
		return nil, fmt.Errorf("create state tensor: %w", err)
	}
	if m.stateOut, err = ort.NewTensor(ort.NewShape(2, 1, 128), make([]float32, stateSize)); err != nil {
		m.destroy()
		return nil, fmt.Errorf("create state output tensor: %w", err)
	}
	if m.sr, err = ort.NewTensor(ort.NewShape(1), []int64{int64(sampleRate)}); err != nil {
		m.destroy()
		return nil, fmt.Errorf("create sample rate tensor: %w", err)
	}
	if m.output, err = ort.NewTensor(ort.NewShape(1, 1), make([]float32, 1)); err != nil {
		m.destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	m.session, err = ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		nil,
	)
	if err != nil {
		m.destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}
	return m, nil
}

// Probability implements [Model].
func (m *onnxModel) Probability(window []float32) (float32, error) {
	if len(window) != m.window {
		return 0, fmt.Errorf("window has %d samples, want %d", len(window), m.window)
	}
	copy(m.input.GetData(), window)
	err := m.session.Run(
		[]ort.Value{m.input, m.state, m.sr},
		[]ort.Value{m.output, m.stateOut},
	)
	if err != nil {
		return 0, fmt.Errorf("run session: %w", err)
	}
	copy(m.state.GetData(), m.stateOut.GetData())
	return m.output.GetData()[0], nil
}

// ResetState implements [Model].
func (m *onnxModel) ResetState() {
	clear(m.state.GetData())
}

// Close implements [Model].
func (m *onnxModel) Close() error {
	var err error
	m.closeOnce.Do(func() {
		if m.session != nil {
			err = m.session.Destroy()
		}
		m.destroy()
	})
	return err
}

func (m *onnxModel) destroy() {
	for _, t := range []*ort.Tensor[float32]{m.input, m.state, m.stateOut, m.output} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if m.sr != nil {
		_ = m.sr.Destroy()
	}
}
