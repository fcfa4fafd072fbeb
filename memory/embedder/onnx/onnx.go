//go:build onnx

// Package onnx embeds text with a local ONNX sentence-transformer model
// (all-MiniLM-L6-v2). It requires the onnxruntime shared library and is
// gated behind the onnx build tag so the default build stays pure Go.
package onnx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file. Required.
	ModelPath string

	// TokenizerPath is the path to the tokenizer.json file. Required.
	TokenizerPath string

	// LibraryPath is the onnxruntime shared library location. Optional;
	// falls back to the ONNXRUNTIME_LIB environment variable.
	LibraryPath string

	// Dimensions is the embedding vector size (default 384).
	Dimensions int

	// MaxSequence is the token sequence length (default 128).
	MaxSequence int
}

// Embedder generates embeddings using ONNX Runtime with mean pooling.
type Embedder struct {
	session    *ort.DynamicAdvancedSession
	tokenizer  *wordPieceTokenizer
	dimensions int
	maxSeq     int
}

// New loads the model and tokenizer. The returned embedder is safe for
// concurrent use once constructed.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("ModelPath is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("TokenizerPath is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	if cfg.MaxSequence == 0 {
		cfg.MaxSequence = 128
	}

	lib := cfg.LibraryPath
	if lib == "" {
		lib = os.Getenv("ONNXRUNTIME_LIB")
	}
	if lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize ONNX runtime: %w", err)
	}

	tokenizer, err := loadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}

	return &Embedder{
		session:    session,
		tokenizer:  tokenizer,
		dimensions: cfg.Dimensions,
		maxSeq:     cfg.MaxSequence,
	}, nil
}

// Embed converts text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	tokens := e.tokenizer.tokenize(text)

	inputIDs := make([]int64, e.maxSeq)
	attentionMask := make([]int64, e.maxSeq)
	tokenTypeIDs := make([]int64, e.maxSeq)

	inputIDs[0] = int64(e.tokenizer.clsToken)
	attentionMask[0] = 1

	tokenLen := len(tokens)
	if tokenLen > e.maxSeq-2 { // reserve [CLS] and [SEP]
		tokenLen = e.maxSeq - 2
	}
	for i := 0; i < tokenLen; i++ {
		inputIDs[i+1] = tokens[i]
		attentionMask[i+1] = 1
	}
	inputIDs[tokenLen+1] = int64(e.tokenizer.sepToken)
	attentionMask[tokenLen+1] = 1

	shape := ort.NewShape(1, int64(e.maxSeq))
	inputTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer inputTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typeTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inputTensor, maskTensor, typeTensor}, outputs); err != nil {
		return nil, fmt.Errorf("ONNX inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	if len(outputs) == 0 || outputs[0] == nil {
		return nil, fmt.Errorf("no output tensors returned")
	}
	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}

	return e.pool(tensor, attentionMask)
}

// pool reduces the model output to a single vector. Handles both already
// pooled [1, D] outputs and raw [1, seq, D] hidden states (mean pooling
// over attended tokens).
func (e *Embedder) pool(tensor *ort.Tensor[float32], attentionMask []int64) ([]float32, error) {
	data := tensor.GetData()
	shape := tensor.GetShape()

	switch len(shape) {
	case 2:
		if len(data) < e.dimensions {
			return nil, fmt.Errorf("output dimension mismatch: got %d, expected %d", len(data), e.dimensions)
		}
		vec := make([]float32, e.dimensions)
		copy(vec, data[:e.dimensions])
		return vec, nil

	case 3:
		seqLen := shape[1]
		hidden := shape[2]
		if shape[0] != 1 {
			return nil, fmt.Errorf("expected batch size 1, got %d", shape[0])
		}
		if hidden != int64(e.dimensions) {
			return nil, fmt.Errorf("hidden size mismatch: got %d, expected %d", hidden, e.dimensions)
		}

		vec := make([]float32, e.dimensions)
		var attended float32
		for i := 0; i < int(seqLen); i++ {
			if attentionMask[i] == 0 {
				continue
			}
			attended++
			offset := i * int(hidden)
			for j := 0; j < int(hidden); j++ {
				vec[j] += data[offset+j]
			}
		}
		if attended == 0 {
			return vec, nil
		}
		for j := range vec {
			vec[j] /= attended
		}
		return vec, nil
	}

	return nil, fmt.Errorf("unexpected output shape: %v", shape)
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close releases ONNX resources.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

// wordPieceTokenizer is a minimal BERT WordPiece tokenizer driven by the
// model's tokenizer.json vocabulary.
type wordPieceTokenizer struct {
	vocab    map[string]int
	clsToken int
	sepToken int
	unkToken int
}

func loadTokenizer(path string) (*wordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	return &wordPieceTokenizer{
		vocab:    parsed.Model.Vocab,
		clsToken: 101, // [CLS]
		sepToken: 102, // [SEP]
		unkToken: 100, // [UNK]
	}, nil
}

func (t *wordPieceTokenizer) tokenize(text string) []int64 {
	text = strings.ToLower(text)

	var tokens []int64
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,!?;:\"'")
		if word == "" {
			continue
		}

		if id, ok := t.vocab[word]; ok {
			tokens = append(tokens, int64(id))
			continue
		}

		for _, sub := range t.split(word) {
			if id, ok := t.vocab[sub]; ok {
				tokens = append(tokens, int64(id))
			} else {
				tokens = append(tokens, int64(t.unkToken))
			}
		}
	}
	return tokens
}

// split performs longest-prefix WordPiece segmentation.
func (t *wordPieceTokenizer) split(word string) []string {
	var subwords []string
	start := 0

	for start < len(word) {
		end := len(word)
		found := false

		for end > start {
			sub := word[start:end]
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := t.vocab[sub]; ok {
				subwords = append(subwords, sub)
				start = end
				found = true
				break
			}
			end--
		}

		if !found {
			subwords = append(subwords, "[UNK]")
			start++
		}
	}
	return subwords
}
