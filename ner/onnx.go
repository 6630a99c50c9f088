package ner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	defaultModelFile     = "model.onnx"
	defaultTokenizerFile = "tokenizer.json"
	defaultLabelsFile    = "config.json"
	defaultMaxSeqLen     = 512
)

var (
	ortMu    sync.Mutex
	ortUsers int
)

// acquireOrt initializes the process-wide ONNX Runtime environment on first use.
func acquireOrt(lib string) error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ortUsers == 0 && !ort.IsInitialized() {
		if lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	ortUsers++
	return nil
}

func releaseOrt() {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ortUsers == 0 {
		return
	}
	ortUsers--
	if ortUsers == 0 && ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}

// OrtExtractor runs a token-classification model through ONNX Runtime.
type OrtExtractor struct {
	mu       sync.Mutex
	cfg      Config
	name     string
	tk       *tokenizer.Tokenizer
	session  *ort.DynamicAdvancedSession
	inputs   []string
	labels   []string
	tags     []string
	clsID    int
	sepID    int
	unkID    int
	progress ProgressFunc
}

// NewOrtExtractor loads the model, tokenizer and label map described by cfg.
func NewOrtExtractor(cfg Config) (*OrtExtractor, error) {
	if cfg.MaxSeqLen <= 2 {
		cfg.MaxSeqLen = defaultMaxSeqLen
	}
	modelFile, tokenizerFile, labelsFile, err := resolveModelFiles(cfg)
	if err != nil {
		return nil, err
	}
	labels, err := loadLabels(labelsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCantOpen, err)
	}
	tk, err := pretrained.FromFile(tokenizerFile)
	if err != nil {
		return nil, fmt.Errorf("%w: load tokenizer: %v", ErrCantOpen, err)
	}
	clsID, sepID, unkID, err := specialIDs(tk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCantOpen, err)
	}

	if err := acquireOrt(cfg.OrtLib); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCantOpen, err)
	}
	inputInfo, outputInfo, err := ort.GetInputOutputInfo(modelFile)
	if err != nil {
		releaseOrt()
		return nil, fmt.Errorf("%w: inspect model: %v", ErrCantOpen, err)
	}
	inputs := make([]string, 0, len(inputInfo))
	for _, info := range inputInfo {
		if inputKind(info.Name) == "" {
			releaseOrt()
			return nil, fmt.Errorf("%w: unsupported model input %q", ErrCantOpen, info.Name)
		}
		inputs = append(inputs, info.Name)
	}
	if len(outputInfo) == 0 {
		releaseOrt()
		return nil, fmt.Errorf("%w: model has no outputs", ErrCantOpen)
	}
	session, err := ort.NewDynamicAdvancedSession(modelFile, inputs, []string{outputInfo[0].Name}, nil)
	if err != nil {
		releaseOrt()
		return nil, fmt.Errorf("%w: create session: %v", ErrCantOpen, err)
	}

	return &OrtExtractor{
		cfg:     cfg,
		name:    filepath.Base(filepath.Dir(modelFile)) + "/" + filepath.Base(modelFile),
		tk:      tk,
		session: session,
		inputs:  inputs,
		labels:  labels,
		tags:    tagsFromLabels(labels, cfg.TagAliases),
		clsID:   clsID,
		sepID:   sepID,
		unkID:   unkID,
	}, nil
}

// Name identifies the loaded model.
func (o *OrtExtractor) Name() string {
	return "onnx:" + o.name
}

// Tags lists the categories the model can emit.
func (o *OrtExtractor) Tags() []string {
	return append([]string(nil), o.tags...)
}

// SetProgress installs a per-window progress callback.
func (o *OrtExtractor) SetProgress(fn ProgressFunc) {
	o.mu.Lock()
	o.progress = fn
	o.mu.Unlock()
}

// Close releases the session and, for the last user, the runtime environment.
func (o *OrtExtractor) Close() error {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	err := o.session.Destroy()
	o.session = nil
	releaseOrt()
	return err
}

// Extract labels every token and groups the labels into entities.
func (o *OrtExtractor) Extract(ctx context.Context, tokens []string) ([]Entity, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil, fmt.Errorf("%w: extractor is closed", ErrExtract)
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	budget := o.cfg.MaxSeqLen - 2
	pieces := make([][]int, len(tokens))
	counts := make([]int, len(tokens))
	for i, t := range tokens {
		ids, err := o.encodeWord(t)
		if err != nil {
			return nil, fmt.Errorf("%w: encode token %d: %v", ErrExtract, i, err)
		}
		if len(ids) > budget {
			ids = ids[:budget]
		}
		pieces[i] = ids
		counts[i] = len(ids)
	}

	windows := packWindows(counts, budget)
	words := make([]wordLabel, len(tokens))
	for wi, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		labels, err := o.runWindow(pieces[w.Start:w.End])
		if err != nil {
			return nil, fmt.Errorf("%w: window %d: %v", ErrExtract, wi, err)
		}
		copy(words[w.Start:w.End], labels)
		if o.progress != nil {
			o.progress(wi+1, len(windows))
		}
	}
	return decodeEntities(words, o.cfg.TagAliases), nil
}

func (o *OrtExtractor) encodeWord(word string) ([]int, error) {
	en, err := o.tk.EncodeSingle(word, false)
	if err != nil {
		return nil, err
	}
	ids := en.GetIds()
	if len(ids) == 0 {
		return []int{o.unkID}, nil
	}
	return ids, nil
}

func (o *OrtExtractor) runWindow(words [][]int) ([]wordLabel, error) {
	ids := []int64{int64(o.clsID)}
	first := make([]int, len(words))
	for i, w := range words {
		first[i] = len(ids)
		for _, id := range w {
			ids = append(ids, int64(id))
		}
	}
	ids = append(ids, int64(o.sepID))
	seqLen := int64(len(ids))
	shape := ort.NewShape(1, seqLen)

	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	types := make([]int64, len(ids))

	var values []ort.Value
	defer func() {
		for _, v := range values {
			_ = v.Destroy()
		}
	}()
	for _, name := range o.inputs {
		var data []int64
		switch inputKind(name) {
		case "ids":
			data = ids
		case "mask":
			data = mask
		default:
			data = types
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("create input %s: %w", name, err)
		}
		values = append(values, t)
	}
	numLabels := int64(len(o.labels))
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, seqLen, numLabels))
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	defer out.Destroy()

	if err := o.session.Run(values, []ort.Value{out}); err != nil {
		return nil, err
	}
	logits := out.GetData()
	res := make([]wordLabel, len(words))
	for i, pos := range first {
		row := logits[int64(pos)*numLabels : int64(pos+1)*numLabels]
		idx, score := argmaxSoftmax(row)
		res[i] = wordLabel{Label: o.labels[idx], Score: score}
	}
	return res, nil
}

func inputKind(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "input_ids"):
		return "ids"
	case strings.Contains(n, "attention_mask"):
		return "mask"
	case strings.Contains(n, "token_type_ids"):
		return "types"
	default:
		return ""
	}
}

func specialIDs(tk *tokenizer.Tokenizer) (cls, sep, unk int, err error) {
	lookup := func(candidates ...string) (int, bool) {
		for _, c := range candidates {
			if id, ok := tk.TokenToId(c); ok {
				return id, true
			}
		}
		return 0, false
	}
	var ok bool
	if cls, ok = lookup("[CLS]", "<s>"); !ok {
		return 0, 0, 0, errors.New("tokenizer has no [CLS] or <s> token")
	}
	if sep, ok = lookup("[SEP]", "</s>"); !ok {
		return 0, 0, 0, errors.New("tokenizer has no [SEP] or </s> token")
	}
	unk, _ = lookup("[UNK]", "<unk>")
	return cls, sep, unk, nil
}

// resolveModelFiles accepts either a model directory or an .onnx file and
// locates the tokenizer and label files next to it.
func resolveModelFiles(cfg Config) (model, tok, labels string, err error) {
	info, err := os.Stat(cfg.ModelPath)
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %v", ErrCantOpen, err)
	}
	dir := cfg.ModelPath
	model = filepath.Join(dir, defaultModelFile)
	if !info.IsDir() {
		dir = filepath.Dir(cfg.ModelPath)
		model = cfg.ModelPath
	}
	tok = cfg.TokenizerPath
	if tok == "" {
		tok = filepath.Join(dir, defaultTokenizerFile)
	}
	labels = cfg.LabelsPath
	if labels == "" {
		labels = filepath.Join(dir, defaultLabelsFile)
	}
	for _, p := range []string{model, tok, labels} {
		if _, err := os.Stat(p); err != nil {
			return "", "", "", fmt.Errorf("%w: %v", ErrCantOpen, err)
		}
	}
	return model, tok, labels, nil
}

// loadLabels reads id2label from a HuggingFace config.json, or one label per
// line from any other file.
func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return parseID2Label(data)
	}
	var labels []string
	for _, line := range strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			labels = append(labels, line)
		}
	}
	if len(labels) == 0 {
		return nil, errors.New("label file is empty")
	}
	return labels, nil
}

func parseID2Label(data []byte) ([]string, error) {
	var raw struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	if len(raw.ID2Label) == 0 {
		return nil, errors.New("id2label is missing")
	}
	ids := make([]int, 0, len(raw.ID2Label))
	byID := make(map[int]string, len(raw.ID2Label))
	for k, v := range raw.ID2Label {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("label id %q: %w", k, err)
		}
		ids = append(ids, id)
		byID[id] = v
	}
	sort.Ints(ids)
	labels := make([]string, len(ids))
	for i, id := range ids {
		if id != i {
			return nil, fmt.Errorf("label ids are not contiguous at %d", i)
		}
		labels[i] = byID[id]
	}
	return labels, nil
}
