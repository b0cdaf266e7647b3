package trainer

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/godet/detection"
	"github.com/YuminosukeSato/godet/solver"
)

// ---------------------------------------------------------------------------
// fake collaborators

type fakeData struct {
	size      int
	batchN    int
	imgSize   int
	mosaic    float64
	mixup     float64
	epochsSet []int
	batches   int
}

func (d *fakeData) Len() int { return d.size }

func (d *fakeData) Batch(epoch, iteration int) (*Batch, error) {
	d.batches++
	images, err := detection.NewImageBatch(d.batchN, 3, d.imgSize)
	if err != nil {
		return nil, err
	}
	targets := make([]*detection.Target, d.batchN)
	for i := range targets {
		targets[i] = &detection.Target{
			Boxes:  mat.NewDense(1, 4, []float64{8, 8, 40, 40}),
			Labels: []int{i},
		}
	}
	return &Batch{Images: images, Targets: targets}, nil
}

func (d *fakeData) SetEpoch(epoch int)      { d.epochsSet = append(d.epochsSet, epoch) }
func (d *fakeData) MosaicProb() float64     { return d.mosaic }
func (d *fakeData) MixupProb() float64      { return d.mixup }
func (d *fakeData) SetMosaicProb(p float64) { d.mosaic = p }
func (d *fakeData) SetMixupProb(p float64)  { d.mixup = p }

type fakeModel struct {
	params    []*solver.Param
	forwards  int
	backwards int
	training  bool
}

func newFakeModel() *fakeModel {
	return &fakeModel{
		training: true,
		params: []*solver.Param{
			{Name: "head.conv.weight", Value: mat.NewDense(2, 2, []float64{0.1, 0.2, 0.3, 0.4})},
			{Name: "head.conv.bias", Value: mat.NewDense(1, 2, []float64{0.01, 0.02})},
			{Name: "backbone.bn1.weight", Value: mat.NewDense(1, 2, []float64{1, 1})},
			{Name: "backbone.bn1.num_batches_tracked", Ints: []int64{0}},
		},
	}
}

func (m *fakeModel) Forward(images *detection.ImageBatch) (Predictions, error) {
	m.forwards++
	return images.Size(), nil
}

func (m *fakeModel) Backward(loss float64) error {
	m.backwards++
	for _, p := range m.params {
		if !p.Floating() {
			continue
		}
		if p.Grad == nil {
			r, c := p.Value.Dims()
			p.Grad = mat.NewDense(r, c, nil)
		}
		data := p.Grad.RawMatrix().Data
		for i := range data {
			data[i] += loss * 1e-3
		}
	}
	return nil
}

func (m *fakeModel) Parameters() []*solver.Param { return m.params }
func (m *fakeModel) SetTraining(training bool)   { m.training = training }
func (m *fakeModel) MaxStride() int              { return 8 }

type fakeCriterion struct {
	calls       int
	lastTargets []*detection.Target
	lastImgSize int
}

func (c *fakeCriterion) Compute(preds Predictions, targets []*detection.Target, imgSize int) (*detection.LossRecord, error) {
	c.calls++
	c.lastTargets = targets
	c.lastImgSize = imgSize
	rec := detection.NewLossRecord(detection.LossCls, detection.LossBox)
	rec.Set(detection.LossCls, 1.5)
	rec.Set(detection.LossBox, 0.5)
	rec.Set(detection.LossTotal, 2.0)
	return rec, nil
}

type fakeEvaluator struct {
	maps  []float64
	calls int
}

func (e *fakeEvaluator) Evaluate(params []*solver.Param) (float64, error) {
	m := e.maps[e.calls%len(e.maps)]
	e.calls++
	return m, nil
}

// ---------------------------------------------------------------------------

func testConfig(family Family, dir string) Config {
	cfg := NewConfig(family, family.String()+"_test")
	cfg.MaxEpoch = 2
	cfg.WarmupEpochs = 1
	cfg.EvalEpoch = 1
	cfg.NoAugEpoch = 0
	cfg.BatchSize = 16
	cfg.ImgSize = 64
	cfg.MinBoxSize = 2
	cfg.SaveDir = dir
	cfg.Seed = 1
	return cfg
}

func TestTrainFullSchedule(t *testing.T) {
	var progress bytes.Buffer
	cfg := testConfig(FamilyYOLO, t.TempDir())
	cfg.MixedPrecision = true
	cfg.Progress = &progress

	data := &fakeData{size: 4, batchN: 2, imgSize: 64, mosaic: 0.5, mixup: 0.15}
	model := newFakeModel()
	criterion := &fakeCriterion{}
	eval := &fakeEvaluator{maps: []float64{0.10, 0.08, 0.15}}

	tr, err := New(cfg, model, criterion, data, WithEvaluator(eval))
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Train(); err != nil {
		t.Fatal(err)
	}

	// 3 effective epochs (2 + 1 warmup) of 4 iterations each.
	if model.forwards != 12 {
		t.Errorf("forward calls = %d, want 12", model.forwards)
	}
	if model.backwards != 12 {
		t.Errorf("backward calls = %d, want 12", model.backwards)
	}
	if len(data.epochsSet) != 3 {
		t.Errorf("SetEpoch calls = %d, want 3", len(data.epochsSet))
	}

	// EvalEpoch=1 evaluates after every epoch.
	if eval.calls != 3 {
		t.Errorf("evaluator calls = %d, want 3", eval.calls)
	}
	// Best gate: 0.10 saved, 0.08 rejected, 0.15 saved.
	if math.Abs(tr.Checkpoints().BestMAP()-0.15) > 1e-12 {
		t.Errorf("best mAP = %v, want 0.15", tr.Checkpoints().BestMAP())
	}

	// The final stage closed the heavy augmentations.
	if data.mosaic != 0 || data.mixup != 0 {
		t.Errorf("augmentations still open: mosaic=%v mixup=%v", data.mosaic, data.mixup)
	}

	// With accumulation, fewer optimizer updates than micro-batches, and
	// one EMA blend per fired update.
	steps := tr.Optimizer().StepCount()
	if steps == 0 || steps >= 12 {
		t.Errorf("optimizer steps = %d, want within (0, 12)", steps)
	}
	if tr.EMA() == nil {
		t.Fatal("EMA missing on leader")
	}

	// Progress lines appear every 10th iteration, epochs 1-based.
	lines := strings.Split(strings.TrimSpace(progress.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("progress lines = %d, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "[Epoch: 1/3][Iter: 0/4][lr: ") {
		t.Errorf("unexpected progress line: %q", lines[0])
	}
	for _, want := range []string{"[loss_cls: 1.50]", "[loss_bbox: 0.50]", "[losses: 2.00]", "[size: "} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("progress line missing %q: %q", want, lines[0])
		}
	}
}

func TestDetrEncodingAndPerStepUpdates(t *testing.T) {
	cfg := testConfig(FamilyDETR, t.TempDir())
	cfg.WarmupEpochs = 0
	cfg.MaxEpoch = 1
	cfg.MultiScale = false
	cfg.MinBoxSize = 8
	cfg.EMA = false

	data := &fakeData{size: 3, batchN: 2, imgSize: 64}
	model := newFakeModel()
	criterion := &fakeCriterion{}

	tr, err := New(cfg, model, criterion, data)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Train(); err != nil {
		t.Fatal(err)
	}

	// No accumulation: one optimizer update per micro-batch.
	if got := tr.Optimizer().StepCount(); got != 3 {
		t.Errorf("optimizer steps = %d, want 3", got)
	}

	// Targets arrive center-normalized: (8,8,40,40) at 64px is
	// (0.375, 0.375, 0.5, 0.5).
	tgt := criterion.lastTargets[0]
	if tgt.NumBoxes() != 1 {
		t.Fatalf("criterion saw %d boxes, want 1", tgt.NumBoxes())
	}
	for j, want := range []float64{0.375, 0.375, 0.5, 0.5} {
		if got := tgt.Boxes.At(0, j); math.Abs(got-want) > 1e-12 {
			t.Errorf("box[%d] = %v, want %v", j, got, want)
		}
	}
	if criterion.lastImgSize != 64 {
		t.Errorf("criterion image size = %d, want 64", criterion.lastImgSize)
	}

	// AdamW for the query family.
	if got := tr.Optimizer().State().Type; got != "adamw" {
		t.Errorf("optimizer type = %q, want adamw", got)
	}
}

func TestNoEvaluatorSavesUnconditionally(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(FamilyRTMDet, dir)
	cfg.MaxEpoch = 1
	cfg.WarmupEpochs = 0
	cfg.MultiScale = false
	cfg.EMA = false

	data := &fakeData{size: 2, batchN: 2, imgSize: 64}
	tr, err := New(cfg, newFakeModel(), &fakeCriterion{}, data)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Train(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(tr.Checkpoints().NoEvalPath()); err != nil {
		t.Errorf("no-eval checkpoint missing: %v", err)
	}
	// Without an evaluator the best gate never advances.
	if tr.Checkpoints().BestMAP() != -1 {
		t.Errorf("best mAP = %v, want -1", tr.Checkpoints().BestMAP())
	}
}

func TestResumeRestoresCursor(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(FamilyYOLO, dir)
	cfg.MultiScale = false
	cfg.EMA = false

	data := &fakeData{size: 4, batchN: 2, imgSize: 64}
	model := newFakeModel()

	tr, err := New(cfg, model, &fakeCriterion{}, data)
	if err != nil {
		t.Fatal(err)
	}
	ckpt := tr.buildCheckpoint(model.Parameters())
	ckpt.TrainingState.Epoch = 1
	if err := tr.Checkpoints().SaveNoEval(ckpt); err != nil {
		t.Fatal(err)
	}

	cfg.Resume = tr.Checkpoints().NoEvalPath()
	resumed, err := New(cfg, newFakeModel(), &fakeCriterion{}, data)
	if err != nil {
		t.Fatal(err)
	}
	if resumed.startEpoch != 2 {
		t.Errorf("startEpoch = %d, want 2", resumed.startEpoch)
	}

	// Remaining epochs only: maxEpoch 3, starting at 2 leaves one epoch.
	if err := resumed.Train(); err != nil {
		t.Fatal(err)
	}
	if len(data.epochsSet) != 1 {
		t.Errorf("SetEpoch calls after resume = %d, want 1", len(data.epochsSet))
	}
}

func TestResumePastWarmupKeepsAccumulationWindow(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(FamilyYOLO, dir)
	cfg.MaxEpoch = 4 // schedule length 5 with the warmup epoch
	cfg.MultiScale = false
	cfg.EMA = false

	data := &fakeData{size: 8, batchN: 2, imgSize: 64}
	model := newFakeModel()

	tr, err := New(cfg, model, &fakeCriterion{}, data)
	if err != nil {
		t.Fatal(err)
	}
	ckpt := tr.buildCheckpoint(model.Parameters())
	ckpt.TrainingState.Epoch = 3
	if err := tr.Checkpoints().SaveNoEval(ckpt); err != nil {
		t.Fatal(err)
	}

	cfg.Resume = tr.Checkpoints().NoEvalPath()
	resumed, err := New(cfg, newFakeModel(), &fakeCriterion{}, data)
	if err != nil {
		t.Fatal(err)
	}
	if err := resumed.Train(); err != nil {
		t.Fatal(err)
	}

	// The restart lands past the warmup window, so the accumulation window
	// must sit at its steady-state target right away: batch 16 against the
	// reference 64 accumulates 4 micro-batches per update, and the one
	// remaining epoch of 8 iterations fires exactly 2 optimizer steps.
	if got := resumed.Optimizer().StepCount(); got != 2 {
		t.Errorf("optimizer steps after resume = %d, want 2", got)
	}
}

func TestVisTargetsDumpsBatches(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(FamilyYOLO, dir)
	cfg.MaxEpoch = 1
	cfg.WarmupEpochs = 0
	cfg.MultiScale = false
	cfg.EMA = false
	cfg.VisTargets = true

	data := &fakeData{size: 2, batchN: 2, imgSize: 64}
	tr, err := New(cfg, newFakeModel(), &fakeCriterion{}, data)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Train(); err != nil {
		t.Fatal(err)
	}

	// One overlay PNG per image per iteration: 2 iterations of 2 images.
	matches, err := filepath.Glob(filepath.Join(dir, cfg.ModelName, "vis", "*.png"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 4 {
		t.Errorf("vis dumps = %d, want 4", len(matches))
	}
}

func TestProgressCadenceConfigurable(t *testing.T) {
	var progress bytes.Buffer
	cfg := testConfig(FamilyRTMDet, t.TempDir())
	cfg.MaxEpoch = 1
	cfg.WarmupEpochs = 0
	cfg.MultiScale = false
	cfg.EMA = false
	cfg.LogInterval = 2
	cfg.Progress = &progress

	data := &fakeData{size: 5, batchN: 2, imgSize: 64}
	tr, err := New(cfg, newFakeModel(), &fakeCriterion{}, data)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Train(); err != nil {
		t.Fatal(err)
	}

	// Iterations 0, 2 and 4 report.
	lines := strings.Split(strings.TrimSpace(progress.String()), "\n")
	if len(lines) != 3 {
		t.Errorf("progress lines = %d, want 3", len(lines))
	}

	bad := cfg
	bad.LogInterval = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero log interval")
	}
}

func TestEmaShadowDriftsBehindLiveWeights(t *testing.T) {
	cfg := testConfig(FamilyYOLO, t.TempDir())
	cfg.MultiScale = false

	data := &fakeData{size: 4, batchN: 2, imgSize: 64}
	model := newFakeModel()

	tr, err := New(cfg, model, &fakeCriterion{}, data)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Train(); err != nil {
		t.Fatal(err)
	}

	if got, want := tr.EMA().Updates(), tr.Optimizer().StepCount(); got != want {
		t.Errorf("EMA updates = %d, optimizer steps = %d", got, want)
	}
	// Early in training the shadow stays close to the live weights but is
	// not identical once updates have happened.
	live := model.Parameters()[0].Value.At(0, 0)
	shadow := tr.EMA().Shadow()[0].Value.At(0, 0)
	if live == shadow {
		t.Error("shadow identical to live weights after updates")
	}
}
