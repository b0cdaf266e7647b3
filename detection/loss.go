package detection

// LossTerm enumerates the named loss components a criterion may produce.
// The set is fixed per detector family at configuration time, which keeps
// the logging and reduction paths free of runtime string lookups.
type LossTerm uint8

const (
	// LossCls is the classification loss.
	LossCls LossTerm = iota
	// LossBox is the box regression loss.
	LossBox
	// LossGIoU is the generalized IoU loss of query-based detectors.
	LossGIoU
	// LossDFL is the distribution focal loss of anchor-free heads.
	LossDFL
	// LossObj is the objectness loss of anchor-based heads.
	LossObj
	// LossAux is the auxiliary decoder loss of query-based detectors.
	LossAux
	// LossTotal is the aggregate scalar that is backpropagated.
	LossTotal

	numLossTerms
)

// String returns the wire/log name of the term. The aggregate keeps the
// historical "losses" name used in progress lines.
func (t LossTerm) String() string {
	switch t {
	case LossCls:
		return "loss_cls"
	case LossBox:
		return "loss_bbox"
	case LossGIoU:
		return "loss_giou"
	case LossDFL:
		return "loss_dfl"
	case LossObj:
		return "loss_obj"
	case LossAux:
		return "loss_aux"
	case LossTotal:
		return "losses"
	default:
		return "loss_unknown"
	}
}

// LossRecord is the set of scalar loss values produced for one micro-batch.
// A record is created fresh per micro-batch by the criterion; once reduced
// across processes it is treated as read-only.
type LossRecord struct {
	values  [numLossTerms]float64
	present [numLossTerms]bool
}

// NewLossRecord returns a record declaring the given terms. LossTotal is
// always declared.
func NewLossRecord(terms ...LossTerm) *LossRecord {
	r := &LossRecord{}
	r.present[LossTotal] = true
	for _, t := range terms {
		r.present[t] = true
	}
	return r
}

// Set stores a value for a declared term. Setting an undeclared term
// declares it.
func (r *LossRecord) Set(term LossTerm, v float64) {
	r.present[term] = true
	r.values[term] = v
}

// Get returns the value of a term and whether it is declared.
func (r *LossRecord) Get(term LossTerm) (float64, bool) {
	return r.values[term], r.present[term]
}

// Total returns the aggregate loss scalar.
func (r *LossRecord) Total() float64 {
	return r.values[LossTotal]
}

// Terms returns the declared terms in fixed enumeration order, aggregate
// last.
func (r *LossRecord) Terms() []LossTerm {
	out := make([]LossTerm, 0, numLossTerms)
	for t := LossTerm(0); t < numLossTerms; t++ {
		if r.present[t] && t != LossTotal {
			out = append(out, t)
		}
	}
	return append(out, LossTotal)
}

// Values returns the declared values in the same order as Terms.
func (r *LossRecord) Values() []float64 {
	terms := r.Terms()
	out := make([]float64, len(terms))
	for i, t := range terms {
		out[i] = r.values[t]
	}
	return out
}

// WithValues returns a fresh record with the same declared terms and the
// given values in Terms order. Used by the distributed reduction, which must
// never mutate the local record.
func (r *LossRecord) WithValues(vals []float64) *LossRecord {
	out := &LossRecord{present: r.present}
	for i, t := range r.Terms() {
		out.values[t] = vals[i]
	}
	return out
}
