package usecase

// RunningAvg is an exponential moving average used for loss/accuracy
// reporting during training.
type RunningAvg struct {
	alpha float64
	value float64
	count int
}

// NewRunningAvg creates an average with smoothing factor alpha in (0,1].
func NewRunningAvg(alpha float64) *RunningAvg {
	return &RunningAvg{alpha: alpha}
}

func (a *RunningAvg) Update(x float64) {
	if a.count == 0 {
		a.value = x
	} else {
		a.value = a.alpha*x + (1-a.alpha)*a.value
	}
	a.count++
}

func (a *RunningAvg) Value() float64 { return a.value }
func (a *RunningAvg) Count() int     { return a.count }
