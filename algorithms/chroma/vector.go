package chroma

// ClassProbs is a probability (or score) vector over the twelve pitch
// classes, aligned with NoteNames.
type ClassProbs [12]float64

// Top2 returns the indices of the largest and second-largest entries.
func (p ClassProbs) Top2() (top, runnerUp int) {
	top, runnerUp = 0, 1
	if p[runnerUp] > p[top] {
		top, runnerUp = runnerUp, top
	}
	for i := 2; i < len(p); i++ {
		switch {
		case p[i] > p[top]:
			top, runnerUp = i, top
		case p[i] > p[runnerUp]:
			runnerUp = i
		}
	}
	return top, runnerUp
}

// Top1 returns the index and value of the largest entry.
func (p ClassProbs) Top1() (int, float64) {
	top, _ := p.Top2()
	return top, p[top]
}

// Sum returns the total mass of the vector.
func (p ClassProbs) Sum() float64 {
	sum := 0.0
	for _, v := range p {
		sum += v
	}
	return sum
}

// Normalized returns the vector scaled to unit mass. A vector with no
// positive mass is returned unchanged.
func (p ClassProbs) Normalized() ClassProbs {
	sum := p.Sum()
	if sum <= 0 {
		return p
	}
	for i := range p {
		p[i] /= sum
	}
	return p
}

// Note returns the pitch class name of entry i.
func (p ClassProbs) Note(i int) string {
	return NoteNames[i]
}
