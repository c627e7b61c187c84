package samba

// Progress observes a flash transfer. Start is called once with the number
// of pages, Report with the cumulative count of pages written.
type Progress interface {
	Start(total int)
	Report(done int)
}

type nopProgress struct{}

func (nopProgress) Start(int)  {}
func (nopProgress) Report(int) {}

type funcProgress struct {
	fn    func(done, total int)
	total int
}

// ProgressFunc adapts fn to Progress. fn is also called once with done=0
// on Start.
func ProgressFunc(fn func(done, total int)) Progress {
	return &funcProgress{fn: fn}
}

func (p *funcProgress) Start(total int) {
	p.total = total
	p.fn(0, total)
}

func (p *funcProgress) Report(done int) { p.fn(done, p.total) }

type monotonic struct {
	next Progress
	last int
	max  int
}

// Monotonic forwards only non-decreasing values, clamped to the total
// given to Start.
func Monotonic(p Progress) Progress {
	return &monotonic{next: p}
}

func (m *monotonic) Start(total int) {
	m.last, m.max = 0, total
	m.next.Start(total)
}

func (m *monotonic) Report(done int) {
	if done > m.max {
		done = m.max
	}
	if done < m.last {
		return
	}
	m.last = done
	m.next.Report(done)
}

type progressList []Progress

// Multi fans every event out to all of list.
func Multi(list ...Progress) Progress {
	return progressList(list)
}

func (l progressList) Start(total int) {
	for _, p := range l {
		p.Start(total)
	}
}

func (l progressList) Report(done int) {
	for _, p := range l {
		p.Report(done)
	}
}
