package manager

import (
	"fmt"
	"strings"

	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/internal/util"
)

// Interval selects how often a polling target is read.
type Interval uint8

const (
	// Fast targets are read every tick.
	Fast Interval = iota
	// Medium targets are read every 5th tick.
	Medium
	// Slow targets are read every 10th tick.
	Slow
	// Watch targets are read once per round of 50 ticks.
	Watch
)

const (
	mediumEvery = 5
	slowEvery   = 10
	// lastTick is the final tick of a round; Watch targets are read on it
	lastTick = 49
)

// ParseInterval parses fast, medium, slow or watch.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast", "":
		return Fast, nil
	case "medium":
		return Medium, nil
	case "slow":
		return Slow, nil
	case "watch":
		return Watch, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}
}

func (i Interval) String() string {
	switch i {
	case Fast:
		return "fast"
	case Medium:
		return "medium"
	case Slow:
		return "slow"
	case Watch:
		return "watch"
	default:
		return fmt.Sprintf("Interval(%d)", uint8(i))
	}
}

// due reports whether targets of interval i are read on tick.
func (i Interval) due(tick int) bool {
	switch i {
	case Fast:
		return true
	case Medium:
		return tick%mediumEvery == 0
	case Slow:
		return tick%slowEvery == 0
	case Watch:
		return tick == lastTick
	default:
		return false
	}
}

// nextTick advances the tick counter. The first round starts at 0, later rounds at 1.
func nextTick(tick int) int {
	if tick >= lastTick {
		return 1
	}

	return tick + 1
}

// Target is a point polled at an interval.
type Target struct {
	Point    device.Point
	Interval Interval
}

func (t Target) String() string {
	return t.Point.String() + "@" + t.Interval.String()
}

// checkTarget validates t against space.
func checkTarget(space device.Space, t Target) error {
	if t.Interval > Watch {
		return fmt.Errorf("target %s: %w", t.Point, ErrInvalidInterval)
	}
	if err := t.Point.Type.Validate(); err != nil {
		return fmt.Errorf("target %s: %w", t.Point, err)
	}
	if t.Point.Type.IsBit() {
		return space.CheckRange(t.Point.Address, 1, device.UnitBit)
	}

	return space.CheckRange(t.Point.Address, t.Point.Type.Words(), device.UnitWord)
}

// schedule holds the targets of one worker grouped by interval.
type schedule [Watch + 1][]device.Point

func newSchedule(targets []Target) schedule {
	var s schedule
	for _, t := range targets {
		s[t.Interval] = append(s[t.Interval], t.Point)
	}

	return s
}

// points returns the points due on tick, fast targets first.
func (s *schedule) points(tick int) []device.Point {
	var pts []device.Point
	for i := Fast; i <= Watch; i++ {
		if i.due(tick) {
			pts = append(pts, s[i]...)
		}
	}

	return pts
}

// randomReadCost is the number of access points p takes in a random read.
func randomReadCost(p device.Point) int {
	if p.Type.IsDoubleWord() {
		return 1
	}

	return p.Type.Words()
}

// chunkPoints splits points into consecutive groups that each fit one random read.
func chunkPoints(points []device.Point, limit int) [][]device.Point {
	var (
		chunks [][]device.Point
		start  int
		cost   int
	)
	if len(points) == 0 {
		return nil
	}
	if util.SumBy(points, randomReadCost) <= limit {
		return [][]device.Point{points}
	}

	for i, p := range points {
		c := randomReadCost(p)
		if cost+c > limit && i > start {
			chunks = append(chunks, points[start:i])
			start, cost = i, 0
		}
		cost += c
	}
	if start < len(points) {
		chunks = append(chunks, points[start:])
	}

	return chunks
}
